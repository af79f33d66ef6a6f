// Package admin implements the authctl operator commands: applying schema
// migrations, running one expired-session sweep, and producing password
// digests for seeding accounts.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/sessions"
	"github.com/dmitrijs2005/gophauth/internal/shared"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// ErrUsage is returned for an unknown or missing subcommand.
var ErrUsage = errors.New("usage: authctl <migrate|sweep|hash> [flags]")

// ErrMismatch is returned when the confirmation differs from the password.
var ErrMismatch = errors.New("passwords do not match")

// Migrator applies the schema.
type Migrator interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
}

// Run dispatches args[0] to a subcommand. The remaining args are that
// subcommand's flags; migrate and sweep read the server configuration from
// them, the environment and an optional config file.
func Run(ctx context.Context, args []string, w io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "hash":
		fs := flag.NewFlagSet("hash", flag.ContinueOnError)
		fs.SetOutput(w)
		cost := fs.Int("cost", password.DefaultCost, "bcrypt cost")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return Hash(w, password.NewHasher(*cost), password.DefaultPolicy())

	case "migrate", "sweep":
		cfg, err := config.Load(rest)
		if err != nil {
			return err
		}
		db, err := dbx.Open(repomanager.DriverName, cfg.DatabaseDSN, cfg.Pool())
		if err != nil {
			return err
		}
		defer db.Close()

		repos := repomanager.NewPostgresRepositoryManager()
		if cmd == "migrate" {
			return Migrate(ctx, repos, db, w)
		}
		ctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
		return Sweep(ctx, sessions.NewStore(repos.RefreshTokens(db), nil), w)

	default:
		return ErrUsage
	}
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, m Migrator, db *sql.DB, w io.Writer) error {
	if err := m.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	_, err := fmt.Fprintln(w, "migrations applied")
	return err
}

// Sweep removes expired refresh tokens once.
func Sweep(ctx context.Context, store sessions.Expirer, w io.Writer) error {
	n, err := store.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	_, err = fmt.Fprintf(w, "removed %d expired sessions\n", n)
	return err
}

// Hash reads a password twice without echo, checks it against policy and
// prints its bcrypt digest.
func Hash(w io.Writer, hasher *password.Hasher, policy password.Policy) error {
	pw, err := prompt(w, "Enter password: ")
	if err != nil {
		return err
	}
	confirm, err := prompt(w, "Confirm password: ")
	if err != nil {
		return err
	}
	if pw != confirm {
		return ErrMismatch
	}
	if ok, violations := policy.Check(pw); !ok {
		for _, v := range violations {
			fmt.Fprintln(w, "-", v)
		}
		return errors.New("password rejected by policy")
	}

	digest, err := hasher.Hash(pw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, digest)
	return err
}

func prompt(w io.Writer, text string) (string, error) {
	if _, err := fmt.Fprint(w, text); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	defer shared.Wipe(pw)
	return string(pw), nil
}
