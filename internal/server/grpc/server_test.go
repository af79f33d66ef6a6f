package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/tokens"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type harness struct {
	client *Client
	repos  *memory.InMemoryRepositoryManager
	mock   sqlmock.Sqlmock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repos := memory.NewInMemoryRepositoryManager(nil)
	ts, err := tokens.New(tokens.Config{Secret: "grpc-test"})
	if err != nil {
		t.Fatalf("tokens.New error: %v", err)
	}
	svc := services.NewAuthService(db, repos, password.NewHasher(bcrypt.MinCost), ts, services.Options{})

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewGRPCServer("bufnet", logging.Nop{}, svc).Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient error: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	return &harness{client: NewClient(conn), repos: repos, mock: mock}
}

func bearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if status.Code(err) != code {
		t.Fatalf("expected %v, got %v (%v)", code, status.Code(err), err)
	}
}

func (h *harness) registerAndLogin(t *testing.T, email string) map[string]any {
	t.Helper()
	ctx := context.Background()
	_, err := h.client.Call(ctx, MethodRegister, map[string]any{
		"email": email, "name": "Ann", "password": "longpw123", "password_confirm": "longpw123",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	out, err := h.client.Call(ctx, MethodLogin, map[string]any{"email": email, "password": "longpw123"})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	return out
}

func TestGRPC_Flow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	login := h.registerAndLogin(t, "a@x.com")
	if login["token_type"] != "bearer" || login["expires_in"] != float64(900) {
		t.Fatalf("unexpected login response: %v", login)
	}
	access := login["access_token"].(string)
	refresh := login["refresh_token"].(string)

	me, err := h.client.Call(bearer(ctx, access), MethodMe, map[string]any{})
	if err != nil {
		t.Fatalf("Me error: %v", err)
	}
	if me["email"] != "a@x.com" {
		t.Fatalf("unexpected Me response: %v", me)
	}

	_, err = h.client.Call(ctx, MethodMe, map[string]any{})
	wantCode(t, err, codes.Unauthenticated)

	out, err := h.client.Call(ctx, MethodRefresh, map[string]any{"refresh_token": refresh})
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if out["access_token"] == access {
		t.Fatal("refresh returned the same access token")
	}

	if _, err := h.client.Call(ctx, MethodLogout, map[string]any{"refresh_token": refresh}); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	_, err = h.client.Call(ctx, MethodRefresh, map[string]any{"refresh_token": refresh})
	wantCode(t, err, codes.Unauthenticated)
}

func TestGRPC_ErrorCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerAndLogin(t, "a@x.com")

	_, err := h.client.Call(ctx, MethodRegister, map[string]any{
		"email": "a@x.com", "name": "Ann", "password": "longpw123", "password_confirm": "longpw123",
	})
	wantCode(t, err, codes.AlreadyExists)

	_, err = h.client.Call(ctx, MethodRegister, map[string]any{
		"email": "b@x.com", "name": "Ann", "password": "short", "password_confirm": "short",
	})
	wantCode(t, err, codes.InvalidArgument)

	_, err = h.client.Call(ctx, MethodRegister, map[string]any{"email": "not-an-email"})
	wantCode(t, err, codes.InvalidArgument)

	for i := 0; i < 5; i++ {
		_, err = h.client.Call(ctx, MethodLogin, map[string]any{"email": "a@x.com", "password": "wrong-pass"})
		wantCode(t, err, codes.Unauthenticated)
	}
	_, err = h.client.Call(ctx, MethodLogin, map[string]any{"email": "a@x.com", "password": "longpw123"})
	wantCode(t, err, codes.ResourceExhausted)

	h.repos.FailWith(errors.New("connection refused"))
	_, err = h.client.Call(ctx, MethodLogin, map[string]any{"email": "a@x.com", "password": "longpw123"})
	wantCode(t, err, codes.Unavailable)
}

func TestGRPC_AccountSelfService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	login := h.registerAndLogin(t, "a@x.com")
	authed := bearer(ctx, login["access_token"].(string))

	out, err := h.client.Call(authed, MethodUpdateProfile, map[string]any{"name": "Anna"})
	if err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
	if out["name"] != "Anna" {
		t.Fatalf("unexpected name: %v", out["name"])
	}

	_, err = h.client.Call(authed, MethodChangePassword, map[string]any{
		"current_password": "nope", "new_password": "newpass456", "new_password_confirm": "newpass456",
	})
	wantCode(t, err, codes.InvalidArgument)

	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
	_, err = h.client.Call(authed, MethodChangePassword, map[string]any{
		"current_password": "longpw123", "new_password": "newpass456", "new_password_confirm": "newpass456",
	})
	if err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
	_, err = h.client.Call(ctx, MethodRefresh, map[string]any{"refresh_token": login["refresh_token"]})
	wantCode(t, err, codes.Unauthenticated)

	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
	if _, err := h.client.Call(authed, MethodDeactivate, map[string]any{}); err != nil {
		t.Fatalf("Deactivate error: %v", err)
	}
	_, err = h.client.Call(authed, MethodMe, map[string]any{})
	wantCode(t, err, codes.Unauthenticated)

	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, nil)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}
