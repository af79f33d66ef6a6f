package sessions

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/redis/go-redis/v9"
)

// DefaultSweepInterval is used when the configured interval is not positive.
const DefaultSweepInterval = time.Hour

// Expirer removes expired sessions. *Store implements it.
type Expirer interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Locker grants a lease on key for ttl. A false result means another holder
// owns it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker implements Locker with SET NX PX. The lease is never released
// explicitly; it simply expires, which keeps at most one sweep per interval
// across replicas.
type RedisLocker struct {
	client redis.Cmdable
	owner  string
}

// NewRedisLocker returns a RedisLocker identifying itself by hostname and pid.
func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	host, _ := os.Hostname()
	return &RedisLocker{client: client, owner: fmt.Sprintf("%s:%d", host, os.Getpid())}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, l.owner, ttl).Result()
}

// LeaseKey is the Redis key guarding the sweep.
const LeaseKey = "gophauth:sweep:refresh_tokens"

// Sweeper periodically removes expired sessions.
type Sweeper struct {
	store    Expirer
	locker   Locker
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger
}

// NewSweeper builds a Sweeper. locker may be nil, in which case every
// instance sweeps on every tick. timeout bounds a single sweep; zero means
// the interval.
func NewSweeper(store Expirer, locker Locker, interval, timeout time.Duration, log logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if timeout <= 0 {
		timeout = interval
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Sweeper{store: store, locker: locker, interval: interval, timeout: timeout, log: log}
}

// RunOnce performs a single sweep if the lease is available. It reports the
// number of removed sessions and whether this instance swept at all.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, LeaseKey, s.interval)
		if err != nil {
			return 0, false, fmt.Errorf("acquire sweep lease: %w", err)
		}
		if !ok {
			return 0, false, nil
		}
	}

	n, err := s.store.SweepExpired(ctx)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

// Run sweeps immediately and then on every interval until ctx is done.
// Errors are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	n, ran, err := s.RunOnce(ctx)
	switch {
	case err != nil:
		s.log.Error(ctx, "session sweep failed", "error", err)
	case !ran:
		s.log.Debug(ctx, "session sweep skipped, lease held elsewhere")
	default:
		s.log.Info(ctx, "session sweep done", "removed", n)
	}
}
