package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockTTL = 30 * time.Minute

// Lock is a redis-backed mutual exclusion for the whole batch: the account
// table has a single writer, and this keeps a second operator (or a stuck
// cron) from starting another run against it.
type Lock struct {
	rdb   *redis.Client
	key   string
	owner string
	log   *zap.Logger

	stop chan struct{}
}

func New(rdb *redis.Client, accountsFile, owner string, log *zap.Logger) *Lock {
	return &Lock{
		rdb:   rdb,
		key:   "autofarm:runlock:" + accountsFile,
		owner: owner,
		log:   log,
		stop:  make(chan struct{}),
	}
}

// Acquire takes the lock or fails fast if another run holds it. While held,
// the TTL is refreshed in the background so a long batch does not lose it.
func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.rdb.SetNX(ctx, l.key, l.owner, lockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		holder, _ := l.rdb.Get(ctx, l.key).Result()
		return fmt.Errorf("another run (%s) holds the lock", holder)
	}
	l.log.Info("run lock acquired", zap.String("key", l.key))

	go l.refresh()
	return nil
}

func (l *Lock) refresh() {
	ticker := time.NewTicker(lockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := l.rdb.Expire(ctx, l.key, lockTTL).Err(); err != nil {
				l.log.Warn("run lock refresh failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Release drops the lock if this run still owns it.
func (l *Lock) Release(ctx context.Context) {
	close(l.stop)
	val, err := l.rdb.Get(ctx, l.key).Result()
	if err == nil && val == l.owner {
		if err := l.rdb.Del(ctx, l.key).Err(); err != nil {
			l.log.Warn("run lock release failed", zap.Error(err))
			return
		}
	}
	l.log.Info("run lock released")
}
