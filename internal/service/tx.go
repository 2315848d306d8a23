package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/permission"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// busyMessage is what a user sees when an update from another terminal
// won the race twice in a row.
const busyMessage = "another terminal is changing the same records; try again"

// runTx executes fn as one unit of work. With a database the context
// passed to fn carries the transaction so every repository call joins it;
// with db nil (unit test mode) fn runs directly.
//
// A unit of work that loses a race to another terminal is run once more
// against fresh reads; losing again is reported as a User error.
func runTx(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	err := attemptTx(ctx, db, fn)
	if !isConflict(err) {
		return err
	}
	log.Debug().Err(err).Msg("transaction conflict, retrying")
	if err = attemptTx(ctx, db, fn); isConflict(err) {
		return apperr.User(busyMessage)
	}
	return err
}

func attemptTx(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	if db == nil {
		return fn(ctx)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repository.WithTx(ctx, tx))
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}
	return repository.IsSerializationFailure(err) || apperr.KindOf(err) == apperr.KindConflict
}

// Locker serialises work across terminals on a named key.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

const lockTTL = 10 * time.Second

// withLock runs fn holding key. A nil locker means no locking. A lock
// still held by another terminal is waited for once more before the
// caller is told to try again.
func withLock(ctx context.Context, l Locker, key string, fn func() error) error {
	if l == nil {
		return fn()
	}
	unlock, err := l.Lock(ctx, key, lockTTL)
	if isConflict(err) {
		log.Debug().Err(err).Str("key", key).Msg("lock busy, retrying")
		if unlock, err = l.Lock(ctx, key, lockTTL); isConflict(err) {
			return apperr.User(busyMessage)
		}
	}
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// Actor is the user on whose behalf an operation runs.
type Actor struct {
	UserID *int64
	Perms  permission.Holder
}

func (a Actor) can(p permission.Permission) bool { return permission.Allowed(a.Perms, p) }

// Clock returns the current time; services take one so tests can fix it.
type Clock func() time.Time
