package utils

import (
	"context"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/patrickmn/go-cache"
)

// ErrCommandRunning is returned when the same command is already in flight for a guild.
var ErrCommandRunning = errors.New("this command is already running in this server")

// CommandLocks is an advisory lock table keyed by guild and command name.
// Entries carry a TTL so a lost release can't wedge a command forever.
type CommandLocks struct {
	entries *cache.Cache
	ttl     time.Duration
}

// NewCommandLocks creates a lock table whose entries expire after ttl.
func NewCommandLocks(ttl time.Duration) *CommandLocks {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CommandLocks{
		entries: cache.New(ttl, ttl),
		ttl:     ttl,
	}
}

func lockKey(guildID, command string) string {
	return guildID + " " + command
}

// Acquire marks the command as running. The returned release func is safe to
// call more than once.
func (l *CommandLocks) Acquire(guildID, command string) (func(), error) {
	key := lockKey(guildID, command)
	if err := l.entries.Add(key, time.Now(), l.ttl); err != nil {
		return nil, errors.WithStack(ErrCommandRunning)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.entries.Delete(key) })
	}, nil
}

// Running reports whether the command currently holds a lock.
func (l *CommandLocks) Running(guildID, command string) bool {
	_, ok := l.entries.Get(lockKey(guildID, command))
	return ok
}

// Run executes fn while holding the lock. The lock is released on every exit
// path, including panics.
func (l *CommandLocks) Run(ctx context.Context, guildID, command string, fn func(context.Context) error) error {
	release, err := l.Acquire(guildID, command)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

type commandLocksKey struct{}

// WithCommandLocks attaches a lock table to ctx.
func WithCommandLocks(ctx context.Context, locks *CommandLocks) context.Context {
	return context.WithValue(ctx, commandLocksKey{}, locks)
}

// CommandLocksFrom returns the lock table carried by ctx, if any.
func CommandLocksFrom(ctx context.Context) (*CommandLocks, bool) {
	locks, ok := ctx.Value(commandLocksKey{}).(*CommandLocks)
	return locks, ok && locks != nil
}

// RunExclusive runs fn under the lock table found in ctx. Without a table the
// call is not serialized.
func RunExclusive(ctx context.Context, guildID, command string, fn func(context.Context) error) error {
	locks, ok := CommandLocksFrom(ctx)
	if !ok {
		return fn(ctx)
	}
	return locks.Run(ctx, guildID, command, fn)
}
