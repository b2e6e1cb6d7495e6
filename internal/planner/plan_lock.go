package planner

import (
	"context"
	"time"
)

type lockFields interface {
	CompareAndSetLock(ctx context.Context, planID int64, userID string, now, expiresAt time.Time) (bool, error)
	ClearLock(ctx context.Context, planID int64, userID string, expiresAt time.Time) (bool, error)
}

// FieldLocker keeps the extend lock on the plan row itself
// (is_extending + lock_expires_at). An expired lock is taken over.
// The expiry written on acquire identifies the holder on release.
type FieldLocker struct {
	store lockFields
	now   func() time.Time
}

func NewFieldLocker(store lockFields) *FieldLocker {
	return &FieldLocker{store: store, now: time.Now}
}

var _ Locker = (*FieldLocker)(nil)

func (l *FieldLocker) TryAcquire(ctx context.Context, key LockKey, ttl time.Duration) (Lease, error) {
	now := l.now()
	expiresAt := now.Add(ttl)
	ok, err := l.store.CompareAndSetLock(ctx, key.PlanID, key.UserID, now, expiresAt)
	if err != nil || !ok {
		return nil, err
	}
	return &fieldLease{store: l.store, key: key, expiresAt: expiresAt}, nil
}

type fieldLease struct {
	store     lockFields
	key       LockKey
	expiresAt time.Time
}

func (l *fieldLease) Release(ctx context.Context) error {
	_, err := l.store.ClearLock(ctx, l.key.PlanID, l.key.UserID, l.expiresAt)
	return err
}
