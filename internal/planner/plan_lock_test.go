package planner

import (
	"context"
	"testing"
	"time"
)

func TestFieldLocker(t *testing.T) {
	ctx := context.Background()
	repo := newTestPlanRepository(t)
	plan, err := repo.CreatePlan(ctx, draft("u1"))
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	key := LockKey{PlanID: plan.PlanID, UserID: "u1"}

	clock := testNow
	locker := NewFieldLocker(repo)
	locker.now = func() time.Time { return clock }

	first, err := locker.TryAcquire(ctx, key, DefaultLockTTL)
	if err != nil || first == nil {
		t.Fatalf("Expected first acquire to succeed, got %v, %v", first, err)
	}
	if busy, err := locker.TryAcquire(ctx, key, DefaultLockTTL); err != nil || busy != nil {
		t.Fatalf("Expected acquire to fail while the lock is live, got %v, %v", busy, err)
	}

	t.Run("expired lease does not release its successor", func(t *testing.T) {
		clock = testNow.Add(DefaultLockTTL + time.Second)
		second, err := locker.TryAcquire(ctx, key, DefaultLockTTL)
		if err != nil || second == nil {
			t.Fatalf("Expected takeover of the expired lock, got %v, %v", second, err)
		}

		if err := first.Release(ctx); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		if other, _ := locker.TryAcquire(ctx, key, DefaultLockTTL); other != nil {
			t.Fatalf("Expected the successor to still hold the lock")
		}

		if err := second.Release(ctx); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		p, err := repo.FindPlanByPlanID(ctx, plan.PlanID, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if p.IsExtending || p.LockExpiresAt != nil {
			t.Errorf("Expected lock fields to be cleared, got %+v", p)
		}
	})
}
