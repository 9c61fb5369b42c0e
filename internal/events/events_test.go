package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-hr/meridian-hr/internal/permcache"
)

func TestPermissionsChangedDeltas(t *testing.T) {
	oldPerms := []string{"employee:read", "payroll:read"}
	newPerms := []string{"employee:read", "department:read"}

	ev := NewPermissionsChanged("u-1", oldPerms, newPerms)

	if ev.EventType != UserPermissionsChanged {
		t.Fatalf("unexpected event type %q", ev.EventType)
	}
	if ev.EventID == "" || ev.Timestamp == "" {
		t.Fatalf("envelope missing event_id or timestamp")
	}
	if len(ev.AddedPermissions) != 1 || ev.AddedPermissions[0] != "department:read" {
		t.Fatalf("unexpected added %v", ev.AddedPermissions)
	}
	if len(ev.RemovedPermissions) != 1 || ev.RemovedPermissions[0] != "payroll:read" {
		t.Fatalf("unexpected removed %v", ev.RemovedPermissions)
	}
}

func TestSubscriberInvalidatesCacheOnRoleRemoved(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := permcache.New(client, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cache.SetPermissions(ctx, "u-1", []string{"employee:read", "payroll:read"}); err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}

	processed := make(chan Event, 1)
	handler := InvalidateOnAuthEvent(cache, slog.Default())
	sub := NewSubscriber(client, slog.Default(), func(ctx context.Context, ev Event) error {
		err := handler(ctx, ev)
		processed <- ev
		return err
	}, PatternUserEvents)
	go func() { _ = sub.Run(ctx) }()

	// Give the pattern subscription a moment to register.
	waitForSubscriber(t, client)

	pub := NewPublisher(client, slog.Default())
	if err := pub.Publish(ctx, NewRoleRemoved("u-1", "r-1", "hr_manager")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case ev := <-processed:
		if ev.RoleName != "hr_manager" {
			t.Fatalf("unexpected role name %q", ev.RoleName)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber did not receive event")
	}

	// A still-unexpired token would keep its embedded snapshot, but the
	// cache must now miss so the next read repopulates from fresh state.
	if _, err := cache.GetPermissions(ctx, "u-1"); !errors.Is(err, permcache.ErrMiss) {
		t.Fatalf("expected cache miss after invalidation, got %v", err)
	}
}

func TestDuplicateDeliveryIsNoOp(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := permcache.New(client, time.Minute)
	ctx := context.Background()

	handler := InvalidateOnAuthEvent(cache, nil)
	ev := NewUserDeactivated("u-2")
	for i := 0; i < 3; i++ {
		if err := handler(ctx, ev); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}
}

func TestPublishBestEffortSwallowsBrokerOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	pub := NewPublisher(client, slog.Default())
	// Must not panic or propagate: the originating mutation stays committed.
	pub.PublishBestEffort(context.Background(), NewUserDeactivated("u-3"))
}

func waitForSubscriber(t *testing.T, client *redis.Client) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := client.PubSubNumPat(context.Background()).Result()
		if err == nil && n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("subscriber never registered")
}
