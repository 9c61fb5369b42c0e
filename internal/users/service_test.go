package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hr/meridian-hr/internal/events"
	"github.com/meridian-hr/meridian-hr/internal/permcache"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

type stubRepo struct {
	users  map[string]User
	nextID int
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: map[string]User{}}
}

func (r *stubRepo) CreateUser(_ context.Context, input CreateUserInput, passwordHash string) (User, error) {
	for _, u := range r.users {
		if u.Username == input.Username || u.Email == input.Email {
			return User{}, fmt.Errorf("user %q: %w", input.Username, shared.ErrConflict)
		}
	}
	r.nextID++
	user := User{
		ID:           fmt.Sprintf("u-%d", r.nextID),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		IsActive:     true,
		IsSuperuser:  input.IsSuperuser,
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *stubRepo) GetUser(_ context.Context, id string) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	return user, nil
}

func (r *stubRepo) ListUsers(_ context.Context, page, perPage int) ([]User, int, error) {
	var all []User
	for _, u := range r.users {
		all = append(all, u)
	}
	return all, len(all), nil
}

func (r *stubRepo) UpdateUser(_ context.Context, id string, input UpdateUserInput, newHash string) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	if input.Email != nil {
		user.Email = *input.Email
	}
	if newHash != "" {
		user.PasswordHash = newHash
	}
	r.users[id] = user
	return user, nil
}

func (r *stubRepo) DeactivateUser(_ context.Context, id string) error {
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	user.IsActive = false
	r.users[id] = user
	return nil
}

type stubRoles struct {
	names map[string][]string
}

func (s *stubRoles) RoleNames(_ context.Context, userID string) ([]string, error) {
	return s.names[userID], nil
}

func newUserService(t *testing.T) (*Service, *stubRepo, *stubRoles, *permcache.Cache, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := permcache.New(client, time.Minute)
	repo := newStubRepo()
	roles := &stubRoles{names: map[string][]string{}}
	svc := NewService(repo, roles, events.NewPublisher(client, nil), cache, nil, nil)
	return svc, repo, roles, cache, client
}

func TestCreateHashesPassword(t *testing.T) {
	svc, repo, _, _, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Username: "alice", Email: "alice@meridian.test", Password: "correct horse"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stored := repo.users[user.ID]
	if stored.PasswordHash == "correct horse" {
		t.Fatalf("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestSignUpNeverCreatesSuperuser(t *testing.T) {
	svc, _, _, _, _ := newUserService(t)
	user, err := svc.SignUp(context.Background(), CreateUserInput{
		Username: "mallory", Email: "mallory@meridian.test", Password: "whatever1", IsSuperuser: true,
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.IsSuperuser {
		t.Fatalf("sign-up must not grant superuser")
	}
}

func TestCreateDuplicateConflicts(t *testing.T) {
	svc, _, _, _, _ := newUserService(t)
	ctx := context.Background()
	input := CreateUserInput{Username: "alice", Email: "alice@meridian.test", Password: "correct horse"}
	if _, err := svc.Create(ctx, input); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(ctx, input); !errors.Is(err, shared.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateRehashesPassword(t *testing.T) {
	svc, repo, _, _, _ := newUserService(t)
	ctx := context.Background()
	user, err := svc.Create(ctx, CreateUserInput{Username: "alice", Email: "alice@meridian.test", Password: "old password"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldHash := repo.users[user.ID].PasswordHash

	newPassword := "new password"
	if _, err := svc.Update(ctx, "admin", user.ID, UpdateUserInput{Password: &newPassword}); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored := repo.users[user.ID]
	if stored.PasswordHash == oldHash {
		t.Fatalf("password hash unchanged")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(newPassword)); err != nil {
		t.Fatalf("new hash does not match new password: %v", err)
	}
}

func TestDeactivateKeepsRowAndPublishes(t *testing.T) {
	svc, repo, _, cache, client := newUserService(t)
	ctx := context.Background()
	user, err := svc.Create(ctx, CreateUserInput{Username: "alice", Email: "alice@meridian.test", Password: "correct horse"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := cache.SetPermissions(ctx, user.ID, []string{"employee:read"}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	sub := client.Subscribe(ctx, events.UserDeactivated)
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := svc.Deactivate(ctx, "admin", user.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	stored, ok := repo.users[user.ID]
	if !ok {
		t.Fatalf("account row deleted; deactivation must keep it")
	}
	if stored.IsActive {
		t.Fatalf("account still active")
	}
	if _, err := cache.GetPermissions(ctx, user.ID); !errors.Is(err, permcache.ErrMiss) {
		t.Fatalf("cache entry should be dropped, got %v", err)
	}
	select {
	case msg := <-sub.Channel():
		var ev events.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.EventType != events.UserDeactivated || ev.UserID != user.ID {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("user.deactivated not published")
	}
}

func TestGetIncludesRoles(t *testing.T) {
	svc, _, roles, _, _ := newUserService(t)
	ctx := context.Background()
	user, err := svc.Create(ctx, CreateUserInput{Username: "alice", Email: "alice@meridian.test", Password: "correct horse"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	roles.names[user.ID] = []string{"hr_manager"}

	got, err := svc.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "hr_manager" {
		t.Fatalf("roles not populated: %v", got.Roles)
	}
}
