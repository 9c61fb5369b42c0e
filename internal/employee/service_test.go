package employee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-hr/meridian-hr/internal/events"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

type stubRepo struct {
	employees map[string]Employee
	nextID    int
}

func newStubRepo() *stubRepo {
	return &stubRepo{employees: map[string]Employee{}}
}

func (r *stubRepo) CreateDepartment(_ context.Context, name, description string) (Department, error) {
	return Department{ID: "d-1", Name: name, Description: description}, nil
}

func (r *stubRepo) ListDepartments(context.Context) ([]Department, error) {
	return nil, nil
}

func (r *stubRepo) CreatePosition(_ context.Context, departmentID, title string) (Position, error) {
	return Position{ID: "p-1", DepartmentID: departmentID, Title: title}, nil
}

func (r *stubRepo) ListPositions(context.Context, string) ([]Position, error) {
	return nil, nil
}

func (r *stubRepo) CreateEmployee(_ context.Context, input HireInput) (Employee, error) {
	r.nextID++
	emp := Employee{
		ID:           fmt.Sprintf("e-%d", r.nextID),
		UserID:       input.UserID,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		DepartmentID: input.DepartmentID,
		PositionID:   input.PositionID,
		Status:       StatusActive,
		HiredAt:      input.HiredAt,
	}
	r.employees[emp.ID] = emp
	return emp, nil
}

func (r *stubRepo) GetEmployee(_ context.Context, id string) (Employee, error) {
	emp, ok := r.employees[id]
	if !ok {
		return Employee{}, fmt.Errorf("employee %s: %w", id, shared.ErrNotFound)
	}
	return emp, nil
}

func (r *stubRepo) ListEmployees(context.Context, int, int) ([]Employee, int, error) {
	var all []Employee
	for _, emp := range r.employees {
		all = append(all, emp)
	}
	return all, len(all), nil
}

func (r *stubRepo) UpdateEmployee(_ context.Context, id string, input UpdateInput) (Employee, error) {
	emp, ok := r.employees[id]
	if !ok {
		return Employee{}, fmt.Errorf("employee %s: %w", id, shared.ErrNotFound)
	}
	if input.Email != nil {
		emp.Email = *input.Email
	}
	if input.Status != nil {
		emp.Status = *input.Status
	}
	r.employees[id] = emp
	return emp, nil
}

func (r *stubRepo) TerminateEmployee(_ context.Context, id string, at time.Time) (Employee, error) {
	emp, ok := r.employees[id]
	if !ok || emp.Status == StatusTerminated {
		return Employee{}, fmt.Errorf("employee %s: %w", id, shared.ErrNotFound)
	}
	emp.Status = StatusTerminated
	emp.TerminatedAt = &at
	r.employees[id] = emp
	return emp, nil
}

func newHRService(t *testing.T) (*Service, *stubRepo, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := newStubRepo()
	svc := NewService(repo, events.NewPublisher(client, nil), nil, nil)
	return svc, repo, client
}

func listen(t *testing.T, client *redis.Client, channel string) <-chan *redis.Message {
	t.Helper()
	sub := client.Subscribe(context.Background(), channel)
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return sub.Channel()
}

func TestTerminatePublishesForLinkedAccount(t *testing.T) {
	svc, _, client := newHRService(t)
	ctx := context.Background()

	emp, err := svc.Hire(ctx, "admin", HireInput{
		UserID: "u-9", FirstName: "Ada", LastName: "Osei", Email: "ada@meridian.test",
		DepartmentID: "d-1", PositionID: "p-1",
	})
	if err != nil {
		t.Fatalf("hire: %v", err)
	}
	ch := listen(t, client, events.EmployeeTerminated)

	terminated, err := svc.Terminate(ctx, "admin", emp.ID)
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if terminated.Status != StatusTerminated || terminated.TerminatedAt == nil {
		t.Fatalf("unexpected state %+v", terminated)
	}
	select {
	case msg := <-ch:
		var ev events.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.UserID != "u-9" {
			t.Fatalf("event carries %q, want linked account id", ev.UserID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("employee.terminated not published")
	}
}

func TestTerminateTwiceIsNotFound(t *testing.T) {
	svc, _, _ := newHRService(t)
	ctx := context.Background()
	emp, err := svc.Hire(ctx, "admin", HireInput{
		FirstName: "Ada", LastName: "Osei", Email: "ada@meridian.test",
		DepartmentID: "d-1", PositionID: "p-1",
	})
	if err != nil {
		t.Fatalf("hire: %v", err)
	}
	if _, err := svc.Terminate(ctx, "admin", emp.ID); err != nil {
		t.Fatalf("first terminate: %v", err)
	}
	if _, err := svc.Terminate(ctx, "admin", emp.ID); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected not found on repeat, got %v", err)
	}
}

func TestUpdatePublishesChangedFields(t *testing.T) {
	svc, _, client := newHRService(t)
	ctx := context.Background()
	emp, err := svc.Hire(ctx, "admin", HireInput{
		UserID: "u-9", FirstName: "Ada", LastName: "Osei", Email: "ada@meridian.test",
		DepartmentID: "d-1", PositionID: "p-1",
	})
	if err != nil {
		t.Fatalf("hire: %v", err)
	}
	ch := listen(t, client, events.EmployeeUpdated)

	email := "ada.osei@meridian.test"
	if _, err := svc.Update(ctx, "admin", emp.ID, UpdateInput{Email: &email}); err != nil {
		t.Fatalf("update: %v", err)
	}
	select {
	case msg := <-ch:
		var ev events.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.UpdatedFields["email"] != email {
			t.Fatalf("event fields %v", ev.UpdatedFields)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("employee.updated not published")
	}
}

func TestHireDefaultsHireDate(t *testing.T) {
	svc, repo, _ := newHRService(t)
	emp, err := svc.Hire(context.Background(), "admin", HireInput{
		FirstName: "Ada", LastName: "Osei", Email: "ada@meridian.test",
		DepartmentID: "d-1", PositionID: "p-1",
	})
	if err != nil {
		t.Fatalf("hire: %v", err)
	}
	if repo.employees[emp.ID].HiredAt.IsZero() {
		t.Fatalf("hired_at not defaulted")
	}
}
