package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/storage/sqlstore"
)

// newTestStore opens a temp-dir SQLite database for one test.
func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	store, err := sqlstore.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newOwner(t *testing.T, store *sqlstore.Store) int64 {
	t.Helper()

	user := &models.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x", IsActive: true}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user.ID
}

func TestCreateGroup(t *testing.T) {
	store := newTestStore(t)
	svc := NewGroupService(store)
	owner := newOwner(t, store)

	group, err := svc.CreateGroup(context.Background(), owner, "  Roommates ")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if group.ID == 0 {
		t.Error("expected non-zero group ID")
	}
	if group.Name != "Roommates" {
		t.Errorf("name: expected 'Roommates', got '%s'", group.Name)
	}
	if group.CreatedAt == 0 {
		t.Error("expected non-zero CreatedAt")
	}
}

func TestCreateGroup_Validation(t *testing.T) {
	store := newTestStore(t)
	svc := NewGroupService(store)

	_, err := svc.CreateGroup(context.Background(), newOwner(t, store), "   ")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Problems) != 1 {
		t.Errorf("expected 1 problem, got %v", ve.Problems)
	}
}

func TestGroups_OwnerScoped(t *testing.T) {
	store := newTestStore(t)
	svc := NewGroupService(store)
	ctx := context.Background()
	alice, bob := newOwner(t, store), newOwner(t, store)

	group, err := svc.CreateGroup(ctx, alice, "Family")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if _, err := svc.CreateGroup(ctx, bob, "Office"); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	groups, err := svc.ListGroups(ctx, alice)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != group.ID {
		t.Errorf("expected only alice's group, got %+v", groups)
	}

	var nf *NotFoundError
	if _, err := svc.GetGroup(ctx, bob, group.ID); !errors.As(err, &nf) {
		t.Errorf("GetGroup by another owner: expected NotFoundError, got %v", err)
	}
	if _, err := svc.UpdateGroup(ctx, bob, group.ID, "Mine"); !errors.As(err, &nf) {
		t.Errorf("UpdateGroup by another owner: expected NotFoundError, got %v", err)
	}
	if err := svc.DeleteGroup(ctx, bob, group.ID); !errors.As(err, &nf) {
		t.Errorf("DeleteGroup by another owner: expected NotFoundError, got %v", err)
	}
	if _, err := svc.GetGroup(ctx, alice, 9999); !errors.As(err, &nf) {
		t.Errorf("GetGroup unknown: expected NotFoundError, got %v", err)
	}
}

func TestUpdateAndDeleteGroup(t *testing.T) {
	store := newTestStore(t)
	svc := NewGroupService(store)
	ctx := context.Background()
	owner := newOwner(t, store)

	group, err := svc.CreateGroup(ctx, owner, "Work Lunch")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	updated, err := svc.UpdateGroup(ctx, owner, group.ID, "Work Dinner")
	if err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}
	if updated.Name != "Work Dinner" || updated.UpdatedAt == 0 {
		t.Errorf("unexpected group after update: %+v", updated)
	}

	if err := svc.DeleteGroup(ctx, owner, group.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	var nf *NotFoundError
	if _, err := svc.GetGroup(ctx, owner, group.ID); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
}
