package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// seedGroup creates an owner, a group and the named participants.
func seedGroup(t *testing.T, store *Store, names ...string) (*models.Group, []*models.Participant) {
	t.Helper()
	ctx := context.Background()

	owner := &models.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x", IsActive: true}
	if err := store.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	group := &models.Group{OwnerID: owner.ID, Name: "Family"}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	participants := make([]*models.Participant, len(names))
	for i, name := range names {
		participants[i] = &models.Participant{Name: name, Email: name + "@example.com"}
	}
	if len(participants) > 0 {
		if err := store.AddParticipants(ctx, group.ID, participants); err != nil {
			t.Fatalf("AddParticipants failed: %v", err)
		}
	}
	return group, participants
}

func runFor(group *models.Group, year int, pairs ...*models.Participant) *models.AssignmentRun {
	run := &models.AssignmentRun{ID: uuid.NewString(), GroupID: group.ID, Year: year}
	for i := 0; i+1 < len(pairs); i += 2 {
		run.Records = append(run.Records, models.AssignmentRecord{
			GiverID:      pairs[i].ID,
			ReceiverID:   pairs[i+1].ID,
			GiverName:    pairs[i].Name,
			ReceiverName: pairs[i+1].Name,
		})
	}
	return run
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := &models.User{Email: "alice@example.com", PasswordHash: "hash", IsActive: true}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 || user.CreatedAt == 0 {
		t.Errorf("expected ID and CreatedAt to be set, got %+v", user)
	}

	t.Run("duplicate email", func(t *testing.T) {
		err := store.CreateUser(ctx, &models.User{Email: "alice@example.com", PasswordHash: "other"})
		if !errors.Is(err, storage.ErrEmailExists) {
			t.Errorf("expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("lookup", func(t *testing.T) {
		byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		byID, err := store.GetUserByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		if byEmail.ID != user.ID || byID.Email != user.Email || !byID.IsActive {
			t.Errorf("lookup mismatch: %+v / %+v", byEmail, byID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := store.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.GetUserByID(ctx, 9999); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, _ := seedGroup(t, store)

	group.Name = "Office"
	if err := store.UpdateGroup(ctx, group); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}

	got, err := store.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Name != "Office" || got.UpdatedAt == 0 {
		t.Errorf("expected renamed group with UpdatedAt, got %+v", got)
	}

	other := &models.Group{OwnerID: group.OwnerID, Name: "Friends"}
	if err := store.CreateGroup(ctx, other); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	groups, err := store.ListGroupsByOwner(ctx, group.OwnerID)
	if err != nil {
		t.Fatalf("ListGroupsByOwner failed: %v", err)
	}
	if len(groups) != 2 || groups[0].ID != group.ID {
		t.Errorf("expected 2 groups oldest first, got %+v", groups)
	}

	if err := store.UpdateGroup(ctx, &models.Group{ID: 9999, Name: "x"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteGroupCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, p := seedGroup(t, store, "alice", "bob")

	if err := store.SetRestrictions(ctx, group.ID, p[0].ID, []int64{p[1].ID}); err != nil {
		t.Fatalf("SetRestrictions failed: %v", err)
	}
	snap, err := store.Snapshot(ctx, group.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if err := store.RecordAssignmentHistory(ctx, runFor(group, 2024, p[0], p[1], p[1], p[0]), snap.Group.Revision); err != nil {
		t.Fatalf("RecordAssignmentHistory failed: %v", err)
	}

	if err := store.DeleteGroup(ctx, group.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	if _, err := store.GetGroup(ctx, group.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	for _, table := range []string{"participants", "participant_restrictions", "assignment_runs", "assignment_history"} {
		var n int
		if err := store.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s: expected 0 rows after group delete, got %d", table, n)
		}
	}
}

func TestParticipants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, p := seedGroup(t, store, "alice", "bob", "carol")

	t.Run("bulk add is atomic", func(t *testing.T) {
		err := store.AddParticipants(ctx, group.ID, []*models.Participant{
			{Name: "dave", Email: "dave@example.com"},
			{Name: "alice again", Email: "alice@example.com"},
		})
		if !errors.Is(err, storage.ErrDuplicateEmail) {
			t.Fatalf("expected ErrDuplicateEmail, got %v", err)
		}
		list, err := store.ListParticipants(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(list) != 3 {
			t.Errorf("expected 3 participants after failed bulk add, got %d", len(list))
		}
	})

	t.Run("update", func(t *testing.T) {
		updated := &models.Participant{ID: p[1].ID, GroupID: group.ID, Name: "Bobby", Email: "bobby@example.com"}
		if err := store.UpdateParticipant(ctx, updated); err != nil {
			t.Fatalf("UpdateParticipant failed: %v", err)
		}
		got, err := store.GetParticipant(ctx, group.ID, p[1].ID)
		if err != nil {
			t.Fatalf("GetParticipant failed: %v", err)
		}
		if got.Name != "Bobby" || got.Email != "bobby@example.com" {
			t.Errorf("update not applied: %+v", got)
		}

		clash := &models.Participant{ID: p[1].ID, GroupID: group.ID, Name: "Bobby", Email: "carol@example.com"}
		if err := store.UpdateParticipant(ctx, clash); !errors.Is(err, storage.ErrDuplicateEmail) {
			t.Errorf("expected ErrDuplicateEmail, got %v", err)
		}
	})

	t.Run("participant of another group is not found", func(t *testing.T) {
		other, _ := seedGroup(t, store, "zed")
		if _, err := store.GetParticipant(ctx, other.ID, p[0].ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := store.RemoveParticipant(ctx, other.ID, p[0].ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("mutations bump revision", func(t *testing.T) {
		before, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if err := store.SetRestrictions(ctx, group.ID, p[0].ID, nil); err != nil {
			t.Fatalf("SetRestrictions failed: %v", err)
		}
		after, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if after.Revision <= before.Revision {
			t.Errorf("expected revision to grow, got %d -> %d", before.Revision, after.Revision)
		}
	})
}

func TestRestrictions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, p := seedGroup(t, store, "alice", "bob", "carol")
	alice, bob, carol := p[0], p[1], p[2]

	if err := store.SetRestrictions(ctx, group.ID, alice.ID, []int64{carol.ID, bob.ID, carol.ID}); err != nil {
		t.Fatalf("SetRestrictions failed: %v", err)
	}
	got, err := store.GetParticipant(ctx, group.ID, alice.ID)
	if err != nil {
		t.Fatalf("GetParticipant failed: %v", err)
	}
	if len(got.AllowedReceivers) != 2 {
		t.Errorf("expected 2 deduplicated receivers, got %v", got.AllowedReceivers)
	}

	t.Run("self", func(t *testing.T) {
		err := store.SetRestrictions(ctx, group.ID, alice.ID, []int64{alice.ID})
		if !errors.Is(err, storage.ErrSelfRestriction) {
			t.Errorf("expected ErrSelfRestriction, got %v", err)
		}
	})

	t.Run("foreign receiver", func(t *testing.T) {
		_, others := seedGroup(t, store, "zed")
		err := store.SetRestrictions(ctx, group.ID, alice.ID, []int64{bob.ID, others[0].ID})
		if !errors.Is(err, storage.ErrUnknownReceiver) {
			t.Errorf("expected ErrUnknownReceiver, got %v", err)
		}
		// the failed call leaves the old set in place
		got, _ := store.GetParticipant(ctx, group.ID, alice.ID)
		if len(got.AllowedReceivers) != 2 {
			t.Errorf("expected restrictions unchanged, got %v", got.AllowedReceivers)
		}
	})

	t.Run("removal purges both directions", func(t *testing.T) {
		if err := store.SetRestrictions(ctx, group.ID, carol.ID, []int64{alice.ID}); err != nil {
			t.Fatalf("SetRestrictions failed: %v", err)
		}
		if err := store.RemoveParticipant(ctx, group.ID, carol.ID); err != nil {
			t.Fatalf("RemoveParticipant failed: %v", err)
		}

		list, err := store.ListParticipants(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 participants, got %d", len(list))
		}
		for _, participant := range list {
			for _, id := range participant.AllowedReceivers {
				if id == carol.ID {
					t.Errorf("%s still allows removed participant", participant.Name)
				}
			}
		}
		if list[0].ID != alice.ID || len(list[0].AllowedReceivers) != 1 || list[0].AllowedReceivers[0] != bob.ID {
			t.Errorf("expected alice to keep only bob, got %+v", list[0])
		}
	})
}

func TestAssignmentHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, p := seedGroup(t, store, "alice", "bob", "carol")
	alice, bob, carol := p[0], p[1], p[2]

	snap, err := store.Snapshot(ctx, group.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Participants) != 3 || len(snap.History) != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	run := runFor(group, 2024, alice, bob, bob, carol, carol, alice)
	if err := store.RecordAssignmentHistory(ctx, run, snap.Group.Revision); err != nil {
		t.Fatalf("RecordAssignmentHistory failed: %v", err)
	}

	t.Run("same year is rejected", func(t *testing.T) {
		again := runFor(group, 2024, alice, carol, carol, bob, bob, alice)
		err := store.RecordAssignmentHistory(ctx, again, snap.Group.Revision)
		if !errors.Is(err, storage.ErrAlreadyAssigned) {
			t.Errorf("expected ErrAlreadyAssigned, got %v", err)
		}
	})

	t.Run("stale revision is rejected", func(t *testing.T) {
		if err := store.SetRestrictions(ctx, group.ID, alice.ID, nil); err != nil {
			t.Fatalf("SetRestrictions failed: %v", err)
		}
		stale := runFor(group, 2025, alice, carol, carol, bob, bob, alice)
		err := store.RecordAssignmentHistory(ctx, stale, snap.Group.Revision)
		if !errors.Is(err, storage.ErrSnapshotChanged) {
			t.Fatalf("expected ErrSnapshotChanged, got %v", err)
		}

		// The failed write must not hold the year.
		fresh, err := store.Snapshot(ctx, group.ID)
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if fresh.HasYear(2025) {
			t.Error("expected no records for 2025 after a stale write")
		}
		if err := store.RecordAssignmentHistory(ctx, stale, fresh.Group.Revision); err != nil {
			t.Errorf("retry with fresh revision failed: %v", err)
		}
	})

	t.Run("history keeps names after removal", func(t *testing.T) {
		if err := store.RemoveParticipant(ctx, group.ID, bob.ID); err != nil {
			t.Fatalf("RemoveParticipant failed: %v", err)
		}
		records, err := store.GetHistory(ctx, group.ID, 2024)
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}
		// ordered by giver name
		if records[0].GiverName != "alice" || records[1].GiverName != "bob" || records[1].ReceiverName != "carol" {
			t.Errorf("unexpected records: %+v", records)
		}
		if records[0].CreatedAt == 0 {
			t.Error("expected CreatedAt from the run")
		}
	})

	t.Run("all years", func(t *testing.T) {
		records, err := store.GetHistory(ctx, group.ID, 0)
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if len(records) != 6 || records[0].Year != 2024 || records[5].Year != 2025 {
			t.Errorf("expected 6 records ordered by year, got %+v", records)
		}
	})

	t.Run("delete year", func(t *testing.T) {
		if err := store.DeleteAssignments(ctx, group.ID, 2024); err != nil {
			t.Fatalf("DeleteAssignments failed: %v", err)
		}
		if err := store.DeleteAssignments(ctx, group.ID, 2024); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
		records, err := store.GetHistory(ctx, group.ID, 2024)
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		if _, err := store.GetHistory(ctx, 9999, 0); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.Snapshot(ctx, 9999); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestConcurrentRecordSameYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, p := seedGroup(t, store, "alice", "bob")

	snap, err := store.Snapshot(ctx, group.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RecordAssignmentHistory(ctx, runFor(group, 2024, p[0], p[1], p[1], p[0]), snap.Group.Revision)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, storage.ErrAlreadyAssigned):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || rejected != writers-1 {
		t.Errorf("expected 1 success and %d rejections, got %d and %d", writers-1, ok, rejected)
	}
	records, err := store.GetHistory(ctx, group.ID, 2024)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected exactly one run of 2 records, got %d", len(records))
	}
}

func TestRebind(t *testing.T) {
	got := postgresDialect.rebind("SELECT a FROM t WHERE b = ? AND c IN (?, ?)")
	want := "SELECT a FROM t WHERE b = $1 AND c IN ($2, $3)"
	if got != want {
		t.Errorf("rebind: got %q, want %q", got, want)
	}
	if q := sqliteDialect.rebind("x = ?"); q != "x = ?" {
		t.Errorf("sqlite rebind changed query: %q", q)
	}
}

func TestOpen_UnsupportedType(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Error("expected error for unsupported database type")
	}
}

// TestPostgres runs the shared scenarios against a live server when
// TEST_POSTGRES_URL is set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	store, err := Open(ctx, "postgres", dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	group, p := seedGroup(t, store, "alice", "bob")
	defer store.DeleteGroup(ctx, group.ID)

	snap, err := store.Snapshot(ctx, group.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if err := store.RecordAssignmentHistory(ctx, runFor(group, 2024, p[0], p[1], p[1], p[0]), snap.Group.Revision); err != nil {
		t.Fatalf("RecordAssignmentHistory failed: %v", err)
	}
	err = store.RecordAssignmentHistory(ctx, runFor(group, 2024, p[0], p[1], p[1], p[0]), snap.Group.Revision)
	if !errors.Is(err, storage.ErrAlreadyAssigned) {
		t.Errorf("expected ErrAlreadyAssigned, got %v", err)
	}
	if err := store.AddParticipants(ctx, group.ID, []*models.Participant{{Name: "a", Email: "alice@example.com"}}); !errors.Is(err, storage.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}
