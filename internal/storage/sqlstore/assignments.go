package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/storage"
)

// Snapshot reads the group, its participants and its history in one
// transaction so the three agree with each other.
func (s *Store) Snapshot(ctx context.Context, groupID int64) (*models.GroupSnapshot, error) {
	var snap models.GroupSnapshot

	err := s.inTx(ctx, s.dialect.snapshot, func(tx *sql.Tx) error {
		group, err := s.getGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		snap.Group = *group

		snap.Participants, err = s.listParticipants(ctx, tx, groupID)
		if err != nil {
			return err
		}

		snap.History, err = s.history(ctx, tx, groupID, 0)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &snap, nil
}

// RecordAssignmentHistory writes a run and its records in one transaction.
//
// The run row goes in first: its (group_id, year) key is what makes a second
// writer for the same year fail. The revision is then compared under a row
// lock so registry changes since the snapshot abort the write.
func (s *Store) RecordAssignmentHistory(ctx context.Context, run *models.AssignmentRun, revision int64) error {
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().Unix()
	}

	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			s.rebind("INSERT INTO assignment_runs (id, group_id, year, created_at) VALUES (?, ?, ?, ?)"),
			run.ID, run.GroupID, run.Year, run.CreatedAt,
		)
		if isUniqueViolation(err) {
			return storage.ErrAlreadyAssigned
		}
		if err != nil {
			return fmt.Errorf("failed to insert assignment run: %w", err)
		}

		var current int64
		if err := tx.QueryRowContext(ctx,
			s.rebind("SELECT revision FROM groups WHERE id = ?"+s.dialect.lockRow),
			run.GroupID,
		).Scan(&current); err != nil {
			return fmt.Errorf("failed to read group revision: %w", err)
		}
		if current != revision {
			return storage.ErrSnapshotChanged
		}

		for i := range run.Records {
			rec := &run.Records[i]
			rec.GroupID = run.GroupID
			rec.Year = run.Year
			rec.CreatedAt = run.CreatedAt
			_, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO assignment_history (run_id, group_id, year, giver_id, receiver_id, giver_name, receiver_name)
				VALUES (?, ?, ?, ?, ?, ?, ?)`),
				run.ID, rec.GroupID, rec.Year, rec.GiverID, rec.ReceiverID, rec.GiverName, rec.ReceiverName,
			)
			if err != nil {
				return fmt.Errorf("failed to insert assignment record: %w", err)
			}
		}
		return nil
	})
}

// GetHistory returns the group's records, for one year when year > 0.
func (s *Store) GetHistory(ctx context.Context, groupID int64, year int) ([]models.AssignmentRecord, error) {
	if _, err := s.getGroup(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	return s.history(ctx, s.db, groupID, year)
}

func (s *Store) history(ctx context.Context, q querier, groupID int64, year int) ([]models.AssignmentRecord, error) {
	query := `
		SELECT h.group_id, h.year, h.giver_id, h.receiver_id, h.giver_name, h.receiver_name, r.created_at
		FROM assignment_history h
		JOIN assignment_runs r ON r.id = h.run_id
		WHERE h.group_id = ?`
	args := []any{groupID}
	if year > 0 {
		query += " AND h.year = ?"
		args = append(args, year)
	}
	query += " ORDER BY h.year, h.giver_name, h.giver_id"

	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment history: %w", err)
	}
	defer rows.Close()

	var records []models.AssignmentRecord
	for rows.Next() {
		var rec models.AssignmentRecord
		if err := rows.Scan(&rec.GroupID, &rec.Year, &rec.GiverID, &rec.ReceiverID, &rec.GiverName, &rec.ReceiverName, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignment history: %w", err)
	}

	return records, nil
}

// DeleteAssignments removes the run for a year; its records cascade.
func (s *Store) DeleteAssignments(ctx context.Context, groupID int64, year int) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("DELETE FROM assignment_runs WHERE group_id = ? AND year = ?"),
		groupID, year,
	)
	if err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}
	return expectRows(res, fmt.Errorf("assignments for %d: %w", year, storage.ErrNotFound))
}
