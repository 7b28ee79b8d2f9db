package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/storage"
)

// ListParticipants retrieves all participants of a group with their restrictions.
func (s *Store) ListParticipants(ctx context.Context, groupID int64) ([]*models.Participant, error) {
	return s.listParticipants(ctx, s.db, groupID)
}

func (s *Store) listParticipants(ctx context.Context, q querier, groupID int64) ([]*models.Participant, error) {
	rows, err := q.QueryContext(ctx,
		s.rebind("SELECT id, group_id, name, email, created_at FROM participants WHERE group_id = ? ORDER BY id"),
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	byID := make(map[int64]*models.Participant)
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Name, &p.Email, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	if len(participants) == 0 {
		return participants, nil
	}

	restrictionRows, err := q.QueryContext(ctx, s.rebind(`
		SELECT r.giver_id, r.receiver_id
		FROM participant_restrictions r
		JOIN participants p ON p.id = r.giver_id
		WHERE p.group_id = ?
		ORDER BY r.giver_id, r.receiver_id`),
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get restrictions: %w", err)
	}
	defer restrictionRows.Close()

	for restrictionRows.Next() {
		var giverID, receiverID int64
		if err := restrictionRows.Scan(&giverID, &receiverID); err != nil {
			return nil, fmt.Errorf("failed to scan restriction: %w", err)
		}
		if p, ok := byID[giverID]; ok {
			p.AllowedReceivers = append(p.AllowedReceivers, receiverID)
		}
	}
	if err := restrictionRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate restrictions: %w", err)
	}

	return participants, nil
}

// GetParticipant retrieves one participant of a group with its restrictions.
func (s *Store) GetParticipant(ctx context.Context, groupID, participantID int64) (*models.Participant, error) {
	p := &models.Participant{}
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id, group_id, name, email, created_at FROM participants WHERE id = ? AND group_id = ?"),
		participantID, groupID,
	).Scan(&p.ID, &p.GroupID, &p.Name, &p.Email, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %d: %w", participantID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT receiver_id FROM participant_restrictions WHERE giver_id = ? ORDER BY receiver_id"),
		participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get restrictions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var receiverID int64
		if err := rows.Scan(&receiverID); err != nil {
			return nil, fmt.Errorf("failed to scan restriction: %w", err)
		}
		p.AllowedReceivers = append(p.AllowedReceivers, receiverID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate restrictions: %w", err)
	}

	return p, nil
}

// AddParticipants inserts participants in one transaction.
func (s *Store) AddParticipants(ctx context.Context, groupID int64, participants []*models.Participant) error {
	now := time.Now().Unix()

	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.bumpRevision(ctx, tx, groupID); err != nil {
			return err
		}

		for _, p := range participants {
			p.GroupID = groupID
			if p.CreatedAt == 0 {
				p.CreatedAt = now
			}
			err := tx.QueryRowContext(ctx,
				s.rebind("INSERT INTO participants (group_id, name, email, created_at) VALUES (?, ?, ?, ?) RETURNING id"),
				p.GroupID, p.Name, p.Email, p.CreatedAt,
			).Scan(&p.ID)
			if isUniqueViolation(err) {
				return fmt.Errorf("%s: %w", p.Email, storage.ErrDuplicateEmail)
			}
			if err != nil {
				return fmt.Errorf("failed to insert participant: %w", err)
			}
		}
		return nil
	})
}

// UpdateParticipant changes a participant's name and email.
func (s *Store) UpdateParticipant(ctx context.Context, p *models.Participant) error {
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.bumpRevision(ctx, tx, p.GroupID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			s.rebind("UPDATE participants SET name = ?, email = ? WHERE id = ? AND group_id = ?"),
			p.Name, p.Email, p.ID, p.GroupID,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", p.Email, storage.ErrDuplicateEmail)
		}
		if err != nil {
			return fmt.Errorf("failed to update participant: %w", err)
		}
		return expectRows(res, fmt.Errorf("participant %d: %w", p.ID, storage.ErrNotFound))
	})
}

// RemoveParticipant deletes a participant and every restriction that names it,
// as giver or as receiver.
func (s *Store) RemoveParticipant(ctx context.Context, groupID, participantID int64) error {
	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.bumpRevision(ctx, tx, groupID); err != nil {
			return err
		}
		if err := s.checkMember(ctx, tx, groupID, participantID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			s.rebind("DELETE FROM participant_restrictions WHERE giver_id = ? OR receiver_id = ?"),
			participantID, participantID,
		); err != nil {
			return fmt.Errorf("failed to purge restrictions: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			s.rebind("DELETE FROM participants WHERE id = ? AND group_id = ?"),
			participantID, groupID,
		); err != nil {
			return fmt.Errorf("failed to delete participant: %w", err)
		}
		return nil
	})
}

// SetRestrictions replaces the allowed receivers of a giver.
func (s *Store) SetRestrictions(ctx context.Context, groupID, giverID int64, receiverIDs []int64) error {
	ids := slices.Clone(receiverIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if slices.Contains(ids, giverID) {
		return storage.ErrSelfRestriction
	}

	return s.inTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.bumpRevision(ctx, tx, groupID); err != nil {
			return err
		}
		if err := s.checkMember(ctx, tx, groupID, giverID); err != nil {
			return err
		}

		if len(ids) > 0 {
			args := make([]any, 0, len(ids)+1)
			args = append(args, groupID)
			for _, id := range ids {
				args = append(args, id)
			}
			var count int
			err := tx.QueryRowContext(ctx,
				s.rebind("SELECT COUNT(*) FROM participants WHERE group_id = ? AND id IN ("+placeholders(len(ids))+")"),
				args...,
			).Scan(&count)
			if err != nil {
				return fmt.Errorf("failed to check receivers: %w", err)
			}
			if count != len(ids) {
				return storage.ErrUnknownReceiver
			}
		}

		if _, err := tx.ExecContext(ctx,
			s.rebind("DELETE FROM participant_restrictions WHERE giver_id = ?"),
			giverID,
		); err != nil {
			return fmt.Errorf("failed to clear restrictions: %w", err)
		}

		for _, receiverID := range ids {
			if _, err := tx.ExecContext(ctx,
				s.rebind("INSERT INTO participant_restrictions (giver_id, receiver_id) VALUES (?, ?)"),
				giverID, receiverID,
			); err != nil {
				return fmt.Errorf("failed to insert restriction: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) checkMember(ctx context.Context, tx *sql.Tx, groupID, participantID int64) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		s.rebind("SELECT 1 FROM participants WHERE id = ? AND group_id = ?"),
		participantID, groupID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("participant %d: %w", participantID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check participant existence: %w", err)
	}
	return nil
}
