package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jjoniel/secretsanta/internal/matcher"
	"github.com/jjoniel/secretsanta/internal/metrics"
	"github.com/jjoniel/secretsanta/internal/models"
	"github.com/jjoniel/secretsanta/internal/notify"
	"github.com/jjoniel/secretsanta/internal/storage"
)

// Dispatcher delivers notifications and reports per-recipient failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, msgs []notify.Message) notify.Report
}

// AssignmentConfig tunes the assignment engine.
type AssignmentConfig struct {
	// Policy decides whether prior-year pairs may be reused when unavoidable.
	Policy matcher.HistoryPolicy

	// HistoryYears limits the forbidden pairs to the most recent N years
	// before the requested one. 0 means every prior year.
	HistoryYears int

	// Attempts bounds how often a run is restarted because the group
	// changed between its snapshot and its write. Values < 1 mean 1.
	Attempts int
}

// Assignment is one resolved giver -> receiver pair.
type Assignment struct {
	Giver    *models.Participant
	Receiver *models.Participant
}

// AssignmentResult is a committed assignment run.
type AssignmentResult struct {
	RunID       string
	Year        int
	Assignments []Assignment

	// Warnings describe prior-year pairs reused under the relaxed policy.
	Warnings []string

	// Notifications is nil when emails were not requested.
	Notifications *notify.Report

	Message string
}

// AssignmentService validates, computes, persists and announces assignments.
type AssignmentService struct {
	store      storage.Store
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	cfg        AssignmentConfig
	now        func() time.Time
}

// NewAssignmentService creates the assignment engine. dispatcher and m may be nil.
func NewAssignmentService(store storage.Store, dispatcher Dispatcher, m *metrics.Metrics, cfg AssignmentConfig) *AssignmentService {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &AssignmentService{
		store:      store,
		dispatcher: dispatcher,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
	}
}

// committed is what one successful attempt wrote.
type committed struct {
	snap    *models.GroupSnapshot
	run     *models.AssignmentRun
	repeats []matcher.Pair
}

// CreateAssignments computes and stores the assignments of groupID for year
// (the current year when 0), then notifies the givers if sendEmails is set.
// Notification failures are reported in the result and never undo the run.
func (s *AssignmentService) CreateAssignments(ctx context.Context, ownerID, groupID int64, year int, sendEmails bool) (*AssignmentResult, error) {
	if year == 0 {
		year = s.now().Year()
	}
	slog.Info("CreateAssignments request received", "group_id", groupID, "year", year, "send_emails", sendEmails)

	if year < 1 || year > 9999 {
		return nil, invalid("year: must be between 1 and 9999")
	}
	if _, err := ownedGroup(ctx, s.store, ownerID, groupID); err != nil {
		return nil, err
	}

	var (
		c   *committed
		err error
	)
	for attempt := 1; ; attempt++ {
		c, err = s.attempt(ctx, groupID, year)
		if !errors.Is(err, storage.ErrSnapshotChanged) || attempt >= s.cfg.Attempts {
			break
		}
		s.metrics.Retry()
		slog.Warn("Group changed during assignment, retrying", "group_id", groupID, "year", year, "attempt", attempt)
	}
	if err != nil {
		s.metrics.RunOutcome(outcomeOf(err))
		s.logFailure(groupID, year, err)
		return nil, err
	}
	s.metrics.RunOutcome(metrics.OutcomeCreated)
	s.metrics.Repeats(len(c.repeats))

	result := s.buildResult(c)
	slog.Info("Assignments created", "group_id", groupID, "year", year, "run_id", c.run.ID, "count", len(c.run.Records))

	if sendEmails && s.dispatcher != nil {
		// The run is committed; a client disconnect must not cut sending short.
		report := s.dispatcher.Dispatch(context.WithoutCancel(ctx), messagesFor(c))
		s.metrics.Notified(report.Sent(), len(report.Failed))
		result.Notifications = &report
		if len(report.Failed) > 0 {
			result.Message = fmt.Sprintf("Assignments created; %d of %d emails failed", len(report.Failed), report.Attempted)
		}
	}

	return result, nil
}

func (s *AssignmentService) attempt(ctx context.Context, groupID int64, year int) (*committed, error) {
	snap, err := s.store.Snapshot(ctx, groupID)
	if err != nil {
		return nil, notFoundOr(err, "Group")
	}
	if len(snap.Participants) < 2 {
		return nil, ErrInsufficientParticipants
	}
	if snap.HasYear(year) {
		return nil, &AlreadyAssignedError{Year: year}
	}

	in := s.matchInput(snap, year)

	start := time.Now()
	res, err := matcher.Match(in, matcher.Options{Policy: s.cfg.Policy})
	s.metrics.ObserveMatch(start)
	if err != nil {
		var ue *matcher.UnsatisfiableError
		if errors.As(err, &ue) {
			return nil, unsatisfiable(snap, ue)
		}
		return nil, fmt.Errorf("matching failed: %w", err)
	}

	repeats, err := matcher.Validate(in, res.Assignments)
	if err != nil {
		return nil, fmt.Errorf("matcher returned an invalid assignment: %w", err)
	}

	run := newRun(snap, year, res)
	if err := s.store.RecordAssignmentHistory(ctx, run, snap.Group.Revision); err != nil {
		if errors.Is(err, storage.ErrAlreadyAssigned) {
			return nil, &AlreadyAssignedError{Year: year}
		}
		return nil, err
	}

	return &committed{snap: snap, run: run, repeats: repeats}, nil
}

// matchInput builds the matching problem. Forbidden pairs come from years
// before the requested one, within the configured window.
func (s *AssignmentService) matchInput(snap *models.GroupSnapshot, year int) matcher.Input {
	in := matcher.Input{
		Participants: make([]int64, len(snap.Participants)),
		Allowed:      make(map[int64][]int64, len(snap.Participants)),
	}
	for i, p := range snap.Participants {
		in.Participants[i] = p.ID
		if !p.Unrestricted() {
			in.Allowed[p.ID] = p.AllowedReceivers
		}
	}

	seen := make(map[matcher.Pair]bool)
	for _, rec := range snap.History {
		if rec.Year >= year {
			continue
		}
		if s.cfg.HistoryYears > 0 && rec.Year < year-s.cfg.HistoryYears {
			continue
		}
		pair := matcher.Pair{Giver: rec.GiverID, Receiver: rec.ReceiverID}
		if !seen[pair] {
			seen[pair] = true
			in.Forbidden = append(in.Forbidden, pair)
		}
	}
	return in
}

func newRun(snap *models.GroupSnapshot, year int, res *matcher.Result) *models.AssignmentRun {
	byID := participantsByID(snap.Participants)
	run := &models.AssignmentRun{
		ID:      uuid.NewString(),
		GroupID: snap.Group.ID,
		Year:    year,
	}
	for _, pair := range res.Pairs() {
		giver, receiver := byID[pair.Giver], byID[pair.Receiver]
		run.Records = append(run.Records, models.AssignmentRecord{
			GiverID:      giver.ID,
			ReceiverID:   receiver.ID,
			GiverName:    giver.Name,
			ReceiverName: receiver.Name,
		})
	}
	return run
}

func (s *AssignmentService) buildResult(c *committed) *AssignmentResult {
	byID := participantsByID(c.snap.Participants)

	result := &AssignmentResult{
		RunID:   c.run.ID,
		Year:    c.run.Year,
		Message: "Assignments created successfully",
	}
	for _, rec := range c.run.Records {
		result.Assignments = append(result.Assignments, Assignment{
			Giver:    byID[rec.GiverID],
			Receiver: byID[rec.ReceiverID],
		})
	}
	slices.SortFunc(result.Assignments, func(a, b Assignment) int {
		return cmp.Or(cmp.Compare(a.Giver.Name, b.Giver.Name), cmp.Compare(a.Giver.ID, b.Giver.ID))
	})

	for _, pair := range c.repeats {
		last := 0
		for _, rec := range c.snap.History {
			if rec.GiverID == pair.Giver && rec.ReceiverID == pair.Receiver && rec.Year < c.run.Year && rec.Year > last {
				last = rec.Year
			}
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s gives to %s again (last paired in %d)",
			byID[pair.Giver].Name, byID[pair.Receiver].Name, last))
	}
	return result
}

func messagesFor(c *committed) []notify.Message {
	byID := participantsByID(c.snap.Participants)
	msgs := make([]notify.Message, 0, len(c.run.Records))
	for _, rec := range c.run.Records {
		msgs = append(msgs, notify.Message{
			GroupName:    c.snap.Group.Name,
			Year:         c.run.Year,
			GiverName:    rec.GiverName,
			To:           byID[rec.GiverID].Email,
			ReceiverName: rec.ReceiverName,
		})
	}
	return msgs
}

// unsatisfiable resolves the blocking participant IDs to names.
func unsatisfiable(snap *models.GroupSnapshot, ue *matcher.UnsatisfiableError) *UnsatisfiableError {
	byID := participantsByID(snap.Participants)
	names := func(ids []int64) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				out = append(out, p.Name)
			}
		}
		slices.Sort(out)
		return out
	}
	return &UnsatisfiableError{
		Givers:         names(ue.Givers),
		Receivers:      names(ue.Receivers),
		HistoryBlocked: ue.HistoryBlocked,
	}
}

func participantsByID(participants []*models.Participant) map[int64]*models.Participant {
	byID := make(map[int64]*models.Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	return byID
}

func outcomeOf(err error) string {
	var nf *NotFoundError
	switch {
	case errors.Is(err, ErrInsufficientParticipants):
		return metrics.OutcomeInsufficient
	case errors.Is(err, ErrAlreadyAssigned):
		return metrics.OutcomeAlreadyAssigned
	case errors.Is(err, matcher.ErrUnsatisfiable):
		return metrics.OutcomeUnsatisfiable
	case errors.Is(err, storage.ErrSnapshotChanged):
		return metrics.OutcomeSnapshotChanged
	case errors.As(err, &nf):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

func (s *AssignmentService) logFailure(groupID int64, year int, err error) {
	switch outcomeOf(err) {
	case metrics.OutcomeError, metrics.OutcomeSnapshotChanged:
		slog.Error("CreateAssignments failed", "group_id", groupID, "year", year, "error", err)
	default:
		slog.Warn("CreateAssignments rejected", "group_id", groupID, "year", year, "error", err)
	}
}

// GetHistory returns the group's assignment records, for one year if year > 0.
func (s *AssignmentService) GetHistory(ctx context.Context, ownerID, groupID int64, year int) ([]models.AssignmentRecord, error) {
	if _, err := ownedGroup(ctx, s.store, ownerID, groupID); err != nil {
		return nil, err
	}
	records, err := s.store.GetHistory(ctx, groupID, year)
	if err != nil {
		slog.Error("GetHistory failed", "group_id", groupID, "error", err)
		return nil, notFoundOr(err, "Group")
	}
	return records, nil
}

// DeleteAssignments removes a year's assignments so the year can be re-run.
func (s *AssignmentService) DeleteAssignments(ctx context.Context, ownerID, groupID int64, year int) error {
	slog.Info("DeleteAssignments request received", "group_id", groupID, "year", year)

	if _, err := ownedGroup(ctx, s.store, ownerID, groupID); err != nil {
		return err
	}
	if err := s.store.DeleteAssignments(ctx, groupID, year); err != nil {
		return notFoundOr(err, fmt.Sprintf("Assignments for %d", year))
	}

	slog.Info("Assignments deleted", "group_id", groupID, "year", year)
	return nil
}
