package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftlog-app/driftlog/backend/internal/dberr"
	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"golang.org/x/sync/errgroup"
)

// MaxBatchSize caps batch status resolution to keep the two underlying
// queries bounded.
const MaxBatchSize = 50

// InteractionService owns the like, bookmark and follow lifecycle.
//
// Concurrent requests racing on the same (kind, user, target) pair are not
// serialized with locks or transactions. Every mutation is a single atomic
// statement, and the two outcomes a race can produce are absorbed instead:
// a duplicate-key failure on create means another request already activated
// the pair, and a missing row on delete means another request already
// deactivated it. Either way the state the caller asked for holds, so the
// caller sees success. The unique index on the pair is what guarantees no
// duplicate row can ever persist.
type InteractionService struct {
	interactions repositories.InteractionRepository
	targets      repositories.TargetRepository
	logger       *slog.Logger
}

// NewInteractionService creates a new InteractionService
func NewInteractionService(interactions repositories.InteractionRepository, targets repositories.TargetRepository, logger *slog.Logger) *InteractionService {
	return &InteractionService{
		interactions: interactions,
		targets:      targets,
		logger:       logger,
	}
}

func validateKindTarget(kind models.InteractionKind, target models.TargetRef) error {
	switch kind {
	case models.InteractionLike, models.InteractionBookmark:
		if target.Type == models.TargetTypePost || target.Type == models.TargetTypeActivity {
			return nil
		}
	case models.InteractionFollow:
		if target.Type == models.TargetTypeUser {
			return nil
		}
	}
	return fmt.Errorf("interaction kind %q cannot target %s", kind, target.Type)
}

// Toggle flips the pair's state and returns the state and count after the
// flip. The count honors the target's counting strategy, so for
// counter-backed targets it may briefly trail this very mutation.
func (s *InteractionService) Toggle(ctx context.Context, kind models.InteractionKind, target models.TargetRef, userID string) (*models.InteractionStatus, error) {
	if err := validateKindTarget(kind, target); err != nil {
		return nil, err
	}

	active := false
	existing, err := s.interactions.GetInteraction(ctx, kind, userID, target)
	switch {
	case err == nil:
		// Row exists: deactivate by primary key. A concurrent request may
		// have deleted it first, which is already the state we want.
		if derr := s.interactions.DeleteInteractionByID(ctx, existing.ID); derr != nil {
			if dberr.Classify(derr) != dberr.RecordNotFound {
				return nil, derr
			}
			s.logger.Debug("toggle delete raced a concurrent delete",
				"kind", kind, "target", target.String(), "user_id", userID)
		}
	case dberr.IsRecordNotFound(err):
		if aerr := s.activate(ctx, kind, target, userID); aerr != nil {
			return nil, aerr
		}
		active = true
	default:
		return nil, err
	}

	count, err := s.count(ctx, kind, target)
	if err != nil {
		return nil, err
	}
	return &models.InteractionStatus{Active: active, Count: count}, nil
}

// Ensure drives the pair to the desired state regardless of what it was.
// Repeating the call with the same desired value changes nothing.
func (s *InteractionService) Ensure(ctx context.Context, kind models.InteractionKind, target models.TargetRef, userID string, desired bool) (*models.InteractionStatus, error) {
	if err := validateKindTarget(kind, target); err != nil {
		return nil, err
	}

	if desired {
		if err := s.activate(ctx, kind, target, userID); err != nil {
			return nil, err
		}
	} else {
		// Delete by pair filter rather than by id: matching zero rows is
		// the idempotent no-op, not an error.
		if _, err := s.interactions.DeleteInteractionByPair(ctx, kind, userID, target); err != nil {
			return nil, err
		}
	}

	count, err := s.count(ctx, kind, target)
	if err != nil {
		return nil, err
	}
	return &models.InteractionStatus{Active: desired, Count: count}, nil
}

// Status resolves the pair's current state and the target's count. An empty
// userID is an anonymous read and always reports inactive.
func (s *InteractionService) Status(ctx context.Context, kind models.InteractionKind, target models.TargetRef, userID string) (*models.InteractionStatus, error) {
	if err := validateKindTarget(kind, target); err != nil {
		return nil, err
	}

	active := false
	if userID != "" {
		_, err := s.interactions.GetInteraction(ctx, kind, userID, target)
		switch {
		case err == nil:
			active = true
		case dberr.IsRecordNotFound(err):
		default:
			return nil, err
		}
	}

	count, err := s.count(ctx, kind, target)
	if err != nil {
		return nil, err
	}
	return &models.InteractionStatus{Active: active, Count: count}, nil
}

// BatchStatus resolves state and count for up to MaxBatchSize targets in
// one pass: one aggregate query for counts and one membership query for the
// user's own rows, run concurrently. Ids that match no target resolve to
// {active: false, count: 0} rather than failing the batch; callers asking
// about deleted targets get the same shape as everyone else.
func (s *InteractionService) BatchStatus(ctx context.Context, kind models.InteractionKind, targetType models.TargetType, targetIDs []string, userID string) (map[string]models.InteractionStatus, error) {
	result := make(map[string]models.InteractionStatus, len(targetIDs))
	if len(targetIDs) == 0 {
		return result, nil
	}
	if len(targetIDs) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d ids, limit %d", ErrBatchTooLarge, len(targetIDs), MaxBatchSize)
	}
	for _, id := range targetIDs {
		if id == "" {
			return nil, ErrEmptyTargetID
		}
	}
	if err := validateKindTarget(kind, models.TargetRef{Type: targetType, ID: targetIDs[0]}); err != nil {
		return nil, err
	}

	var (
		counts   map[string]int64
		counters map[string]models.ActivityCounters
		active   map[string]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if kind == models.InteractionLike && targetType == models.TargetTypeActivity {
			m, err := s.targets.ActivityCounters(gctx, targetIDs)
			counters = m
			return err
		}
		m, err := s.interactions.CountForTargets(gctx, kind, targetType, targetIDs)
		counts = m
		return err
	})
	if userID != "" {
		g.Go(func() error {
			m, err := s.interactions.ActiveTargetIDs(gctx, kind, userID, targetType, targetIDs)
			active = m
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, id := range targetIDs {
		status := models.InteractionStatus{Active: active[id]}
		if counters != nil {
			status.Count = counters[id].LikesCount
		} else {
			status.Count = counts[id]
		}
		result[id] = status
	}
	return result, nil
}

// activate creates the pair's row, treating a lost creation race as
// success. A foreign key failure means the target vanished after the
// existence check, which is reported the same way as never existing.
func (s *InteractionService) activate(ctx context.Context, kind models.InteractionKind, target models.TargetRef, userID string) error {
	exists, err := s.targets.TargetExists(ctx, target)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}

	row, err := models.NewInteraction(kind, userID, target)
	if err != nil {
		return err
	}
	err = s.interactions.CreateInteraction(ctx, row)
	switch dberr.Classify(err) {
	case dberr.UniqueViolation:
		s.logger.Debug("interaction create raced an identical row",
			"kind", kind, "target", target.String(), "user_id", userID)
		return nil
	case dberr.ForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}
	return err
}

// count picks the counting strategy per target variant: denormalized column
// read where one exists, live aggregate everywhere else.
func (s *InteractionService) count(ctx context.Context, kind models.InteractionKind, target models.TargetRef) (int64, error) {
	if kind == models.InteractionLike && target.HasCounters() {
		return s.targets.ActivityLikesCount(ctx, target.ID)
	}
	return s.interactions.CountForTarget(ctx, kind, target)
}
