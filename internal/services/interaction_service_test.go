package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// blindLookups reports every pair lookup as a miss. It reproduces the
// interleaving where all concurrent lookups run before any create lands, so
// every toggle takes the create path and the unique index arbitrates.
type blindLookups struct {
	repositories.InteractionRepository
}

func (blindLookups) GetInteraction(context.Context, models.InteractionKind, string, models.TargetRef) (*models.Interaction, error) {
	return nil, gorm.ErrRecordNotFound
}

// staleRow reports a pair lookup hit for a row the store no longer holds,
// reproducing the interleaving where a concurrent toggle deleted it in
// between the lookup and the delete.
type staleRow struct {
	repositories.InteractionRepository
	row *models.Interaction
}

func (s staleRow) GetInteraction(context.Context, models.InteractionKind, string, models.TargetRef) (*models.Interaction, error) {
	row := *s.row
	return &row, nil
}

// fkRejects fails every insert the way the database does when the target
// row vanished after the existence check passed.
type fkRejects struct {
	repositories.InteractionRepository
}

func (fkRejects) CreateInteraction(context.Context, *models.Interaction) error {
	return gorm.ErrForeignKeyViolated
}

func seedLike(t *testing.T, f *fixture, userID string, target models.TargetRef) {
	t.Helper()
	row, err := models.NewInteraction(models.InteractionLike, userID, target)
	require.NoError(t, err)
	require.NoError(t, f.interactions.CreateInteraction(context.Background(), row))
}

func TestToggleActivateThenDeactivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	target := models.PostTarget("post-1")
	for i := 1; i <= 4; i++ {
		seedLike(t, f, fmt.Sprintf("user-%d", i), target)
	}
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	status, err := svc.Toggle(ctx, models.InteractionLike, target, "user-5")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, int64(5), status.Count)

	status, err = svc.Toggle(ctx, models.InteractionLike, target, "user-5")
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, int64(4), status.Count)
	assert.Equal(t, 4, f.interactions.rowCount())
}

func TestToggleRejectsMissingTarget(t *testing.T) {
	f := newFixture()
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	_, err := svc.Toggle(context.Background(), models.InteractionLike, models.PostTarget("ghost"), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTargetNotFound)
	assert.Equal(t, "TARGET_NOT_FOUND", ErrorCode(err))
	assert.Equal(t, 0, f.interactions.rowCount())
}

func TestToggleRejectsKindTargetMismatch(t *testing.T) {
	f := newFixture()
	f.addPost("post-1")
	f.addUser(models.User{ID: "user-2", Name: "Bo"})
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	tests := []struct {
		name   string
		kind   models.InteractionKind
		target models.TargetRef
	}{
		{"like on user", models.InteractionLike, models.UserTarget("user-2")},
		{"bookmark on user", models.InteractionBookmark, models.UserTarget("user-2")},
		{"follow on post", models.InteractionFollow, models.PostTarget("post-1")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Toggle(context.Background(), tc.kind, tc.target, "user-1")
			assert.Error(t, err)
		})
	}
	assert.Equal(t, 0, f.interactions.rowCount())
}

func TestToggleAbsorbsCreateRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	target := models.PostTarget("post-1")
	seedLike(t, f, "user-1", target)

	svc := NewInteractionService(blindLookups{f.interactions}, f.targets, testLogger())
	status, err := svc.Toggle(ctx, models.InteractionLike, target, "user-1")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, int64(1), status.Count)
	assert.Equal(t, 1, f.interactions.rowCount())
}

func TestToggleAbsorbsDeleteRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	target := models.PostTarget("post-1")
	ghost, err := models.NewInteraction(models.InteractionLike, "user-1", target)
	require.NoError(t, err)
	ghost.ID = "already-deleted"

	svc := NewInteractionService(staleRow{f.interactions, ghost}, f.targets, testLogger())
	status, err := svc.Toggle(ctx, models.InteractionLike, target, "user-1")
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, int64(0), status.Count)
}

func TestToggleReportsForeignKeyRaceAsTargetNotFound(t *testing.T) {
	f := newFixture()
	f.addPost("post-1")

	svc := NewInteractionService(fkRejects{f.interactions}, f.targets, testLogger())
	_, err := svc.Toggle(context.Background(), models.InteractionLike, models.PostTarget("post-1"), "user-1")
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestConcurrentTogglesFromInactive(t *testing.T) {
	f := newFixture()
	f.addPost("post-1")
	target := models.PostTarget("post-1")
	svc := NewInteractionService(blindLookups{f.interactions}, f.targets, testLogger())

	const callers = 8
	results := make([]*models.InteractionStatus, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Toggle(context.Background(), models.InteractionLike, target, "user-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Active)
		assert.Equal(t, int64(1), results[i].Count)
	}
	assert.Equal(t, 1, f.interactions.rowCount())
}

func TestEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	target := models.PostTarget("post-1")
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	for i := 0; i < 3; i++ {
		status, err := svc.Ensure(ctx, models.InteractionBookmark, target, "user-1", true)
		require.NoError(t, err)
		assert.True(t, status.Active)
		assert.Equal(t, int64(1), status.Count)
	}
	assert.Equal(t, 1, f.interactions.rowCount())

	for i := 0; i < 3; i++ {
		status, err := svc.Ensure(ctx, models.InteractionBookmark, target, "user-1", false)
		require.NoError(t, err)
		assert.False(t, status.Active)
		assert.Equal(t, int64(0), status.Count)
	}
	assert.Equal(t, 0, f.interactions.rowCount())
}

func TestConcurrentEnsureCreatesOneRow(t *testing.T) {
	f := newFixture()
	f.addPost("post-1")
	target := models.PostTarget("post-1")
	seedLike(t, f, "user-1", target)
	seedLike(t, f, "user-2", target)
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	const callers = 3
	results := make([]*models.InteractionStatus, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Ensure(context.Background(), models.InteractionLike, target, "user-9", true)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Active)
		assert.Equal(t, int64(3), results[i].Count)
	}
	assert.Equal(t, 3, f.interactions.rowCount())
	row, err := f.interactions.GetInteraction(context.Background(), models.InteractionLike, "user-9", target)
	require.NoError(t, err)
	assert.Equal(t, "user-9", row.UserID)
}

func TestEnsureFalseIsNoOpOnAbsentPair(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	status, err := svc.Ensure(ctx, models.InteractionLike, models.PostTarget("post-1"), "user-1", false)
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, int64(0), status.Count)

	// Deactivation does not need the target to still exist.
	status, err = svc.Ensure(ctx, models.InteractionLike, models.PostTarget("ghost"), "user-1", false)
	require.NoError(t, err)
	assert.False(t, status.Active)
}

func TestStatusAnonymousRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	target := models.PostTarget("post-1")
	seedLike(t, f, "user-1", target)
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	status, err := svc.Status(ctx, models.InteractionLike, target, "")
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, int64(1), status.Count)

	status, err = svc.Status(ctx, models.InteractionLike, target, "user-1")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, int64(1), status.Count)
}

func TestActivityLikeCountReadsCounterColumn(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addActivity("act-1")
	target := models.ActivityTarget("act-1")
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	status, err := svc.Toggle(ctx, models.InteractionLike, target, "user-1")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, int64(1), status.Count)

	// Drift the column away from the row count to prove reads come from
	// the column, not a live aggregate.
	f.targets.bumpLikes("act-1", 41)
	status, err = svc.Status(ctx, models.InteractionLike, target, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), status.Count)
}

func TestActivityBookmarkCountIsLive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addActivity("act-1")
	target := models.ActivityTarget("act-1")
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	_, err := svc.Toggle(ctx, models.InteractionBookmark, target, "user-1")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, models.InteractionBookmark, target, "user-2")
	require.NoError(t, err)

	// No counter column covers bookmarks, so the count must come from the
	// rows themselves; the likes column is still zero.
	status, err := svc.Status(ctx, models.InteractionBookmark, target, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Count)
}

func TestFollowToggle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addUser(models.User{ID: "user-alice", Name: "Alice"})
	f.addUser(models.User{ID: "user-bob", Name: "Bob"})
	target := models.UserTarget("user-bob")
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	status, err := svc.Toggle(ctx, models.InteractionFollow, target, "user-alice")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, int64(1), status.Count)

	followees, err := f.interactions.FolloweeIDs(ctx, "user-alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-bob"}, followees)

	status, err = svc.Toggle(ctx, models.InteractionFollow, target, "user-alice")
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, int64(0), status.Count)
}

func TestBatchStatusPosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	f.addPost("post-2")
	target := models.PostTarget("post-1")
	seedLike(t, f, "user-1", target)
	seedLike(t, f, "user-2", target)
	seedLike(t, f, "user-3", target)
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	result, err := svc.BatchStatus(ctx, models.InteractionLike, models.TargetTypePost, []string{"post-1", "post-2", "ghost"}, "user-1")
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, models.InteractionStatus{Active: true, Count: 3}, result["post-1"])
	assert.Equal(t, models.InteractionStatus{Active: false, Count: 0}, result["post-2"])
	assert.Equal(t, models.InteractionStatus{Active: false, Count: 0}, result["ghost"])

	// Anonymous callers get counts with every membership bit off.
	result, err = svc.BatchStatus(ctx, models.InteractionLike, models.TargetTypePost, []string{"post-1", "post-2"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.InteractionStatus{Active: false, Count: 3}, result["post-1"])
	assert.Equal(t, models.InteractionStatus{Active: false, Count: 0}, result["post-2"])
}

func TestBatchStatusActivityCounters(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addActivity("act-1")
	f.addActivity("act-2")
	seedLike(t, f, "user-1", models.ActivityTarget("act-1"))
	f.targets.bumpLikes("act-1", 7)
	f.targets.bumpLikes("act-2", 2)
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	result, err := svc.BatchStatus(ctx, models.InteractionLike, models.TargetTypeActivity, []string{"act-1", "act-2", "ghost"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.InteractionStatus{Active: true, Count: 8}, result["act-1"])
	assert.Equal(t, models.InteractionStatus{Active: false, Count: 2}, result["act-2"])
	assert.Equal(t, models.InteractionStatus{Active: false, Count: 0}, result["ghost"])
}

func TestBatchStatusValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	svc := NewInteractionService(f.interactions, f.targets, testLogger())

	result, err := svc.BatchStatus(ctx, models.InteractionLike, models.TargetTypePost, nil, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)

	oversized := make([]string, MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = fmt.Sprintf("post-%d", i)
	}
	_, err = svc.BatchStatus(ctx, models.InteractionLike, models.TargetTypePost, oversized, "user-1")
	assert.ErrorIs(t, err, ErrBatchTooLarge)

	atCap := oversized[:MaxBatchSize]
	result, err = svc.BatchStatus(ctx, models.InteractionLike, models.TargetTypePost, atCap, "user-1")
	require.NoError(t, err)
	assert.Len(t, result, MaxBatchSize)

	_, err = svc.BatchStatus(ctx, models.InteractionLike, models.TargetTypePost, []string{"post-1", ""}, "user-1")
	assert.ErrorIs(t, err, ErrEmptyTargetID)
}
