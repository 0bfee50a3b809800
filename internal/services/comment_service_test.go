package services

import (
	"context"
	"testing"
	"time"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// commentFKRejects fails every insert the way the database does when the
// target vanished after the existence check passed.
type commentFKRejects struct {
	repositories.CommentRepository
}

func (commentFKRejects) CreateComment(context.Context, *models.Comment) error {
	return gorm.ErrForeignKeyViolated
}

// noRepliesReported claims a comment has no replies even when the store
// holds one, reproducing a reply landing between the check and the delete.
type noRepliesReported struct {
	repositories.CommentRepository
}

func (noRepliesReported) HasReplies(context.Context, string) (bool, error) {
	return false, nil
}

// staleComment reports a fetch hit for a row the store no longer holds.
type staleComment struct {
	repositories.CommentRepository
	row *models.Comment
}

func (s staleComment) GetCommentByID(context.Context, string) (*models.Comment, error) {
	row := *s.row
	return &row, nil
}

func strPtr(s string) *string {
	return &s
}

func newCommentService(f *fixture) *CommentService {
	return NewCommentService(f.comments, f.targets, f.users, PassthroughSigner{}, testLogger())
}

func seedComment(t *testing.T, f *fixture, c models.Comment) models.Comment {
	t.Helper()
	require.NoError(t, f.comments.CreateComment(context.Background(), &c))
	return c
}

func TestCreateCommentSanitizesContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	f.addUser(models.User{ID: "user-1", Name: "Ana", AvatarPath: "avatars/ana.png"})
	svc := newCommentService(f)

	view, err := svc.Create(ctx, models.PostTarget("post-1"), "user-1", "  Hello <b>world</b>  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", view.Content)
	assert.Equal(t, models.TargetTypePost, view.TargetType)
	assert.Equal(t, "post-1", view.TargetID)
	assert.Equal(t, "Ana", view.Author.Name)
	assert.Equal(t, "avatars/ana.png", view.Author.AvatarURL)
	assert.Nil(t, view.ParentID)
	assert.False(t, view.IsDeleted)
	assert.Equal(t, int64(0), view.ReplyCount)

	_, err = svc.Create(ctx, models.PostTarget("post-1"), "user-1", "   <b></b>  ", nil)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestCreateCommentTargetChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	svc := newCommentService(f)

	_, err := svc.Create(ctx, models.PostTarget("ghost"), "user-1", "hi", nil)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	// The oracle can say yes and the insert still lose to a concurrent
	// target delete; the foreign key failure reads the same to callers.
	raced := NewCommentService(commentFKRejects{f.comments}, f.targets, f.users, PassthroughSigner{}, testLogger())
	_, err = raced.Create(ctx, models.PostTarget("post-1"), "user-1", "hi", nil)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestCreateCommentParentChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	f.addPost("post-2")
	svc := newCommentService(f)

	parent := seedComment(t, f, models.Comment{ID: "c-parent", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "top"})
	buried := seedComment(t, f, models.Comment{
		ID: "c-buried", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "gone",
		DeletedAt: gorm.DeletedAt{Time: time.Now(), Valid: true},
	})
	elsewhere := seedComment(t, f, models.Comment{ID: "c-elsewhere", PostID: strPtr("post-2"), AuthorID: "user-1", Content: "other"})

	view, err := svc.Create(ctx, models.PostTarget("post-1"), "user-2", "reply", &parent.ID)
	require.NoError(t, err)
	assert.Equal(t, &parent.ID, view.ParentID)

	_, err = svc.Create(ctx, models.PostTarget("post-1"), "user-2", "reply", strPtr("nope"))
	assert.ErrorIs(t, err, ErrParentNotFound)

	_, err = svc.Create(ctx, models.PostTarget("post-1"), "user-2", "reply", &buried.ID)
	assert.ErrorIs(t, err, ErrParentDeleted)

	_, err = svc.Create(ctx, models.PostTarget("post-1"), "user-2", "reply", &elsewhere.ID)
	assert.ErrorIs(t, err, ErrParentMismatch)
}

func TestListRepliesWithIdenticalTimestamps(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	svc := newCommentService(f)

	seedComment(t, f, models.Comment{ID: "c-top", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "top"})
	burst := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"reply-1", "reply-2", "reply-3", "reply-4", "reply-5"} {
		seedComment(t, f, models.Comment{
			ID: id, PostID: strPtr("post-1"), AuthorID: "user-1",
			ParentID: strPtr("c-top"), Content: id, CreatedAt: burst, UpdatedAt: burst,
		})
	}

	target := models.PostTarget("post-1")
	var seen []string
	cursor := ""
	pages := 0
	for {
		page, err := svc.List(ctx, target, strPtr("c-top"), pagination.Params{Cursor: cursor, Limit: 2})
		require.NoError(t, err)
		pages++
		for _, item := range page.Items {
			seen = append(seen, item.ID)
		}
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cursor = page.NextCursor
	}

	// Every id exactly once, id tie-break keeps the order stable.
	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"reply-5", "reply-4", "reply-3", "reply-2", "reply-1"}, seen)
}

func TestListRejectsForeignCursor(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	f.addPost("post-2")
	svc := newCommentService(f)

	seedComment(t, f, models.Comment{ID: "c-one", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "a"})
	seedComment(t, f, models.Comment{ID: "c-two", PostID: strPtr("post-2"), AuthorID: "user-1", Content: "b"})
	seedComment(t, f, models.Comment{ID: "c-reply", PostID: strPtr("post-1"), AuthorID: "user-1", ParentID: strPtr("c-one"), Content: "c"})

	_, err := svc.List(ctx, models.PostTarget("post-1"), nil, pagination.Params{Cursor: "nope"})
	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)

	_, err = svc.List(ctx, models.PostTarget("post-1"), nil, pagination.Params{Cursor: "c-two"})
	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)

	_, err = svc.List(ctx, models.PostTarget("post-1"), nil, pagination.Params{Cursor: "c-reply"})
	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
}

func TestDeleteCommentWithRepliesLeavesPlaceholder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	f.addUser(models.User{ID: "user-1", Name: "Ana"})
	svc := newCommentService(f)
	target := models.PostTarget("post-1")

	top := seedComment(t, f, models.Comment{ID: "c-top", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "original text"})
	seedComment(t, f, models.Comment{ID: "c-r1", PostID: strPtr("post-1"), AuthorID: "user-2", ParentID: &top.ID, Content: "first"})
	seedComment(t, f, models.Comment{ID: "c-r2", PostID: strPtr("post-1"), AuthorID: "user-3", ParentID: &top.ID, Content: "second"})

	before, err := svc.Count(ctx, target)
	require.NoError(t, err)
	require.Equal(t, int64(3), before)

	result, err := svc.Delete(ctx, top.ID, "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, DeleteResultSoft, result)

	page, err := svc.List(ctx, target, nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	got := page.Items[0]
	assert.True(t, got.IsDeleted)
	assert.Equal(t, DeletedCommentPlaceholder, got.Content)
	assert.Equal(t, "Ana", got.Author.Name)
	assert.Equal(t, int64(2), got.ReplyCount)
	assert.False(t, got.CreatedAt.IsZero())

	replies, err := svc.List(ctx, target, &top.ID, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, replies.Items, 2)

	after, err := svc.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeleteCommentWithoutRepliesRemovesRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	svc := newCommentService(f)
	target := models.PostTarget("post-1")

	seedComment(t, f, models.Comment{ID: "c-keep", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "keep"})
	seedComment(t, f, models.Comment{ID: "c-drop", PostID: strPtr("post-1"), AuthorID: "user-2", Content: "drop"})

	// An admin may remove another author's comment.
	result, err := svc.Delete(ctx, "c-drop", "admin-1", true)
	require.NoError(t, err)
	assert.Equal(t, DeleteResultHard, result)

	page, err := svc.List(ctx, target, nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c-keep", page.Items[0].ID)

	count, err := svc.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteCommentAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	svc := newCommentService(f)

	seedComment(t, f, models.Comment{ID: "c-one", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "mine"})

	_, err := svc.Delete(ctx, "c-one", "user-2", false)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "UNAUTHORIZED", ErrorCode(err))

	_, err = svc.Delete(ctx, "ghost", "user-1", false)
	assert.ErrorIs(t, err, ErrCommentNotFound)

	// The row survived the unauthorized attempt.
	count, err := svc.Count(ctx, models.PostTarget("post-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteCommentTwiceIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	svc := newCommentService(f)

	top := seedComment(t, f, models.Comment{ID: "c-top", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "top"})
	seedComment(t, f, models.Comment{ID: "c-r1", PostID: strPtr("post-1"), AuthorID: "user-2", ParentID: &top.ID, Content: "r"})

	first, err := svc.Delete(ctx, top.ID, "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, DeleteResultSoft, first)

	second, err := svc.Delete(ctx, top.ID, "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, DeleteResultSoft, second)

	count, err := svc.Count(ctx, models.PostTarget("post-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDeleteCommentRaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")

	// A reply lands between the no-replies check and the hard delete. The
	// restrict foreign key rejects the delete and the soft path takes over.
	top := seedComment(t, f, models.Comment{ID: "c-top", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "top"})
	seedComment(t, f, models.Comment{ID: "c-late", PostID: strPtr("post-1"), AuthorID: "user-2", ParentID: &top.ID, Content: "late"})

	svc := NewCommentService(noRepliesReported{f.comments}, f.targets, f.users, PassthroughSigner{}, testLogger())
	result, err := svc.Delete(ctx, top.ID, "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, DeleteResultSoft, result)

	row, err := f.comments.GetCommentByID(ctx, top.ID)
	require.NoError(t, err)
	assert.True(t, row.DeletedAt.Valid)

	// A concurrent delete finishing first is absorbed as success.
	ghost := models.Comment{ID: "c-ghost", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "gone"}
	raced := NewCommentService(staleComment{f.comments, &ghost}, f.targets, f.users, PassthroughSigner{}, testLogger())
	result, err = raced.Delete(ctx, "c-ghost", "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, DeleteResultHard, result)
}

func TestActivityCommentsUseCounterColumn(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addActivity("act-1")
	f.addUser(models.User{ID: "user-1", Name: "Ana"})
	svc := newCommentService(f)
	target := models.ActivityTarget("act-1")

	top, err := svc.Create(ctx, target, "user-1", "first", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, target, "user-1", "reply", &top.ID)
	require.NoError(t, err)

	// Inserts alone moved the counter; the service never writes it.
	count, err := svc.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Soft delete keeps the row as a placeholder, so the counter holds.
	result, err := svc.Delete(ctx, top.ID, "user-1", false)
	require.NoError(t, err)
	require.Equal(t, DeleteResultSoft, result)
	count, err = svc.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	page, err := svc.List(ctx, target, nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].IsDeleted)
}

func TestListCountParity(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	svc := newCommentService(f)
	target := models.PostTarget("post-1")

	countAllVisible := func() int64 {
		page, err := svc.List(ctx, target, nil, pagination.Params{Limit: pagination.MaxLimit})
		require.NoError(t, err)
		total := int64(len(page.Items))
		for _, item := range page.Items {
			replies, err := svc.List(ctx, target, strPtr(item.ID), pagination.Params{Limit: pagination.MaxLimit})
			require.NoError(t, err)
			total += int64(len(replies.Items))
		}
		return total
	}

	seedComment(t, f, models.Comment{ID: "c-a", PostID: strPtr("post-1"), AuthorID: "user-1", Content: "a"})
	seedComment(t, f, models.Comment{ID: "c-b", PostID: strPtr("post-1"), AuthorID: "user-2", Content: "b"})
	seedComment(t, f, models.Comment{ID: "c-b1", PostID: strPtr("post-1"), AuthorID: "user-3", ParentID: strPtr("c-b"), Content: "b1"})

	count, err := svc.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, countAllVisible(), count)

	// Soft delete keeps the row visible, parity holds.
	_, err = svc.Delete(ctx, "c-b", "user-2", false)
	require.NoError(t, err)
	count, err = svc.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, countAllVisible(), count)

	// Hard delete drops the row from both sides of the ledger.
	_, err = svc.Delete(ctx, "c-a", "user-1", false)
	require.NoError(t, err)
	count, err = svc.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, countAllVisible(), count)
}

func TestListResolvesUnknownAuthorsToBareIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPost("post-1")
	svc := newCommentService(f)

	seedComment(t, f, models.Comment{ID: "c-one", PostID: strPtr("post-1"), AuthorID: "user-gone", Content: "orphan"})

	page, err := svc.List(ctx, models.PostTarget("post-1"), nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "user-gone", page.Items[0].Author.ID)
	assert.Empty(t, page.Items[0].Author.Name)
}
