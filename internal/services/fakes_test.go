package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// The fakes below stand in for the Postgres repositories. They emulate the
// parts of the schema the services lean on: the composite unique indexes on
// interactions, the foreign keys on interactions and comments, and the
// triggers that keep the activity counter columns in step with row
// mutations. All stores are safe for concurrent use.

type fixture struct {
	targets      *fakeTargetRepo
	interactions *fakeInteractionRepo
	comments     *fakeCommentRepo
	users        *fakeUserRepo
}

func newFixture() *fixture {
	targets := &fakeTargetRepo{
		posts:      make(map[string]bool),
		activities: make(map[string]bool),
		users:      make(map[string]bool),
		counters:   make(map[string]*models.ActivityCounters),
	}
	return &fixture{
		targets:      targets,
		interactions: &fakeInteractionRepo{targets: targets, rows: make(map[string]models.Interaction)},
		comments:     &fakeCommentRepo{targets: targets, rows: make(map[string]models.Comment)},
		users:        &fakeUserRepo{rows: make(map[string]models.User)},
	}
}

func (f *fixture) addPost(id string) {
	f.targets.mu.Lock()
	defer f.targets.mu.Unlock()
	f.targets.posts[id] = true
}

func (f *fixture) addActivity(id string) {
	f.targets.mu.Lock()
	defer f.targets.mu.Unlock()
	f.targets.activities[id] = true
	f.targets.counters[id] = &models.ActivityCounters{}
}

func (f *fixture) addUser(user models.User) {
	f.targets.mu.Lock()
	f.targets.users[user.ID] = true
	f.targets.mu.Unlock()

	f.users.mu.Lock()
	f.users.rows[user.ID] = user
	f.users.mu.Unlock()
}

// fakeTargetRepo is the target-existence oracle plus the counter columns.
type fakeTargetRepo struct {
	mu         sync.Mutex
	posts      map[string]bool
	activities map[string]bool
	users      map[string]bool
	counters   map[string]*models.ActivityCounters
}

func (f *fakeTargetRepo) TargetExists(_ context.Context, target models.TargetRef) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch target.Type {
	case models.TargetTypePost:
		return f.posts[target.ID], nil
	case models.TargetTypeActivity:
		return f.activities[target.ID], nil
	case models.TargetTypeUser:
		return f.users[target.ID], nil
	}
	return false, nil
}

func (f *fakeTargetRepo) ActivityLikesCount(_ context.Context, activityID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.counters[activityID]; ok {
		return c.LikesCount, nil
	}
	return 0, nil
}

func (f *fakeTargetRepo) ActivityCommentsCount(_ context.Context, activityID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.counters[activityID]; ok {
		return c.CommentsCount, nil
	}
	return 0, nil
}

func (f *fakeTargetRepo) ActivityCounters(_ context.Context, activityIDs []string) (map[string]models.ActivityCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.ActivityCounters)
	for _, id := range activityIDs {
		if c, ok := f.counters[id]; ok {
			out[id] = *c
		}
	}
	return out, nil
}

// bumpLikes and bumpComments play the part of the counter triggers. Callers
// must hold their own store lock, not this one, when invoking them.
func (f *fakeTargetRepo) bumpLikes(activityID string, delta int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.counters[activityID]; ok {
		c.LikesCount += delta
	}
}

func (f *fakeTargetRepo) bumpComments(activityID string, delta int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.counters[activityID]; ok {
		c.CommentsCount += delta
	}
}

// fakeInteractionRepo is an interactions table with the unique pair indexes
// and target foreign keys enforced on insert.
type fakeInteractionRepo struct {
	mu      sync.Mutex
	targets *fakeTargetRepo
	rows    map[string]models.Interaction
}

func samePair(a, b models.Interaction) bool {
	return a.Kind == b.Kind && a.UserID == b.UserID && a.Target() == b.Target()
}

func (f *fakeInteractionRepo) targetExistsLocked(target models.TargetRef) bool {
	f.targets.mu.Lock()
	defer f.targets.mu.Unlock()
	switch target.Type {
	case models.TargetTypePost:
		return f.targets.posts[target.ID]
	case models.TargetTypeActivity:
		return f.targets.activities[target.ID]
	case models.TargetTypeUser:
		return f.targets.users[target.ID]
	}
	return false
}

func (f *fakeInteractionRepo) GetInteraction(_ context.Context, kind models.InteractionKind, userID string, target models.TargetRef) (*models.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Kind == kind && row.UserID == userID && row.Target() == target {
			found := row
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeInteractionRepo) GetInteractionByID(_ context.Context, id string) (*models.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		return &row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeInteractionRepo) CreateInteraction(_ context.Context, row *models.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.targetExistsLocked(row.Target()) {
		return gorm.ErrForeignKeyViolated
	}
	for _, existing := range f.rows {
		if samePair(existing, *row) {
			return gorm.ErrDuplicatedKey
		}
	}

	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	f.rows[row.ID] = *row

	if row.Kind == models.InteractionLike && row.ActivityID != nil {
		f.targets.bumpLikes(*row.ActivityID, 1)
	}
	return nil
}

func (f *fakeInteractionRepo) DeleteInteractionByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.rows, id)
	if row.Kind == models.InteractionLike && row.ActivityID != nil {
		f.targets.bumpLikes(*row.ActivityID, -1)
	}
	return nil
}

func (f *fakeInteractionRepo) DeleteInteractionByPair(_ context.Context, kind models.InteractionKind, userID string, target models.TargetRef) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, row := range f.rows {
		if row.Kind == kind && row.UserID == userID && row.Target() == target {
			delete(f.rows, id)
			removed++
			if row.Kind == models.InteractionLike && row.ActivityID != nil {
				f.targets.bumpLikes(*row.ActivityID, -1)
			}
		}
	}
	return removed, nil
}

func (f *fakeInteractionRepo) CountForTarget(_ context.Context, kind models.InteractionKind, target models.TargetRef) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, row := range f.rows {
		if row.Kind == kind && row.Target() == target {
			count++
		}
	}
	return count, nil
}

func (f *fakeInteractionRepo) CountForTargets(_ context.Context, kind models.InteractionKind, targetType models.TargetType, targetIDs []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		wanted[id] = true
	}
	counts := make(map[string]int64)
	for _, row := range f.rows {
		t := row.Target()
		if row.Kind == kind && t.Type == targetType && wanted[t.ID] {
			counts[t.ID]++
		}
	}
	return counts, nil
}

func (f *fakeInteractionRepo) ActiveTargetIDs(_ context.Context, kind models.InteractionKind, userID string, targetType models.TargetType, targetIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		wanted[id] = true
	}
	active := make(map[string]bool)
	for _, row := range f.rows {
		t := row.Target()
		if row.Kind == kind && row.UserID == userID && t.Type == targetType && wanted[t.ID] {
			active[t.ID] = true
		}
	}
	return active, nil
}

func (f *fakeInteractionRepo) CountByUser(_ context.Context, kind models.InteractionKind, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, row := range f.rows {
		if row.Kind == kind && row.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeInteractionRepo) FolloweeIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, row := range f.rows {
		if row.Kind == models.InteractionFollow && row.UserID == userID && row.FolloweeID != nil {
			ids = append(ids, *row.FolloweeID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeInteractionRepo) ListByUser(_ context.Context, kind models.InteractionKind, targetType models.TargetType, userID string, after *models.Interaction, fetchLimit int) ([]models.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Interaction
	for _, row := range f.rows {
		if row.Kind != kind || row.UserID != userID {
			continue
		}
		switch targetType {
		case models.TargetTypePost:
			if row.PostID == nil {
				continue
			}
		case models.TargetTypeActivity:
			if row.ActivityID == nil {
				continue
			}
		case models.TargetTypeUser:
			if row.FolloweeID == nil {
				continue
			}
		}
		if after != nil && !strictlyAfter(row.CreatedAt, row.ID, after.CreatedAt, after.ID) {
			continue
		}
		rows = append(rows, row)
	}
	sortNewestFirst(rows, func(r models.Interaction) (time.Time, string) { return r.CreatedAt, r.ID })
	if len(rows) > fetchLimit {
		rows = rows[:fetchLimit]
	}
	return rows, nil
}

func (f *fakeInteractionRepo) ListFollowers(_ context.Context, followeeID string, after *models.Interaction, fetchLimit int) ([]models.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Interaction
	for _, row := range f.rows {
		if row.Kind != models.InteractionFollow || row.FolloweeID == nil || *row.FolloweeID != followeeID {
			continue
		}
		if after != nil && !strictlyAfter(row.CreatedAt, row.ID, after.CreatedAt, after.ID) {
			continue
		}
		rows = append(rows, row)
	}
	sortNewestFirst(rows, func(r models.Interaction) (time.Time, string) { return r.CreatedAt, r.ID })
	if len(rows) > fetchLimit {
		rows = rows[:fetchLimit]
	}
	return rows, nil
}

func (f *fakeInteractionRepo) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeCommentRepo is a comments table. Hard deletes enforce the restrict
// foreign key replies hold on their parent, and soft deletes refuse rows
// already stamped, both matching what the real statements do.
type fakeCommentRepo struct {
	mu      sync.Mutex
	targets *fakeTargetRepo
	rows    map[string]models.Comment
}

func (f *fakeCommentRepo) CreateComment(_ context.Context, comment *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := comment.Target()
	f.targets.mu.Lock()
	targetOK := (target.Type == models.TargetTypePost && f.targets.posts[target.ID]) ||
		(target.Type == models.TargetTypeActivity && f.targets.activities[target.ID])
	f.targets.mu.Unlock()
	if !targetOK {
		return gorm.ErrForeignKeyViolated
	}
	if comment.ParentID != nil {
		if _, ok := f.rows[*comment.ParentID]; !ok {
			return gorm.ErrForeignKeyViolated
		}
	}

	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now
	}
	if comment.UpdatedAt.IsZero() {
		comment.UpdatedAt = now
	}
	f.rows[comment.ID] = *comment

	if comment.ActivityID != nil {
		f.targets.bumpComments(*comment.ActivityID, 1)
	}
	return nil
}

func (f *fakeCommentRepo) GetCommentByID(_ context.Context, id string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		return &row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCommentRepo) ListComments(_ context.Context, target models.TargetRef, parentID *string, after *models.Comment, fetchLimit int) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Comment
	for _, row := range f.rows {
		if row.Target() != target {
			continue
		}
		if parentID == nil {
			if row.ParentID != nil {
				continue
			}
		} else if row.ParentID == nil || *row.ParentID != *parentID {
			continue
		}
		if after != nil && !strictlyAfter(row.CreatedAt, row.ID, after.CreatedAt, after.ID) {
			continue
		}
		rows = append(rows, row)
	}
	sortNewestFirst(rows, func(r models.Comment) (time.Time, string) { return r.CreatedAt, r.ID })
	if len(rows) > fetchLimit {
		rows = rows[:fetchLimit]
	}
	return rows, nil
}

func (f *fakeCommentRepo) HasReplies(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ParentID != nil && *row.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCommentRepo) ReplyCounts(_ context.Context, parentIDs []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}
	counts := make(map[string]int64)
	for _, row := range f.rows {
		if row.ParentID != nil && wanted[*row.ParentID] {
			counts[*row.ParentID]++
		}
	}
	return counts, nil
}

func (f *fakeCommentRepo) SoftDeleteComment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.DeletedAt.Valid {
		return gorm.ErrRecordNotFound
	}
	row.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	f.rows[id] = row
	return nil
}

func (f *fakeCommentRepo) HardDeleteComment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for _, other := range f.rows {
		if other.ParentID != nil && *other.ParentID == id {
			return gorm.ErrForeignKeyViolated
		}
	}
	delete(f.rows, id)
	if row.ActivityID != nil {
		f.targets.bumpComments(*row.ActivityID, -1)
	}
	return nil
}

func (f *fakeCommentRepo) CountForTarget(_ context.Context, target models.TargetRef) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, row := range f.rows {
		if row.Target() == target {
			count++
		}
	}
	return count, nil
}

// fakeUserRepo holds users for author resolution.
type fakeUserRepo struct {
	mu   sync.Mutex
	rows map[string]models.User
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	f.rows[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		return &row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Email == email {
			found := row
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetUserByFirebaseUID(_ context.Context, firebaseUID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.FirebaseUID != nil && *row.FirebaseUID == firebaseUID {
			found := row
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetUsersByIDs(_ context.Context, ids []string) (map[string]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.User)
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			out[id] = row
		}
	}
	return out, nil
}

func (f *fakeUserRepo) UpdateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeUserRepo) SearchUsers(_ context.Context, query string, limit int) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, row := range f.rows {
		if strings.Contains(strings.ToLower(row.Name), strings.ToLower(query)) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// strictlyAfter reports whether (t, id) sorts strictly later in the
// newest-first composite order than the (afterT, afterID) cursor row.
func strictlyAfter(t time.Time, id string, afterT time.Time, afterID string) bool {
	if t.Before(afterT) {
		return true
	}
	return t.Equal(afterT) && id < afterID
}

func sortNewestFirst[T any](rows []T, key func(T) (time.Time, string)) {
	sort.Slice(rows, func(i, j int) bool {
		ti, idi := key(rows[i])
		tj, idj := key(rows[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}
