package services

import "errors"

// Engine error taxonomy. Failure sites attach the ids involved with %w
// wrapping, so handlers test identity with errors.Is and still log useful
// context. Anything not in this list is an internal failure and propagates
// unchanged.
var (
	// ErrTargetNotFound: the post or activity (or followed user) does not
	// exist, or vanished between the existence check and the write.
	ErrTargetNotFound = errors.New("target not found")
	// ErrParentNotFound: the parent_id of a new comment matches no comment.
	ErrParentNotFound = errors.New("parent comment not found")
	// ErrParentDeleted: the parent comment exists but was soft-deleted.
	ErrParentDeleted = errors.New("parent comment is deleted")
	// ErrParentMismatch: the parent comment hangs on a different target.
	ErrParentMismatch = errors.New("parent comment belongs to a different target")
	// ErrCommentNotFound: the comment id matches no row, soft-deleted ones
	// included.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrUnauthorized: the acting user is neither the author nor an admin.
	ErrUnauthorized = errors.New("not allowed")

	// ErrBatchTooLarge and ErrEmptyTargetID reject malformed batch input
	// before any query runs.
	ErrBatchTooLarge = errors.New("too many target ids in one batch")
	ErrEmptyTargetID = errors.New("empty target id")
	// ErrEmptyContent: the comment body is empty once sanitized.
	ErrEmptyContent = errors.New("comment content is empty")
)

// ErrorCode returns the stable code callers put in response bodies.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTargetNotFound):
		return "TARGET_NOT_FOUND"
	case errors.Is(err, ErrParentNotFound):
		return "PARENT_NOT_FOUND"
	case errors.Is(err, ErrParentDeleted):
		return "PARENT_DELETED"
	case errors.Is(err, ErrParentMismatch):
		return "PARENT_MISMATCH"
	case errors.Is(err, ErrCommentNotFound):
		return "COMMENT_NOT_FOUND"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrBatchTooLarge):
		return "BATCH_TOO_LARGE"
	case errors.Is(err, ErrEmptyTargetID):
		return "EMPTY_TARGET_ID"
	case errors.Is(err, ErrEmptyContent):
		return "EMPTY_CONTENT"
	}
	return "INTERNAL"
}
