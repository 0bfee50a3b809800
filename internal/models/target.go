package models

import "fmt"

// TargetType identifies which table a target reference points at.
type TargetType string

const (
	TargetTypePost     TargetType = "post"
	TargetTypeActivity TargetType = "activity"
	TargetTypeUser     TargetType = "user"
)

// TargetRef is a polymorphic reference to the row an interaction or comment
// is attached to. Posts are counted live; activities carry denormalized
// counter columns. User targets exist only for follow relations and are
// never accepted from request payloads.
type TargetRef struct {
	Type TargetType `json:"target_type"`
	ID   string     `json:"target_id"`
}

func PostTarget(id string) TargetRef     { return TargetRef{Type: TargetTypePost, ID: id} }
func ActivityTarget(id string) TargetRef { return TargetRef{Type: TargetTypeActivity, ID: id} }
func UserTarget(id string) TargetRef     { return TargetRef{Type: TargetTypeUser, ID: id} }

// HasCounters reports whether the target variant carries denormalized
// counter columns instead of being counted on demand.
func (t TargetRef) HasCounters() bool {
	return t.Type == TargetTypeActivity
}

func (t TargetRef) String() string {
	return fmt.Sprintf("%s/%s", t.Type, t.ID)
}

// ParseTargetType validates a target type received from a caller. Only post
// and activity are addressable from the outside; user targets are built
// internally by the follow paths.
func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetTypePost:
		return TargetTypePost, nil
	case TargetTypeActivity:
		return TargetTypeActivity, nil
	}
	return "", fmt.Errorf("unknown target type %q", s)
}
