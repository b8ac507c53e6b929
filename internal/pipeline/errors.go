package pipeline

import "fmt"

// RejectKind classifies why a mutation was refused. Every kind is
// recoverable: the caller returns to the last known-good state, never
// panics.
type RejectKind string

const (
	// RejectValidation: malformed attributes, nothing changed.
	RejectValidation RejectKind = "validation"
	// RejectBounds: a resize would orphan a child outside its parent.
	RejectBounds RejectKind = "bounds"
	// RejectCollision: proposed geometry overlaps another object.
	RejectCollision RejectKind = "collision"
	// RejectRemote: the remote commit failed after an optimistic apply;
	// the store was rolled back.
	RejectRemote RejectKind = "remote"
)

// Rejection is the structured result for a refused mutation. Collision
// rejections carry the colliding entity's display name.
type Rejection struct {
	Kind          RejectKind
	Message       string
	CollidingName string
	Err           error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Kind, r.Message, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(kind RejectKind, format string, args ...interface{}) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
