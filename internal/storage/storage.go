// Package storage defines the registration sink: an append-only,
// write-and-forget persistence target. The flows call it and move on;
// a failed write is logged by the implementation, never shown to the
// user.
package storage

import (
	"context"

	"github.com/stemly/regbot/internal/domain"
)

// Sink receives completed registrations.
type Sink interface {
	AddParent(ctx context.Context, p domain.ParentProfile) error
	AddChild(ctx context.Context, parentID int64, c domain.ChildProfile) error
}
