package poll

import (
	"context"
	"errors"

	"voting-service/internal/models"
)

var (
	// ErrOptionsLocked means the option list can no longer be edited
	// because the poll has accepted votes.
	ErrOptionsLocked = errors.New("options cannot be modified after voting has started")

	ErrNotAllowed = errors.New("not allowed")
)

// ValidationError is a rejected create/update input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ListFilter narrows a poll listing. PublicOnly hides other users'
// private polls from ViewerID.
type ListFilter struct {
	PublicOnly bool
	ViewerID   string
	CreatorID  string
}

// Repository is the persistence surface for poll administration. Mutations
// run under the same per-poll serialization point the voting engine uses,
// so an admin edit can never race a cast into a lost update.
type Repository interface {
	Create(ctx context.Context, poll *models.Poll) error
	Get(ctx context.Context, pollID string) (*models.Poll, error)
	List(ctx context.Context, filter ListFilter) ([]*models.Poll, error)

	// UpdateMeta atomically applies fn to the poll's non-structural
	// fields (title, description, visibility, lifecycle status).
	UpdateMeta(ctx context.Context, pollID string, fn func(p *models.Poll) error) error

	// ReplaceOptions swaps the option list; fails with ErrOptionsLocked
	// once the poll has votes.
	ReplaceOptions(ctx context.Context, pollID string, options []models.Option) error

	Delete(ctx context.Context, pollID string) error
}
