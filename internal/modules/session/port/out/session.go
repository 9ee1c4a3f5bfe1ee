package out

import (
	"context"

	"onsetscore/internal/modules/session/domain"
)

// Repository persists one session document per (rater, dataset). Load
// reports a missing document with an error wrapping apperrors.ErrNotFound.
type Repository interface {
	Save(ctx context.Context, session *domain.Session) error
	Load(ctx context.Context, raterID, datasetID string) (*domain.Session, error)
}

// ActivePointer remembers which session the workspace last worked on, so
// one-shot commands can reopen it.
type ActivePointer interface {
	SaveActive(ctx context.Context, pointer domain.ActivePointer) error
	LoadActive(ctx context.Context) (domain.ActivePointer, error)
	ClearActive(ctx context.Context) error
}
