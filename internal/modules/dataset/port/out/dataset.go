package out

import (
	"context"

	"onsetscore/internal/modules/dataset/domain"
)

// Source fetches the raw documents produced by the preparation pipeline.
type Source interface {
	ReadIndex(ctx context.Context) ([]byte, error)
	ReadRecordSet(ctx context.Context, dataset domain.Dataset, participantID string) ([]byte, error)
}
