package out

import (
	"context"
	"fmt"

	"onsetscore/internal/modules/dataset/domain"
	datasetout "onsetscore/internal/modules/dataset/port/out"
	"onsetscore/internal/platform/blob"
)

const recordSetExt = ".csv"

type BlobSource struct {
	store    blob.Store
	indexKey string
}

var _ datasetout.Source = (*BlobSource)(nil)

func NewBlobSource(store blob.Store, indexKey string) *BlobSource {
	if indexKey == "" {
		indexKey = "index.json"
	}
	return &BlobSource{store: store, indexKey: indexKey}
}

func (s *BlobSource) ReadIndex(ctx context.Context) ([]byte, error) {
	b, _, err := blob.ReadAll(ctx, s.store, s.indexKey)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}
	return b, nil
}

func (s *BlobSource) ReadRecordSet(ctx context.Context, dataset domain.Dataset, participantID string) ([]byte, error) {
	key := RecordSetKey(dataset, participantID)
	b, _, err := blob.ReadAll(ctx, s.store, key)
	if err != nil {
		return nil, fmt.Errorf("fetch record set %s: %w", key, err)
	}
	return b, nil
}

// RecordSetKey is where a participant's record set lives in the data store.
func RecordSetKey(dataset domain.Dataset, participantID string) string {
	return blob.Key(dataset.RecordPath, participantID+recordSetExt)
}
