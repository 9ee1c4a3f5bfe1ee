package out

import (
	"context"

	exhibitout "onsetscore/internal/modules/exhibit/port/out"
	"onsetscore/internal/platform/blob"
)

type BlobFetcher struct {
	store blob.Store
}

func NewBlobFetcher(store blob.Store) exhibitout.Fetcher {
	return &BlobFetcher{store: store}
}

func (f *BlobFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	b, _, err := blob.ReadAll(ctx, f.store, key)
	return b, err
}
