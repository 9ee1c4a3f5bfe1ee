package out

import (
	"context"

	"onsetscore/internal/modules/exhibit/domain"
)

type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// HandleAllocator turns fetched audio into something the player can open.
type HandleAllocator interface {
	Allocate(name string, audio []byte) (domain.Handle, error)
}
