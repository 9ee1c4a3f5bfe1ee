package out

import (
	"context"

	"onsetscore/internal/modules/export/domain"
)

type ManifestStore interface {
	Load(ctx context.Context) ([]domain.Manifest, error)
}

// Host runs exporter binaries. Each call starts the process, performs one
// RPC and stops it again.
type Host interface {
	CheckLifecycle(ctx context.Context, manifest domain.Manifest) error
	GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error)
	ParticipantComplete(ctx context.Context, manifest domain.Manifest, report domain.ParticipantReport) (string, error)
}
