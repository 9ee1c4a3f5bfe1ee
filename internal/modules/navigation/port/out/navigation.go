package out

import (
	"context"

	datasetdomain "onsetscore/internal/modules/dataset/domain"
	"onsetscore/internal/modules/navigation/domain"
	sessiondomain "onsetscore/internal/modules/session/domain"
)

type Loader interface {
	Dataset(ctx context.Context, datasetID string) (datasetdomain.Dataset, error)
	LoadParticipant(ctx context.Context, datasetID, participantID string) (*datasetdomain.Participant, error)
	Cached(datasetID, participantID string) (*datasetdomain.Participant, bool)
}

type SessionStore interface {
	Assignment() (sessiondomain.Assignment, error)
	Position() (sessiondomain.Position, error)
	SetPosition(participantIndex, trialIndex int) error
	ShuffleOrder(participantID string, trialCount int) ([]int, error)
	Score(participantID string, trialNumber int) (sessiondomain.ScoreRecord, bool)
	IsScored(participantID string, trialNumber int) bool
	IsParticipantComplete(participantID string, trialNumbers []int) bool
	MarkCompletionSignaled(participantID string) bool
}

// Renderer is the surface that displays the trial in view. OnNavigate must
// not call back into navigation synchronously.
type Renderer interface {
	OnNavigate(view domain.View)
}

// Prefetcher warms exhibit handles for the participant in view. ctx is
// cancelled once the navigation that started the prefetch is superseded.
type Prefetcher interface {
	Prefetch(ctx context.Context, dataset datasetdomain.Dataset, participant *datasetdomain.Participant) error
}

type CompletionNotifier interface {
	ParticipantComplete(ctx context.Context, event domain.CompletionEvent) error
}
