package out

import (
	"context"

	sessiondomain "onsetscore/internal/modules/session/domain"
)

type ScoreStore interface {
	Score(participantID string, trialNumber int) (sessiondomain.ScoreRecord, bool)
	SetScore(participantID string, trialNumber int, update sessiondomain.ScoreUpdate) (sessiondomain.ScoreRecord, error)
	SaveScore(ctx context.Context, participantID string, trialNumber int, update sessiondomain.ScoreUpdate) (sessiondomain.ScoreRecord, error)
}

// Surface is the waveform view; click placement is only honoured while it
// is enabled.
type Surface interface {
	SetClickToSet(enabled bool)
}
