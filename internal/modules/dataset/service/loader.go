package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"onsetscore/internal/modules/dataset/domain"
	datasetout "onsetscore/internal/modules/dataset/port/out"
	apperrors "onsetscore/internal/platform/errors"
	"onsetscore/internal/platform/logging"
	"onsetscore/internal/platform/metrics"
)

const indexFlightKey = "\x00index"

// Loader owns every parsed dataset document for the life of the process.
// Participants it returns are shared read-only.
type Loader struct {
	source  datasetout.Source
	logger  *zap.Logger
	metrics *metrics.Registry
	flight  singleflight.Group

	mu           sync.RWMutex
	index        *domain.Index
	participants map[string]*domain.Participant
	epoch        uint64
}

func NewLoader(source datasetout.Source, logger *zap.Logger, reg *metrics.Registry) *Loader {
	return &Loader{
		source:       source,
		logger:       logging.OrNop(logger).Named("dataset"),
		metrics:      reg,
		participants: map[string]*domain.Participant{},
	}
}

// LoadIndex fetches the index once. Concurrent callers share a single fetch
// and a failed fetch is retried by the next caller.
func (l *Loader) LoadIndex(ctx context.Context) (*domain.Index, error) {
	l.mu.RLock()
	idx := l.index
	l.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}
	v, err, _ := l.flight.Do(indexFlightKey, func() (any, error) {
		l.mu.RLock()
		cached := l.index
		l.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
		raw, err := l.source.ReadIndex(ctx)
		if err != nil {
			return nil, err
		}
		parsed, err := domain.ParseIndex(raw)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.index = parsed
		l.mu.Unlock()
		l.logger.Debug("index loaded", zap.Int("datasets", len(parsed.Datasets)))
		return parsed, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return v.(*domain.Index), nil
}

func (l *Loader) Dataset(ctx context.Context, datasetID string) (domain.Dataset, error) {
	idx, err := l.LoadIndex(ctx)
	if err != nil {
		return domain.Dataset{}, err
	}
	ds, ok := idx.Dataset(datasetID)
	if !ok {
		return domain.Dataset{}, fmt.Errorf("dataset %s: %w", datasetID, apperrors.ErrNotFound)
	}
	return ds, nil
}

// LoadParticipant returns the cached participant or fetches and parses its
// record set. Malformed rows are logged and skipped.
func (l *Loader) LoadParticipant(ctx context.Context, datasetID, participantID string) (*domain.Participant, error) {
	key := domain.CacheKey(datasetID, participantID)
	if p, ok := l.Cached(datasetID, participantID); ok {
		l.metrics.CacheHit()
		return p, nil
	}
	l.metrics.CacheMiss()

	ds, err := l.Dataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if !ds.HasParticipant(participantID) {
		return nil, fmt.Errorf("participant %s in dataset %s: %w", participantID, datasetID, apperrors.ErrNotFound)
	}

	v, err, _ := l.flight.Do(key, func() (any, error) {
		if p, ok := l.Cached(datasetID, participantID); ok {
			return p, nil
		}
		l.mu.RLock()
		epoch := l.epoch
		l.mu.RUnlock()

		l.logger.Debug("fetching record set", zap.String("dataset", datasetID), zap.String("participant", participantID))
		raw, err := l.source.ReadRecordSet(ctx, ds, participantID)
		if err != nil {
			return nil, err
		}
		trials, rowErrs, err := domain.ParseRecordSet(bytes.NewReader(raw), ds.TestType, participantID)
		if err != nil {
			return nil, fmt.Errorf("parse record set %s: %w", key, err)
		}
		for _, re := range rowErrs {
			l.logger.Warn("skipped record row",
				zap.String("participant", participantID),
				zap.Int("line", re.Line),
				zap.String("reason", re.Reason))
		}
		if len(trials) == 0 {
			return nil, fmt.Errorf("record set %s has no trials: %w", key, apperrors.ErrInvalidInput)
		}
		p := &domain.Participant{ID: participantID, DatasetID: datasetID, Trials: trials}

		l.mu.Lock()
		if l.epoch == epoch {
			l.participants[key] = p
		}
		l.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load participant %s: %w", key, err)
	}
	return v.(*domain.Participant), nil
}

// Cached never fetches.
func (l *Loader) Cached(datasetID, participantID string) (*domain.Participant, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.participants[domain.CacheKey(datasetID, participantID)]
	return p, ok
}

func (l *Loader) Evict(datasetID, participantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.participants, domain.CacheKey(datasetID, participantID))
	l.epoch++
}

// ClearCache drops every participant. Loads already in flight complete for
// their callers but are not cached. The index is kept.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.participants = map[string]*domain.Participant{}
	l.epoch++
}
