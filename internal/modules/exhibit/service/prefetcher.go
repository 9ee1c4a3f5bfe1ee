package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	datasetdomain "onsetscore/internal/modules/dataset/domain"
	"onsetscore/internal/modules/exhibit/domain"
	exhibitout "onsetscore/internal/modules/exhibit/port/out"
	"onsetscore/internal/platform/logging"
	"onsetscore/internal/platform/metrics"
)

const DefaultConcurrency = 4

type Options struct {
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.Registry
}

type batch struct {
	key    string
	token  context.Context
	cancel context.CancelFunc
}

// Prefetcher keeps playback handles for the exhibits of the participant in
// view. Only one participant is served at a time; moving to another one
// releases the previous handles.
type Prefetcher struct {
	fetcher     exhibitout.Fetcher
	alloc       exhibitout.HandleAllocator
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Registry

	mu       sync.Mutex
	current  string
	handles  map[string]domain.Handle
	inflight *batch
}

func NewPrefetcher(fetcher exhibitout.Fetcher, alloc exhibitout.HandleAllocator, opts Options) *Prefetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Prefetcher{
		fetcher:     fetcher,
		alloc:       alloc,
		concurrency: opts.Concurrency,
		logger:      logging.OrNop(opts.Logger).Named("exhibit"),
		metrics:     opts.Metrics,
	}
}

// Prefetch fetches every exhibit of participant and installs the handles
// unless ctx has ended by the time the batch finishes. A later call for the
// same participant while a batch is running takes the batch over with its
// own ctx instead of starting again. A call whose ctx has already ended
// leaves the prefetcher untouched. Individual fetch failures are logged and
// skipped.
func (p *Prefetcher) Prefetch(ctx context.Context, ds datasetdomain.Dataset, participant *datasetdomain.Participant) error {
	key := datasetdomain.CacheKey(ds.ID, participant.ID)

	p.mu.Lock()
	if err := ctx.Err(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("prefetch %s: %w", participant.ID, err)
	}
	if p.inflight != nil && p.inflight.key == key {
		p.inflight.token = ctx
		p.mu.Unlock()
		return nil
	}
	if p.inflight != nil {
		p.inflight.cancel()
		p.inflight = nil
	}
	if p.current == key {
		p.mu.Unlock()
		return nil
	}
	previous := p.handles
	p.handles = nil
	p.current = ""
	batchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	b := &batch{key: key, token: ctx, cancel: cancel}
	p.inflight = b
	p.mu.Unlock()

	if err := releaseAll(previous); err != nil {
		p.logger.Warn("release previous exhibits", zap.Error(err))
	}

	fetched := p.fetchAll(batchCtx, ds, participant)

	p.mu.Lock()
	stale := p.inflight != b || b.token.Err() != nil
	if p.inflight == b {
		p.inflight = nil
	}
	if !stale {
		p.current = key
		p.handles = fetched
	}
	p.mu.Unlock()

	if stale {
		p.metrics.StaleDiscarded()
		p.logger.Debug("discarded superseded prefetch", zap.String("participant", participant.ID), zap.Int("handles", len(fetched)))
		if err := releaseAll(fetched); err != nil {
			p.logger.Warn("release discarded exhibits", zap.Error(err))
		}
		return fmt.Errorf("prefetch %s: %w", participant.ID, context.Canceled)
	}
	p.logger.Debug("exhibits ready", zap.String("participant", participant.ID), zap.Int("handles", len(fetched)))
	return nil
}

func (p *Prefetcher) fetchAll(ctx context.Context, ds datasetdomain.Dataset, participant *datasetdomain.Participant) map[string]domain.Handle {
	names := domain.Names(participant)
	out := make(map[string]domain.Handle, len(names))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, name := range names {
		g.Go(func() error {
			key := domain.Key(ds, participant.ID, name)
			audio, err := p.fetcher.Fetch(ctx, key)
			if err != nil {
				p.fail(key, err)
				return nil
			}
			h, err := p.alloc.Allocate(name, audio)
			if err != nil {
				p.fail(key, err)
				return nil
			}
			mu.Lock()
			out[name] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Prefetcher) fail(key string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	p.metrics.ExhibitFailed()
	p.logger.Warn("exhibit fetch failed", zap.String("key", key), zap.Error(err))
}

// Lookup returns the cached handle location for an exhibit.
func (p *Prefetcher) Lookup(datasetID, participantID, exhibitName string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != datasetdomain.CacheKey(datasetID, participantID) {
		return "", false
	}
	h, ok := p.handles[exhibitName]
	if !ok {
		return "", false
	}
	return h.Location(), true
}

// Source is the location a player should open: the cached handle when
// there is one, the canonical data-store location otherwise.
func (p *Prefetcher) Source(ds datasetdomain.Dataset, participantID, exhibitName string) string {
	if loc, ok := p.Lookup(ds.ID, participantID, exhibitName); ok {
		return loc
	}
	return domain.Key(ds, participantID, exhibitName)
}

// Serving reports which participant's handles are installed.
func (p *Prefetcher) Serving() (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, len(p.handles)
}

// Release drops every handle and abandons any running batch.
func (p *Prefetcher) Release() error {
	p.mu.Lock()
	if p.inflight != nil {
		p.inflight.cancel()
		p.inflight = nil
	}
	handles := p.handles
	p.handles = nil
	p.current = ""
	p.mu.Unlock()
	return releaseAll(handles)
}

func releaseAll(handles map[string]domain.Handle) error {
	var errs []error
	for _, h := range handles {
		if err := h.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
