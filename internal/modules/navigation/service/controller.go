package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	datasetdomain "onsetscore/internal/modules/dataset/domain"
	"onsetscore/internal/modules/navigation/domain"
	navigationout "onsetscore/internal/modules/navigation/port/out"
	sessiondomain "onsetscore/internal/modules/session/domain"
	apperrors "onsetscore/internal/platform/errors"
	"onsetscore/internal/platform/logging"
	"onsetscore/internal/platform/metrics"
)

type Deps struct {
	Loader     navigationout.Loader
	Store      navigationout.SessionStore
	Renderer   navigationout.Renderer
	Prefetcher navigationout.Prefetcher
	Notifier   navigationout.CompletionNotifier
	Logger     *zap.Logger
	Metrics    *metrics.Registry
}

// Controller moves the scoring cursor across participants and their
// shuffled trials. Navigation calls are expected to be issued one at a
// time; asynchronous completions from superseded calls are dropped.
type Controller struct {
	loader     navigationout.Loader
	store      navigationout.SessionStore
	renderer   navigationout.Renderer
	prefetcher navigationout.Prefetcher
	notifier   navigationout.CompletionNotifier
	logger     *zap.Logger
	metrics    *metrics.Registry

	life   context.Context
	stop   context.CancelFunc
	tokens *domain.Issuer
	wg     sync.WaitGroup

	applyMu sync.Mutex

	viewMu sync.RWMutex
	view   *domain.View
}

func NewController(deps Deps) *Controller {
	life, stop := context.WithCancel(context.Background())
	return &Controller{
		loader:     deps.Loader,
		store:      deps.Store,
		renderer:   deps.Renderer,
		prefetcher: deps.Prefetcher,
		notifier:   deps.Notifier,
		logger:     logging.OrNop(deps.Logger).Named("navigation"),
		metrics:    deps.Metrics,
		life:       life,
		stop:       stop,
		tokens:     domain.NewIssuer(life),
	}
}

// Navigate moves the cursor to (participantIndex, trialIndex) in shuffled
// space. If a newer navigation starts while this one is loading, it returns
// nil without touching the cursor or calling the renderer.
func (c *Controller) Navigate(ctx context.Context, participantIndex, trialIndex int) error {
	asg, err := c.store.Assignment()
	if err != nil {
		return err
	}
	if participantIndex < 0 || participantIndex >= len(asg.Participants) {
		return fmt.Errorf("participant index %d of %d: %w", participantIndex, len(asg.Participants), apperrors.ErrInvalidInput)
	}
	tok := c.tokens.Issue()
	pid := asg.Participants[participantIndex]

	ds, err := c.loader.Dataset(ctx, asg.DatasetID)
	if err != nil {
		return c.dropIfStale(tok, err)
	}
	participant, err := c.loader.LoadParticipant(ctx, asg.DatasetID, pid)
	if err != nil {
		return c.dropIfStale(tok, err)
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if tok.Stale() {
		c.discard(tok, pid)
		return nil
	}
	n := participant.TrialCount()
	if trialIndex < 0 || trialIndex >= n {
		return fmt.Errorf("trial index %d of %d for %s: %w", trialIndex, n, pid, apperrors.ErrInvalidInput)
	}
	order, err := c.store.ShuffleOrder(pid, n)
	if err != nil {
		return err
	}
	if err := c.store.SetPosition(participantIndex, trialIndex); err != nil {
		return err
	}
	view := domain.View{
		ParticipantIndex: participantIndex,
		TrialIndex:       trialIndex,
		ParticipantCount: len(asg.Participants),
		Dataset:          ds,
		Participant:      participant,
		Trial:            participant.Trials[order[trialIndex]],
		Generation:       tok.Generation(),
	}
	c.viewMu.Lock()
	c.view = &view
	c.viewMu.Unlock()

	if c.renderer != nil {
		c.renderer.OnNavigate(view)
	}
	if c.prefetcher != nil {
		c.background(func() {
			if err := c.prefetcher.Prefetch(tok.Context(), ds, participant); err != nil {
				c.logger.Debug("prefetch ended early", zap.String("participant", pid), zap.Error(err))
			}
		})
	}
	if participantIndex+1 < len(asg.Participants) {
		nextPID := asg.Participants[participantIndex+1]
		c.background(func() {
			if _, err := c.loader.LoadParticipant(c.life, asg.DatasetID, nextPID); err != nil {
				c.logger.Debug("background participant load failed", zap.String("participant", nextPID), zap.Error(err))
			}
		})
	}
	return nil
}

// Next advances one trial. At a participant's last trial it signals
// completion when due and crosses into the next participant; it reports
// false when there is nowhere to go.
func (c *Controller) Next(ctx context.Context) (bool, error) {
	cur, err := c.cursor(ctx)
	if err != nil {
		return false, err
	}
	if cur.pos.TrialIndex+1 < cur.participant.TrialCount() {
		return true, c.Navigate(ctx, cur.pos.ParticipantIndex, cur.pos.TrialIndex+1)
	}
	c.signalIfComplete(ctx, cur.asg, cur.participant)
	if cur.pos.ParticipantIndex+1 < len(cur.asg.Participants) {
		return true, c.Navigate(ctx, cur.pos.ParticipantIndex+1, 0)
	}
	return false, nil
}

// Prev retreats one trial, crossing into the previous participant's last
// trial at a boundary.
func (c *Controller) Prev(ctx context.Context) (bool, error) {
	cur, err := c.cursor(ctx)
	if err != nil {
		return false, err
	}
	if cur.pos.TrialIndex > 0 {
		return true, c.Navigate(ctx, cur.pos.ParticipantIndex, cur.pos.TrialIndex-1)
	}
	if cur.pos.ParticipantIndex == 0 {
		return false, nil
	}
	p := cur.pos.ParticipantIndex - 1
	prev, err := c.loader.LoadParticipant(ctx, cur.asg.DatasetID, cur.asg.Participants[p])
	if err != nil {
		return false, err
	}
	last := prev.TrialCount() - 1
	if last < 0 {
		last = 0
	}
	return true, c.Navigate(ctx, p, last)
}

func (c *Controller) NextParticipant(ctx context.Context) (bool, error) {
	pos, asg, err := c.position()
	if err != nil {
		return false, err
	}
	if pos.ParticipantIndex+1 >= len(asg.Participants) {
		return false, nil
	}
	return true, c.Navigate(ctx, pos.ParticipantIndex+1, 0)
}

func (c *Controller) PrevParticipant(ctx context.Context) (bool, error) {
	pos, _, err := c.position()
	if err != nil {
		return false, err
	}
	if pos.ParticipantIndex == 0 {
		return false, nil
	}
	return true, c.Navigate(ctx, pos.ParticipantIndex-1, 0)
}

// JumpToUnscored moves to the first trial without an accuracy judgment,
// scanning forward from just after the cursor and wrapping to the start.
// A participant whose records are not loaded yet ends the scan: the cursor
// moves to its first trial. It reports false when every reachable trial is
// scored.
func (c *Controller) JumpToUnscored(ctx context.Context) (bool, error) {
	cur, err := c.cursor(ctx)
	if err != nil {
		return false, err
	}
	count := len(cur.asg.Participants)
	origin := cur.pos

	for step := 0; step <= count; step++ {
		p := (origin.ParticipantIndex + step) % count
		pid := cur.asg.Participants[p]
		participant, ok := c.loader.Cached(cur.asg.DatasetID, pid)
		if p == origin.ParticipantIndex {
			participant, ok = cur.participant, true
		}
		if !ok {
			return true, c.Navigate(ctx, p, 0)
		}
		n := participant.TrialCount()
		if n == 0 {
			continue
		}
		from, to := 0, n
		switch {
		case step == 0:
			from = origin.TrialIndex + 1
		case step == count:
			to = origin.TrialIndex
		}
		if from >= to {
			continue
		}
		order, err := c.store.ShuffleOrder(pid, n)
		if err != nil {
			return false, err
		}
		for t := from; t < to; t++ {
			if !c.store.IsScored(pid, participant.Trials[order[t]].Number) {
				return true, c.Navigate(ctx, p, t)
			}
		}
	}
	return false, nil
}

// Resume navigates to the persisted cursor, clamped to the participant's
// current trial count.
func (c *Controller) Resume(ctx context.Context) error {
	cur, err := c.cursor(ctx)
	if err != nil {
		return err
	}
	t := cur.pos.TrialIndex
	if n := cur.participant.TrialCount(); t >= n {
		t = n - 1
	}
	if t < 0 {
		t = 0
	}
	return c.Navigate(ctx, cur.pos.ParticipantIndex, t)
}

// Current returns the last view delivered to the renderer.
func (c *Controller) Current() (domain.View, bool) {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	if c.view == nil {
		return domain.View{}, false
	}
	return *c.view, true
}

// Close invalidates outstanding work and waits for background goroutines.
func (c *Controller) Close() {
	c.tokens.Cancel()
	c.stop()
	c.wg.Wait()
}

type cursorState struct {
	pos         sessiondomain.Position
	asg         sessiondomain.Assignment
	participant *datasetdomain.Participant
}

func (c *Controller) position() (sessiondomain.Position, sessiondomain.Assignment, error) {
	asg, err := c.store.Assignment()
	if err != nil {
		return sessiondomain.Position{}, sessiondomain.Assignment{}, err
	}
	pos, err := c.store.Position()
	if err != nil {
		return sessiondomain.Position{}, sessiondomain.Assignment{}, err
	}
	return pos, asg, nil
}

func (c *Controller) cursor(ctx context.Context) (cursorState, error) {
	pos, asg, err := c.position()
	if err != nil {
		return cursorState{}, err
	}
	participant, err := c.loader.LoadParticipant(ctx, asg.DatasetID, asg.Participants[pos.ParticipantIndex])
	if err != nil {
		return cursorState{}, err
	}
	return cursorState{pos: pos, asg: asg, participant: participant}, nil
}

func (c *Controller) signalIfComplete(ctx context.Context, asg sessiondomain.Assignment, participant *datasetdomain.Participant) {
	if !c.store.IsParticipantComplete(participant.ID, participant.TrialNumbers()) {
		return
	}
	if !c.store.MarkCompletionSignaled(participant.ID) {
		return
	}
	c.logger.Info("participant complete", zap.String("participant", participant.ID))
	if c.notifier == nil {
		return
	}
	event := domain.CompletionEvent{
		RaterID:       asg.RaterID,
		DatasetID:     asg.DatasetID,
		ParticipantID: participant.ID,
		Trials:        make([]domain.TrialScore, 0, participant.TrialCount()),
	}
	for _, t := range participant.Trials {
		rec, _ := c.store.Score(participant.ID, t.Number)
		event.Trials = append(event.Trials, domain.TrialScore{
			TrialNumber: t.Number,
			Word:        t.Word,
			AutoOnsetMs: t.AutoOnsetMs,
			Score:       rec,
		})
	}
	if err := c.notifier.ParticipantComplete(ctx, event); err != nil {
		c.logger.Warn("participant complete notification failed", zap.String("participant", participant.ID), zap.Error(err))
	}
}

func (c *Controller) dropIfStale(tok *domain.Token, err error) error {
	if tok.Stale() {
		c.metrics.StaleDiscarded()
		return nil
	}
	return err
}

func (c *Controller) discard(tok *domain.Token, participantID string) {
	c.metrics.StaleDiscarded()
	c.logger.Debug("discarded superseded navigation",
		zap.String("participant", participantID),
		zap.Uint64("generation", tok.Generation()))
}

func (c *Controller) background(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}
