package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"onsetscore/internal/modules/session/domain"
	sessionout "onsetscore/internal/modules/session/port/out"
	"onsetscore/internal/platform/clock"
	apperrors "onsetscore/internal/platform/errors"
	"onsetscore/internal/platform/id"
	"onsetscore/internal/platform/logging"
	"onsetscore/internal/platform/metrics"
)

const DefaultDebounce = 400 * time.Millisecond

const (
	triggerCreate    = "create"
	triggerDebounce  = "debounce"
	triggerImmediate = "immediate"
	triggerFlush     = "flush"
	triggerClose     = "close"
	triggerSwitch    = "switch"
)

type Options struct {
	Debounce time.Duration
	// Rand drives shuffle orders. Nil seeds from the runtime.
	Rand    *rand.Rand
	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// Store owns the single active session. Reads are served from memory;
// mutations mark the session dirty and schedule a coalesced write.
type Store struct {
	repo     sessionout.Repository
	clock    clock.Clock
	idGen    id.Generator
	logger   *zap.Logger
	metrics  *metrics.Registry
	debounce time.Duration

	mu     sync.Mutex
	active *domain.Session
	rng    *rand.Rand
	dirty  bool
	timer  clock.Timer
	closed bool

	// writeMu serializes repository writes; held across the snapshot so
	// the last write always carries the latest state.
	writeMu sync.Mutex
}

func NewStore(repo sessionout.Repository, clk clock.Clock, idGen id.Generator, opts Options) *Store {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Store{
		repo:     repo,
		clock:    clk,
		idGen:    idGen,
		logger:   logging.OrNop(opts.Logger).Named("session"),
		metrics:  opts.Metrics,
		debounce: opts.Debounce,
		rng:      rng,
	}
}

// Create starts a new session, replacing any stored one for the same rater
// and dataset, and writes it before returning.
func (s *Store) Create(ctx context.Context, raterID, datasetID string, participantIDs []string) (*domain.Session, error) {
	session, err := domain.New(s.idGen.New(), raterID, datasetID, participantIDs, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.install(ctx, session)
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
	if err := s.flush(ctx, triggerCreate); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s.Get(), nil
}

// Load makes the stored session for (raterID, datasetID) active. A missing
// or unreadable document is reported as false with no error so callers can
// fall back to Create.
func (s *Store) Load(ctx context.Context, raterID, datasetID string) (bool, error) {
	if raterID == "" || datasetID == "" {
		return false, fmt.Errorf("rater and dataset are required: %w", apperrors.ErrInvalidInput)
	}
	session, err := s.repo.Load(ctx, raterID, datasetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Debug("no stored session", zap.String("rater", raterID), zap.String("dataset", datasetID))
		} else {
			s.logger.Warn("stored session unreadable, starting fresh",
				zap.String("rater", raterID), zap.String("dataset", datasetID), zap.Error(err))
		}
		return false, nil
	}
	if session.SessionID == "" {
		session.SessionID = s.idGen.New()
	}
	s.install(ctx, session)
	return true, nil
}

// install flushes whatever the previous session still owes and swaps in next.
func (s *Store) install(ctx context.Context, next *domain.Session) {
	if err := s.flush(ctx, triggerSwitch); err != nil {
		s.logger.Error("flush previous session", zap.Error(err))
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.active = next
	s.dirty = false
}

// Get returns a deep copy of the active session, or nil.
func (s *Store) Get() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

func (s *Store) SetPosition(participantIndex, trialIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return apperrors.ErrNoActiveSession
	}
	if participantIndex < 0 || participantIndex >= len(s.active.AssignedParticipants) {
		return fmt.Errorf("participant index %d out of range: %w", participantIndex, apperrors.ErrInvalidInput)
	}
	if trialIndex < 0 {
		return fmt.Errorf("trial index %d out of range: %w", trialIndex, apperrors.ErrInvalidInput)
	}
	pid := s.active.AssignedParticipants[participantIndex]
	if order, ok := s.active.ShuffleOrders[pid]; ok && trialIndex >= len(order) {
		return fmt.Errorf("trial index %d out of range: %w", trialIndex, apperrors.ErrInvalidInput)
	}
	s.active.Position = domain.Position{ParticipantIndex: participantIndex, TrialIndex: trialIndex}
	s.scheduleLocked()
	return nil
}

func (s *Store) Position() (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return domain.Position{}, apperrors.ErrNoActiveSession
	}
	return s.active.Position, nil
}

func (s *Store) Assignment() (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return domain.Assignment{}, apperrors.ErrNoActiveSession
	}
	return s.active.Assignment(), nil
}

// SetScore merges update into the record and schedules a debounced write.
func (s *Store) SetScore(participantID string, trialNumber int, update domain.ScoreUpdate) (domain.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.applyLocked(participantID, trialNumber, update)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	s.scheduleLocked()
	return rec, nil
}

// SaveScore merges update and writes the session before returning.
func (s *Store) SaveScore(ctx context.Context, participantID string, trialNumber int, update domain.ScoreUpdate) (domain.ScoreRecord, error) {
	s.mu.Lock()
	rec, err := s.applyLocked(participantID, trialNumber, update)
	if err == nil {
		s.dirty = true
	}
	s.mu.Unlock()
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if err := s.flush(ctx, triggerImmediate); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *Store) applyLocked(participantID string, trialNumber int, update domain.ScoreUpdate) (domain.ScoreRecord, error) {
	if s.active == nil {
		return domain.ScoreRecord{}, apperrors.ErrNoActiveSession
	}
	if !s.active.IsAssigned(participantID) {
		return domain.ScoreRecord{}, fmt.Errorf("participant %s: %w", participantID, apperrors.ErrNotAssigned)
	}
	if err := update.Validate(); err != nil {
		return domain.ScoreRecord{}, err
	}
	return s.active.ApplyScore(participantID, trialNumber, update, s.clock.Now()), nil
}

func (s *Store) Score(participantID string, trialNumber int) (domain.ScoreRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return domain.ScoreRecord{}, false
	}
	return s.active.Score(participantID, trialNumber)
}

func (s *Store) TotalScored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0
	}
	return s.active.TotalScored()
}

func (s *Store) ParticipantScored(participantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0
	}
	return s.active.ParticipantScored(participantID)
}

func (s *Store) IsScored(participantID string, trialNumber int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.IsScored(participantID, trialNumber)
}

func (s *Store) IsParticipantComplete(participantID string, trialNumbers []int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.IsParticipantComplete(participantID, trialNumbers)
}

// ShuffleOrder returns the participant's persisted trial order, creating it
// on first use. A stored order that no longer covers trialCount trials is
// replaced.
func (s *Store) ShuffleOrder(participantID string, trialCount int) ([]int, error) {
	if trialCount < 0 {
		return nil, fmt.Errorf("trial count %d: %w", trialCount, apperrors.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, apperrors.ErrNoActiveSession
	}
	if !s.active.IsAssigned(participantID) {
		return nil, fmt.Errorf("participant %s: %w", participantID, apperrors.ErrNotAssigned)
	}
	if order, ok := s.active.ShuffleOrders[participantID]; ok {
		if domain.IsPermutation(order, trialCount) {
			return append([]int(nil), order...), nil
		}
		s.logger.Warn("stored shuffle order does not match trial count, regenerating",
			zap.String("participant", participantID),
			zap.Int("stored", len(order)),
			zap.Int("trials", trialCount))
	}
	order := domain.Shuffle(trialCount, s.rng)
	s.active.ShuffleOrders[participantID] = order
	s.scheduleLocked()
	return append([]int(nil), order...), nil
}

// MarkCompletionSignaled records that the participant-complete signal went
// out. It returns false when it had already been recorded.
func (s *Store) MarkCompletionSignaled(participantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return false
	}
	if _, done := s.active.CompletionSignaled[participantID]; done {
		return false
	}
	s.active.CompletionSignaled[participantID] = s.clock.Now()
	s.scheduleLocked()
	return true
}

// Flush writes pending changes now.
func (s *Store) Flush(ctx context.Context) error {
	return s.flush(ctx, triggerFlush)
}

// Close stops the debounce timer and writes any trailing change. Later
// mutations are kept in memory until the next Flush.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()
	return s.flush(ctx, triggerClose)
}

func (s *Store) scheduleLocked() {
	s.dirty = true
	if s.closed {
		return
	}
	s.stopTimerLocked()
	s.timer = s.clock.AfterFunc(s.debounce, s.onTimer)
}

func (s *Store) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Store) onTimer() {
	if err := s.flush(context.Background(), triggerDebounce); err != nil {
		s.logger.Error("debounced session write failed", zap.Error(err))
	}
}

func (s *Store) flush(ctx context.Context, trigger string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.dirty || s.active == nil {
		s.mu.Unlock()
		return nil
	}
	s.dirty = false
	s.stopTimerLocked()
	s.active.LastSaved = s.clock.Now()
	snapshot := s.active.Clone()
	s.mu.Unlock()

	err := s.repo.Save(ctx, snapshot)
	s.metrics.SessionWrite(trigger, err)
	if err != nil {
		s.mu.Lock()
		if s.active != nil && s.active.SessionID == snapshot.SessionID {
			s.dirty = true
		}
		s.mu.Unlock()
		return fmt.Errorf("save session: %w", err)
	}
	s.logger.Debug("session written", zap.String("trigger", trigger), zap.Int("scores", len(snapshot.Scores)))
	return nil
}
