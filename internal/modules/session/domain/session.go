package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "onsetscore/internal/platform/errors"
)

// SchemaVersion 1 documents predate session ids and the completion set.
const SchemaVersion = 2

type Position struct {
	ParticipantIndex int `json:"participant_index"`
	TrialIndex       int `json:"trial_index"`
}

// Session is the persisted state of one rater scoring one dataset.
type Session struct {
	SchemaVersion        int                    `json:"schema_version"`
	SessionID            string                 `json:"session_id"`
	RaterID              string                 `json:"rater_id"`
	DatasetID            string                 `json:"dataset_id"`
	AssignedParticipants []string               `json:"assigned_participants"`
	Position             Position               `json:"position"`
	Scores               map[string]ScoreRecord `json:"scores"`
	ShuffleOrders        map[string][]int       `json:"shuffle_orders"`
	CompletionSignaled   map[string]time.Time   `json:"completion_signaled"`
	CreatedAt            time.Time              `json:"created_at"`
	LastSaved            time.Time              `json:"last_saved"`
}

func New(sessionID, raterID, datasetID string, participants []string, now time.Time) (*Session, error) {
	s := &Session{
		SchemaVersion:        SchemaVersion,
		SessionID:            sessionID,
		RaterID:              strings.TrimSpace(raterID),
		DatasetID:            strings.TrimSpace(datasetID),
		AssignedParticipants: append([]string(nil), participants...),
		Scores:               map[string]ScoreRecord{},
		ShuffleOrders:        map[string][]int{},
		CompletionSignaled:   map[string]time.Time{},
		CreatedAt:            now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Validate() error {
	if s.RaterID == "" {
		return fmt.Errorf("rater id is required: %w", apperrors.ErrInvalidInput)
	}
	if s.DatasetID == "" {
		return fmt.Errorf("dataset id is required: %w", apperrors.ErrInvalidInput)
	}
	if len(s.AssignedParticipants) == 0 {
		return fmt.Errorf("at least one participant is required: %w", apperrors.ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(s.AssignedParticipants))
	for _, p := range s.AssignedParticipants {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("empty participant id: %w", apperrors.ErrInvalidInput)
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("participant %s assigned twice: %w", p, apperrors.ErrInvalidInput)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// Migrate brings a decoded document up to the current schema. It never
// fails: missing maps become empty and an out-of-range cursor is reset.
func (s *Session) Migrate() {
	if s.Scores == nil {
		s.Scores = map[string]ScoreRecord{}
	}
	if s.ShuffleOrders == nil {
		s.ShuffleOrders = map[string][]int{}
	}
	if s.CompletionSignaled == nil {
		s.CompletionSignaled = map[string]time.Time{}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.LastSaved
	}
	p := s.Position
	if p.ParticipantIndex < 0 || p.ParticipantIndex >= len(s.AssignedParticipants) || p.TrialIndex < 0 {
		s.Position = Position{}
	} else if order, ok := s.ShuffleOrders[s.AssignedParticipants[p.ParticipantIndex]]; ok && p.TrialIndex >= len(order) {
		s.Position.TrialIndex = 0
	}
	s.SchemaVersion = SchemaVersion
}

// Clone is a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.AssignedParticipants = append([]string(nil), s.AssignedParticipants...)
	out.Scores = make(map[string]ScoreRecord, len(s.Scores))
	for k, v := range s.Scores {
		out.Scores[k] = v.clone()
	}
	out.ShuffleOrders = make(map[string][]int, len(s.ShuffleOrders))
	for k, v := range s.ShuffleOrders {
		out.ShuffleOrders[k] = append([]int(nil), v...)
	}
	out.CompletionSignaled = make(map[string]time.Time, len(s.CompletionSignaled))
	for k, v := range s.CompletionSignaled {
		out.CompletionSignaled[k] = v
	}
	return &out
}

func (s *Session) ParticipantIndex(participantID string) int {
	for i, p := range s.AssignedParticipants {
		if p == participantID {
			return i
		}
	}
	return -1
}

func (s *Session) IsAssigned(participantID string) bool {
	return s.ParticipantIndex(participantID) >= 0
}

func ScoreKey(participantID string, trialNumber int) string {
	return participantID + "#" + strconv.Itoa(trialNumber)
}

// SplitScoreKey reverses ScoreKey. Participant ids may themselves contain '#'.
func SplitScoreKey(key string) (string, int, bool) {
	i := strings.LastIndex(key, "#")
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, false
	}
	return key[:i], n, true
}

func (s *Session) Score(participantID string, trialNumber int) (ScoreRecord, bool) {
	r, ok := s.Scores[ScoreKey(participantID, trialNumber)]
	if !ok {
		return ScoreRecord{}, false
	}
	return r.clone(), true
}

// ApplyScore merges update into the stored record and stamps it with at.
func (s *Session) ApplyScore(participantID string, trialNumber int, update ScoreUpdate, at time.Time) ScoreRecord {
	key := ScoreKey(participantID, trialNumber)
	merged := s.Scores[key].Merge(update, at)
	s.Scores[key] = merged
	return merged.clone()
}

func (s *Session) IsScored(participantID string, trialNumber int) bool {
	r, ok := s.Scores[ScoreKey(participantID, trialNumber)]
	return ok && r.Scored()
}

func (s *Session) TotalScored() int {
	n := 0
	for _, r := range s.Scores {
		if r.Scored() {
			n++
		}
	}
	return n
}

func (s *Session) ParticipantScored(participantID string) int {
	n := 0
	for k, r := range s.Scores {
		pid, _, ok := SplitScoreKey(k)
		if ok && pid == participantID && r.Scored() {
			n++
		}
	}
	return n
}

// IsParticipantComplete reports whether every listed trial carries an
// accuracy judgment. Onset-only or note-only records do not count.
func (s *Session) IsParticipantComplete(participantID string, trialNumbers []int) bool {
	for _, n := range trialNumbers {
		if !s.IsScored(participantID, n) {
			return false
		}
	}
	return true
}

// Assignment is the immutable identity of a session.
type Assignment struct {
	RaterID      string
	DatasetID    string
	Participants []string
}

func (s *Session) Assignment() Assignment {
	return Assignment{
		RaterID:      s.RaterID,
		DatasetID:    s.DatasetID,
		Participants: append([]string(nil), s.AssignedParticipants...),
	}
}

type ActivePointer struct {
	RaterID   string `json:"rater_id"`
	DatasetID string `json:"dataset_id"`
}
