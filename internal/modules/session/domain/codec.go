package domain

import (
	"encoding/json"
	"fmt"
)

func Encode(s *Session) ([]byte, error) {
	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return payload, nil
}

// Decode parses a stored document and migrates it to the current schema.
func Decode(payload []byte) (*Session, error) {
	s := &Session{}
	if err := json.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("session schema %d is newer than supported %d", s.SchemaVersion, SchemaVersion)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s.Migrate()
	return s, nil
}
