package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"onsetscore/internal/modules/session/domain"
	sessionout "onsetscore/internal/modules/session/port/out"
	apperrors "onsetscore/internal/platform/errors"
)

type FileActivePointerStore struct {
	path string
}

func NewFileActivePointerStore(workspace string) sessionout.ActivePointer {
	return &FileActivePointerStore{path: filepath.Join(workspace, ".onsetscore", "active-session.json")}
}

func (s *FileActivePointerStore) SaveActive(_ context.Context, pointer domain.ActivePointer) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create active session dir: %w", err)
	}
	payload, err := json.MarshalIndent(pointer, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal active session: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return fmt.Errorf("write active session: %w", err)
	}
	return nil
}

func (s *FileActivePointerStore) LoadActive(_ context.Context) (domain.ActivePointer, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ActivePointer{}, apperrors.ErrNoActiveSession
		}
		return domain.ActivePointer{}, fmt.Errorf("read active session: %w", err)
	}
	pointer := domain.ActivePointer{}
	if err := json.Unmarshal(payload, &pointer); err != nil {
		return domain.ActivePointer{}, fmt.Errorf("decode active session: %w", err)
	}
	if pointer.RaterID == "" || pointer.DatasetID == "" {
		return domain.ActivePointer{}, apperrors.ErrNoActiveSession
	}
	return pointer, nil
}

func (s *FileActivePointerStore) ClearActive(_ context.Context) error {
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("clear active session: %w", err)
	}
	return nil
}
