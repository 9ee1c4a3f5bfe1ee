package out

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"onsetscore/internal/modules/session/domain"
	sessionout "onsetscore/internal/modules/session/port/out"
	apperrors "onsetscore/internal/platform/errors"
)

// FileRepository keeps each session as a JSON document at
// {root}/{rater}/{dataset}.json.
type FileRepository struct {
	root string
}

var _ sessionout.Repository = (*FileRepository)(nil)

func NewFileRepository(workspace string) *FileRepository {
	return &FileRepository{root: filepath.Join(workspace, ".onsetscore", "sessions")}
}

func (r *FileRepository) path(raterID, datasetID string) string {
	return filepath.Join(r.root, pathComponent(raterID), pathComponent(datasetID)+".json")
}

func (r *FileRepository) Save(_ context.Context, session *domain.Session) error {
	target := r.path(session.RaterID, session.DatasetID)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	payload, err := domain.Encode(session)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-session-*")
	if err != nil {
		return fmt.Errorf("create session temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close session temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (r *FileRepository) Load(_ context.Context, raterID, datasetID string) (*domain.Session, error) {
	payload, err := os.ReadFile(r.path(raterID, datasetID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session %s/%s: %w", raterID, datasetID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	return domain.Decode(payload)
}

// pathComponent makes an arbitrary id safe to use as one path element.
func pathComponent(id string) string {
	esc := url.PathEscape(id)
	if strings.HasPrefix(esc, ".") {
		esc = "%2E" + esc[1:]
	}
	return esc
}
