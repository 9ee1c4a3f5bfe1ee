// Command onsetscore-markdown is an exporter that keeps one markdown report
// per participant under $ONSETSCORE_EXPORT_MARKDOWN (default
// ./onsetscore-reports). Re-exporting rewrites the frontmatter summary and
// the trials table; anything else in the file is left alone.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-plugin"

	exportrpc "onsetscore/internal/modules/export/adapter/out/rpc"
	"onsetscore/internal/platform/markdown"
	"onsetscore/internal/platform/textnorm"
)

const defaultDir = "onsetscore-reports"

type server struct {
	mu  sync.Mutex
	dir string
}

func (s *server) GetMetadata(_ context.Context, _ *exportrpc.Empty) (*exportrpc.Metadata, error) {
	return &exportrpc.Metadata{
		Name:         "markdown",
		Version:      "1.0.0",
		Capabilities: []string{"participant_complete"},
	}, nil
}

func (s *server) ParticipantComplete(_ context.Context, in *exportrpc.ParticipantCompleteRequest) (*exportrpc.ParticipantCompleteResponse, error) {
	path := filepath.Join(s.dir, textnorm.Slug(in.DatasetID), textnorm.Slug(in.ParticipantID)+".md")

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := load(path)
	if err != nil {
		return nil, err
	}
	if doc.Body == "" {
		doc.Body = "# " + in.ParticipantID + "\n"
	}
	doc.Merge(summary(in))
	doc.ReplaceBlock("trials", trialTable(in.Trials))

	content, err := doc.Render()
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	if err := writeAtomic(path, []byte(content)); err != nil {
		return nil, err
	}
	return &exportrpc.ParticipantCompleteResponse{Location: path}, nil
}

func load(path string) (markdown.Document, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return markdown.Document{}, nil
	}
	if err != nil {
		return markdown.Document{}, fmt.Errorf("read report: %w", err)
	}
	doc, err := markdown.Parse(string(raw))
	if err != nil {
		return markdown.Document{}, fmt.Errorf("parse report %s: %w", path, err)
	}
	return doc, nil
}

func summary(in *exportrpc.ParticipantCompleteRequest) map[string]any {
	scored, noSpeech := 0, 0
	for _, t := range in.Trials {
		if t.Accuracy != "" {
			scored++
		}
		if t.OnsetStatus == "no_speech" {
			noSpeech++
		}
	}
	return map[string]any{
		"rater":        in.RaterID,
		"dataset":      in.DatasetID,
		"participant":  in.ParticipantID,
		"completed_at": time.Unix(in.CompletedAtUnix, 0).UTC().Format(time.RFC3339),
		"trials":       len(in.Trials),
		"scored":       scored,
		"no_speech":    noSpeech,
	}
}

func trialTable(trials []exportrpc.TrialScore) string {
	rows := make([][]string, 0, len(trials))
	for _, t := range trials {
		rows = append(rows, []string{
			strconv.Itoa(int(t.TrialNumber)),
			t.Word,
			dash(t.Accuracy),
			ms(t.OnsetMs),
			ms(t.AutoOnsetMs),
			dash(t.OnsetStatus),
			t.Note,
		})
	}
	return markdown.Table([]string{"trial", "word", "accuracy", "onset ms", "auto ms", "onset status", "note"}, rows)
}

func writeAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}

func ms(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func main() {
	dir := os.Getenv("ONSETSCORE_EXPORT_MARKDOWN")
	if dir == "" {
		dir = defaultDir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: exportrpc.HandshakeConfig,
		Plugins:         exportrpc.PluginMap(&server{dir: dir}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
