// Command onsetscore-jsonl is an exporter that appends each completed
// participant as one JSON line to $ONSETSCORE_EXPORT_JSONL
// (default ./onsetscore-export.jsonl).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	exportrpc "onsetscore/internal/modules/export/adapter/out/rpc"

	"github.com/hashicorp/go-plugin"
)

const defaultOutput = "onsetscore-export.jsonl"

type line struct {
	RaterID       string                 `json:"rater_id"`
	DatasetID     string                 `json:"dataset_id"`
	ParticipantID string                 `json:"participant_id"`
	CompletedAt   string                 `json:"completed_at"`
	Scored        int                    `json:"scored"`
	Trials        []exportrpc.TrialScore `json:"trials"`
}

type server struct {
	mu   sync.Mutex
	path string
}

func (s *server) GetMetadata(_ context.Context, _ *exportrpc.Empty) (*exportrpc.Metadata, error) {
	return &exportrpc.Metadata{
		Name:         "jsonl",
		Version:      "1.0.0",
		Capabilities: []string{"participant_complete"},
	}, nil
}

func (s *server) ParticipantComplete(_ context.Context, in *exportrpc.ParticipantCompleteRequest) (*exportrpc.ParticipantCompleteResponse, error) {
	rec := line{
		RaterID:       in.RaterID,
		DatasetID:     in.DatasetID,
		ParticipantID: in.ParticipantID,
		CompletedAt:   time.Unix(in.CompletedAtUnix, 0).UTC().Format(time.RFC3339),
		Trials:        in.Trials,
	}
	for _, t := range in.Trials {
		if t.Accuracy != "" {
			rec.Scored++
		}
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode export line: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return nil, fmt.Errorf("append export line: %w", err)
	}
	return &exportrpc.ParticipantCompleteResponse{Location: s.path}, nil
}

func main() {
	path := os.Getenv("ONSETSCORE_EXPORT_JSONL")
	if path == "" {
		path = defaultOutput
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: exportrpc.HandshakeConfig,
		Plugins:         exportrpc.PluginMap(&server{path: path}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
