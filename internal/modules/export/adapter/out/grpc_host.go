package out

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	exportrpc "onsetscore/internal/modules/export/adapter/out/rpc"
	"onsetscore/internal/modules/export/domain"
	exportout "onsetscore/internal/modules/export/port/out"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

type GRPCHost struct {
	logger hclog.Logger
}

// NewGRPCHost returns a host that launches exporters over go-plugin. A nil
// logger silences the plugin runtime.
func NewGRPCHost(logger hclog.Logger) exportout.Host {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GRPCHost{logger: logger}
}

func (h *GRPCHost) CheckLifecycle(ctx context.Context, manifest domain.Manifest) error {
	client, closeFn, err := h.connect(manifest)
	if err != nil {
		return err
	}
	defer closeFn()

	callCtx, cancel := callContext(ctx)
	defer cancel()
	if _, err := client.GetMetadata(callCtx); err != nil {
		return fmt.Errorf("get metadata: %w", err)
	}
	return nil
}

func (h *GRPCHost) GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error) {
	client, closeFn, err := h.connect(manifest)
	if err != nil {
		return domain.Metadata{}, err
	}
	defer closeFn()

	callCtx, cancel := callContext(ctx)
	defer cancel()

	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("get metadata: %w", err)
	}
	capabilities := make([]domain.Capability, 0, len(meta.Capabilities))
	for _, capability := range meta.Capabilities {
		capabilities = append(capabilities, domain.Capability(capability))
	}
	return domain.Metadata{Name: meta.Name, Version: meta.Version, Capabilities: capabilities}, nil
}

func (h *GRPCHost) ParticipantComplete(ctx context.Context, manifest domain.Manifest, report domain.ParticipantReport) (string, error) {
	client, closeFn, err := h.connect(manifest)
	if err != nil {
		return "", err
	}
	defer closeFn()

	callCtx, cancel := callContext(ctx)
	defer cancel()
	response, err := client.ParticipantComplete(callCtx, toRequest(report))
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s", domain.ErrExporterTimeout, manifest.Name)
		}
		return "", fmt.Errorf("deliver participant report: %w", err)
	}
	return response.Location, nil
}

func toRequest(report domain.ParticipantReport) *exportrpc.ParticipantCompleteRequest {
	req := &exportrpc.ParticipantCompleteRequest{
		RaterID:         report.RaterID,
		DatasetID:       report.DatasetID,
		ParticipantID:   report.ParticipantID,
		CompletedAtUnix: report.CompletedAt.Unix(),
		Trials:          make([]exportrpc.TrialScore, 0, len(report.Trials)),
	}
	for _, t := range report.Trials {
		req.Trials = append(req.Trials, exportrpc.TrialScore{
			TrialNumber: int32(t.TrialNumber),
			Word:        t.Word,
			AutoOnsetMs: t.AutoOnsetMs,
			Accuracy:    t.Accuracy,
			OnsetMs:     t.OnsetMs,
			OnsetStatus: t.OnsetStatus,
			Note:        t.Note,
		})
	}
	return req
}

func (h *GRPCHost) connect(manifest domain.Manifest) (exportrpc.ExporterClient, func(), error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  exportrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          exportrpc.PluginMap(nil),
		Cmd:              exec.Command(manifest.Binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger:           h.logger.Named(manifest.Name),
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start exporter client: %w", err)
	}
	raw, err := rpcClient.Dispense(exportrpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense exporter: %w", err)
	}
	typed, ok := raw.(exportrpc.ExporterClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("exporter rpc client type mismatch")
	}
	return typed, closeFn, nil
}

func callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, defaultCallTimeout)
}
