package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"onsetscore/internal/modules/export/domain"
	"onsetscore/internal/modules/export/dto"
	exportout "onsetscore/internal/modules/export/port/out"
	"onsetscore/internal/platform/clock"
	"onsetscore/internal/platform/logging"
)

type ExportService struct {
	store  exportout.ManifestStore
	host   exportout.Host
	clock  clock.Clock
	logger *zap.Logger
}

func NewExportService(store exportout.ManifestStore, host exportout.Host, clk clock.Clock, logger *zap.Logger) *ExportService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &ExportService{store: store, host: host, clock: clk, logger: logging.OrNop(logger).Named("export")}
}

func (s *ExportService) List(ctx context.Context) ([]dto.ExporterInfo, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ExporterInfo, 0, len(manifests))
	for _, m := range manifests {
		caps := make([]string, 0, len(m.Capabilities))
		for _, c := range m.Capabilities {
			caps = append(caps, string(c))
		}
		out = append(out, dto.ExporterInfo{Name: m.Name, Version: m.Version, Enabled: m.Enabled, Binary: m.Binary, Capabilities: caps})
	}
	return out, nil
}

func (s *ExportService) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]dto.DoctorResult, 0, len(manifests))
	for _, m := range manifests {
		result := dto.DoctorResult{Name: m.Name}
		if err := m.Validate(); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		binaryOK := fileExists(m.Binary)
		result.BinaryReachable = binaryOK
		checksumOK := false
		if binaryOK {
			checksumOK = checksumMatches(m.Binary, m.SHA256) == nil
		}
		result.ChecksumValid = checksumOK
		if binaryOK && checksumOK && m.Enabled && s.host != nil {
			if err := s.host.CheckLifecycle(ctx, m); err != nil {
				result.Error = err.Error()
			} else {
				result.LifecycleOK = true
			}
		}
		if !binaryOK {
			result.Error = fmt.Sprintf("binary does not exist: %s", m.Binary)
		}
		if binaryOK && !checksumOK {
			result.Error = "checksum mismatch"
		}
		results = append(results, result)
	}
	return results, nil
}

// ParticipantComplete hands the report to every enabled exporter that
// declares the participant_complete capability. One exporter failing does
// not stop delivery to the others; the failures come back joined.
func (s *ExportService) ParticipantComplete(ctx context.Context, input dto.ParticipantReportInput) ([]dto.DeliveryOutput, error) {
	report := toReport(input)
	if report.CompletedAt.IsZero() {
		report.CompletedAt = s.clock.Now()
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out  []dto.DeliveryOutput
		errs []error
	)
	for _, m := range manifests {
		if !m.Enabled || !m.HasCapability(domain.CapabilityParticipantComplete) {
			continue
		}
		d := s.deliver(ctx, m, report)
		row := dto.DeliveryOutput{Exporter: d.Exporter, Location: d.Location}
		if d.Err != nil {
			row.Error = d.Err.Error()
			errs = append(errs, fmt.Errorf("exporter %s: %w", m.Name, d.Err))
			s.logger.Warn("exporter rejected participant report",
				zap.String("exporter", m.Name),
				zap.String("participant", report.ParticipantID),
				zap.Error(d.Err))
		} else {
			s.logger.Info("participant report exported",
				zap.String("exporter", m.Name),
				zap.String("participant", report.ParticipantID),
				zap.String("location", d.Location))
		}
		out = append(out, row)
	}
	return out, errors.Join(errs...)
}

func (s *ExportService) deliver(ctx context.Context, m domain.Manifest, report domain.ParticipantReport) domain.Delivery {
	d := domain.Delivery{Exporter: m.Name}
	if err := checksumMatches(m.Binary, m.SHA256); err != nil {
		d.Err = err
		return d
	}
	if s.host == nil {
		d.Err = fmt.Errorf("no exporter host configured")
		return d
	}
	location, err := s.host.ParticipantComplete(ctx, m, report)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s", domain.ErrExporterTimeout, m.Name)
		}
		d.Err = err
		return d
	}
	d.Location = location
	return d
}

func toReport(input dto.ParticipantReportInput) domain.ParticipantReport {
	report := domain.ParticipantReport{
		RaterID:       input.RaterID,
		DatasetID:     input.DatasetID,
		ParticipantID: input.ParticipantID,
		CompletedAt:   input.CompletedAt,
		Trials:        make([]domain.TrialReport, 0, len(input.Trials)),
	}
	for _, t := range input.Trials {
		report.Trials = append(report.Trials, domain.TrialReport{
			TrialNumber: t.TrialNumber,
			Word:        t.Word,
			AutoOnsetMs: t.AutoOnsetMs,
			Accuracy:    t.Accuracy,
			OnsetMs:     t.OnsetMs,
			OnsetStatus: t.OnsetStatus,
			Note:        t.Note,
		})
	}
	return report
}

func (s *ExportService) loadValidated(ctx context.Context) ([]domain.Manifest, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	seenNames := map[string]struct{}{}
	for _, manifest := range manifests {
		if err := manifest.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seenNames[manifest.Name]; ok {
			return nil, fmt.Errorf("duplicate exporter name: %s", manifest.Name)
		}
		seenNames[manifest.Name] = struct{}{}
	}
	return manifests, nil
}

func checksumMatches(path string, expected string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read exporter binary: %w", err)
	}
	hash := sha256.Sum256(payload)
	actual := hex.EncodeToString(hash[:])
	if actual != expected {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, filepath.Base(path))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
