package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	exportout "onsetscore/internal/modules/export/adapter/out"
	"onsetscore/internal/modules/export/domain"
	"onsetscore/internal/modules/export/dto"
	"onsetscore/internal/modules/export/service"
	"onsetscore/internal/platform/clock"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func (c fixedClock) AfterFunc(time.Duration, func()) clock.Timer { return nil }

type fakeHost struct {
	mu      sync.Mutex
	reports map[string][]domain.ParticipantReport
	fail    map[string]error
}

func (h *fakeHost) CheckLifecycle(context.Context, domain.Manifest) error { return nil }

func (h *fakeHost) GetMetadata(_ context.Context, m domain.Manifest) (domain.Metadata, error) {
	return domain.Metadata{Name: m.Name, Version: m.Version, Capabilities: m.Capabilities}, nil
}

func (h *fakeHost) ParticipantComplete(_ context.Context, m domain.Manifest, report domain.ParticipantReport) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail[m.Name]; err != nil {
		return "", err
	}
	if h.reports == nil {
		h.reports = map[string][]domain.ParticipantReport{}
	}
	h.reports[m.Name] = append(h.reports[m.Name], report)
	return "mem://" + m.Name + "/" + report.ParticipantID, nil
}

func writeBinary(t *testing.T, dir, name string) (string, string) {
	t.Helper()
	path := filepath.Join(dir, name)
	payload := []byte("exporter-" + name)
	if err := os.WriteFile(path, payload, 0o755); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	sum := sha256.Sum256(payload)
	return path, hex.EncodeToString(sum[:])
}

func writeManifests(t *testing.T, base string, manifests []domain.Manifest) {
	t.Helper()
	pluginsDir := filepath.Join(base, "plugins")
	if err := os.MkdirAll(pluginsDir, 0o755); err != nil {
		t.Fatalf("mkdir plugins: %v", err)
	}
	raw, err := json.Marshal(manifests)
	if err != nil {
		t.Fatalf("marshal manifests: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginsDir, "plugins.json"), raw, 0o644); err != nil {
		t.Fatalf("write plugins.json: %v", err)
	}
}

func manifest(name, binary, sum string, enabled bool) domain.Manifest {
	return domain.Manifest{
		Name:         name,
		Version:      "1.0.0",
		Binary:       binary,
		SHA256:       sum,
		Enabled:      enabled,
		Capabilities: []domain.Capability{domain.CapabilityParticipantComplete},
	}
}

func TestDoctorDetectsChecksumMismatch(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	binPath, _ := writeBinary(t, tmp, "dummy")
	writeManifests(t, tmp, []domain.Manifest{manifest("demo", binPath, strings.Repeat("0", 64), true)})

	svc := service.NewExportService(exportout.NewFileManifestStore(tmp), nil, nil, nil)
	results, err := svc.Doctor(context.Background())
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].ChecksumValid || !results[0].BinaryReachable {
		t.Fatalf("expected reachable binary with checksum mismatch, got %+v", results[0])
	}
}

func TestParticipantCompleteFansOutToEnabledExporters(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	aPath, aSum := writeBinary(t, tmp, "a")
	bPath, bSum := writeBinary(t, tmp, "b")
	offPath, offSum := writeBinary(t, tmp, "off")
	writeManifests(t, tmp, []domain.Manifest{
		manifest("a", aPath, aSum, true),
		manifest("b", bPath, bSum, true),
		manifest("off", offPath, offSum, false),
	})
	boom := errors.New("disk full")
	host := &fakeHost{fail: map[string]error{"b": boom}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := service.NewExportService(exportout.NewFileManifestStore(tmp), host, fixedClock{now: now}, nil)

	onset := 512.0
	out, err := svc.ParticipantComplete(context.Background(), dto.ParticipantReportInput{
		RaterID:       "r1",
		DatasetID:     "ds",
		ParticipantID: "P01",
		Trials:        []dto.TrialReport{{TrialNumber: 1, Word: "casa", Accuracy: "correct", OnsetMs: &onset, OnsetStatus: "confirmed"}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined exporter failure, got %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected deliveries for the two enabled exporters, got %+v", out)
	}
	if out[0].Exporter != "a" || out[0].Location != "mem://a/P01" || out[0].Error != "" {
		t.Fatalf("unexpected delivery %+v", out[0])
	}
	if out[1].Exporter != "b" || out[1].Error == "" {
		t.Fatalf("expected failed delivery for b, got %+v", out[1])
	}
	got := host.reports["a"]
	if len(got) != 1 || !got[0].CompletedAt.Equal(now) || got[0].Trials[0].OnsetStatus != "confirmed" {
		t.Fatalf("unexpected report %+v", got)
	}
	if _, ok := host.reports["off"]; ok {
		t.Fatalf("disabled exporter must not be called")
	}
}

func TestParticipantCompleteSkipsTamperedBinary(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	path, sum := writeBinary(t, tmp, "a")
	writeManifests(t, tmp, []domain.Manifest{manifest("a", path, sum, true)})
	if err := os.WriteFile(path, []byte("tampered"), 0o755); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	host := &fakeHost{}
	svc := service.NewExportService(exportout.NewFileManifestStore(tmp), host, nil, nil)
	_, err := svc.ParticipantComplete(context.Background(), dto.ParticipantReportInput{RaterID: "r", DatasetID: "d", ParticipantID: "P"})
	if !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if len(host.reports) != 0 {
		t.Fatalf("tampered exporter must not run")
	}
}

func TestParticipantCompleteWithoutExportersIsQuiet(t *testing.T) {
	t.Parallel()
	svc := service.NewExportService(exportout.NewFileManifestStore(t.TempDir()), &fakeHost{}, nil, nil)
	out, err := svc.ParticipantComplete(context.Background(), dto.ParticipantReportInput{RaterID: "r", DatasetID: "d", ParticipantID: "P"})
	if err != nil || len(out) != 0 {
		t.Fatalf("expected no deliveries, got %v %v", out, err)
	}
	if _, err := svc.ParticipantComplete(context.Background(), dto.ParticipantReportInput{RaterID: "r"}); err == nil {
		t.Fatalf("incomplete report must be rejected")
	}
}
