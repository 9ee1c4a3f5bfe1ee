package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type TestType string

const (
	// TestTypeTranslation trials play a spoken stimulus; latency is measured
	// from the end of stimulus playback.
	TestTypeTranslation TestType = "translation"
	// TestTypePictureNaming trials show an image; latency is measured from
	// image onset.
	TestTypePictureNaming TestType = "picture_naming"
)

func (t TestType) Validate() error {
	switch t {
	case TestTypeTranslation, TestTypePictureNaming:
		return nil
	default:
		return fmt.Errorf("unsupported test type %q", string(t))
	}
}

type Dataset struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	TestType     TestType `json:"test_type"`
	Timing       string   `json:"timing"`
	ExhibitPath  string   `json:"exhibit_path"`
	RecordPath   string   `json:"record_path"`
	Participants []string `json:"participants"`
}

func (d Dataset) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("dataset id is required")
	}
	if err := d.TestType.Validate(); err != nil {
		return fmt.Errorf("dataset %s: %w", d.ID, err)
	}
	seen := make(map[string]struct{}, len(d.Participants))
	for _, p := range d.Participants {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("dataset %s: empty participant id", d.ID)
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("dataset %s: duplicate participant %s", d.ID, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

func (d Dataset) HasParticipant(id string) bool {
	for _, p := range d.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Index is the installation-wide dataset catalogue.
type Index struct {
	Datasets     []Dataset         `json:"datasets"`
	Translations map[string]string `json:"translations"`
}

func ParseIndex(raw []byte) (*Index, error) {
	idx := &Index{}
	if err := json.Unmarshal(raw, idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	seen := make(map[string]struct{}, len(idx.Datasets))
	for _, d := range idx.Datasets {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("duplicate dataset %s", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	if idx.Translations == nil {
		idx.Translations = map[string]string{}
	}
	return idx, nil
}

func (i *Index) Dataset(id string) (Dataset, bool) {
	for _, d := range i.Datasets {
		if d.ID == id {
			return d, true
		}
	}
	return Dataset{}, false
}

// Translate looks a word up accent-insensitively.
func (i *Index) Translate(word string) (string, bool) {
	if t, ok := i.Translations[word]; ok {
		return t, true
	}
	folded := NormalizeWord(word)
	for k, v := range i.Translations {
		if NormalizeWord(k) == folded {
			return v, true
		}
	}
	return "", false
}

// Participant is one subject's full, immutable trial list, sorted by trial
// number.
type Participant struct {
	ID        string
	DatasetID string
	Trials    []Trial
}

func (p *Participant) TrialCount() int {
	return len(p.Trials)
}

func (p *Participant) TrialNumbers() []int {
	out := make([]int, len(p.Trials))
	for i, t := range p.Trials {
		out[i] = t.Number
	}
	return out
}

type Trial struct {
	Number         int
	Word           string
	WordNormalized string
	WordID         string
	ListID         string

	// translation
	Voice         string
	PlaybackEndMs *float64

	// picture naming
	Image        string
	ImageOnsetMs *float64

	RecordingFile string
	ExhibitName   string
	AutoOnsetMs   *float64
	LatencyMs     *float64
	LatencyStatus string
}

func CacheKey(datasetID, participantID string) string {
	return datasetID + "/" + participantID
}
