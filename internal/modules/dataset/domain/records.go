package domain

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

type column int

const (
	colTrial column = iota
	colWord
	colWordID
	colListID
	colRecording
	colVoice
	colPlaybackEnd
	colImage
	colImageOnset
	colAutoOnset
	colLatency
	colLatencyStatus
)

var headerAliases = map[string]column{
	"trial":               colTrial,
	"trial_number":        colTrial,
	"trial_num":           colTrial,
	"trialnumber":         colTrial,
	"word":                colWord,
	"target":              colWord,
	"stimulus":            colWord,
	"word_id":             colWordID,
	"list_id":             colListID,
	"list":                colListID,
	"recording_file":      colRecording,
	"filename":            colRecording,
	"file":                colRecording,
	"audio_file":          colRecording,
	"voice":               colVoice,
	"playback_end_ms_rel": colPlaybackEnd,
	"playback_end_ms":     colPlaybackEnd,
	"image":               colImage,
	"image_file":          colImage,
	"image_onset_ms_rel":  colImageOnset,
	"image_onset_ms":      colImageOnset,
	"auto_onset_ms_rel":   colAutoOnset,
	"auto_onset_ms":       colAutoOnset,
	"onset_ms_rel":        colAutoOnset,
	"onset_ms":            colAutoOnset,
	"latency_ms":          colLatency,
	"latency_status":      colLatencyStatus,
}

// RowError describes a record row that could not become a trial.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

type row struct {
	cells []string
	cols  map[column]int
}

func (r row) text(c column) string {
	i, ok := r.cols[c]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

// number returns nil when the cell is missing, blank or not numeric, so that
// absence stays distinguishable from a real zero.
func (r row) number(c column) *float64 {
	s := r.text(c)
	switch strings.ToLower(s) {
	case "", "na", "n/a", "nan", "null", "none", "-":
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (r row) trialNumber() (int, bool) {
	v := r.number(colTrial)
	if v == nil || *v != math.Trunc(*v) {
		return 0, false
	}
	return int(*v), true
}

// ParseRecordSet reads one participant's delimited record document. The
// header row names the columns; the delimiter (comma, tab or semicolon) is
// taken from the header. Rows without a usable trial number, and duplicate
// trial numbers, are reported in the returned RowErrors and skipped. Trials
// come back sorted by trial number.
func ParseRecordSet(r io.Reader, testType TestType, participantID string) ([]Trial, []RowError, error) {
	if err := testType.Validate(); err != nil {
		return nil, nil, err
	}
	br := bufio.NewReader(r)
	headerLine, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, nil, fmt.Errorf("read record header: %w", err)
	}
	if len(strings.TrimSpace(string(headerLine))) == 0 {
		return []Trial{}, nil, nil
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(string(headerLine))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read record header: %w", err)
	}
	cols := make(map[column]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		if c, ok := headerAliases[key]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	if _, ok := cols[colTrial]; !ok {
		return nil, nil, fmt.Errorf("record header has no trial column")
	}

	var trials []Trial
	var rowErrs []RowError
	seen := map[int]struct{}{}
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			line := 0
			if errors.As(err, &pe) {
				line = pe.Line
			}
			rowErrs = append(rowErrs, RowError{Line: line, Reason: err.Error()})
			continue
		}
		line, _ := reader.FieldPos(0)
		if blankRow(cells) {
			continue
		}
		rw := row{cells: cells, cols: cols}
		n, ok := rw.trialNumber()
		if !ok {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: fmt.Sprintf("invalid trial number %q", rw.text(colTrial))})
			continue
		}
		if _, dup := seen[n]; dup {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: fmt.Sprintf("duplicate trial number %d", n)})
			continue
		}
		seen[n] = struct{}{}
		trials = append(trials, transform(rw, n, testType, participantID))
	}

	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Number < trials[j].Number })
	if trials == nil {
		trials = []Trial{}
	}
	return trials, rowErrs, nil
}

func transform(rw row, number int, testType TestType, participantID string) Trial {
	word := rw.text(colWord)
	recording := rw.text(colRecording)
	t := Trial{
		Number:         number,
		Word:           word,
		WordNormalized: NormalizeWord(word),
		WordID:         rw.text(colWordID),
		ListID:         rw.text(colListID),
		RecordingFile:  recording,
		ExhibitName:    ResolveExhibitName(recording, participantID),
		AutoOnsetMs:    rw.number(colAutoOnset),
		LatencyMs:      rw.number(colLatency),
		LatencyStatus:  rw.text(colLatencyStatus),
	}
	switch testType {
	case TestTypeTranslation:
		t.Voice = rw.text(colVoice)
		t.PlaybackEndMs = rw.number(colPlaybackEnd)
	case TestTypePictureNaming:
		t.Image = rw.text(colImage)
		t.ImageOnsetMs = rw.number(colImageOnset)
	}
	return t
}

func sniffDelimiter(head string) rune {
	first := head
	if i := strings.IndexAny(head, "\r\n"); i >= 0 {
		first = head[:i]
	}
	best, count := ',', strings.Count(first, ",")
	for _, d := range []rune{'\t', ';'} {
		if c := strings.Count(first, string(d)); c > count {
			best, count = d, c
		}
	}
	return best
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
