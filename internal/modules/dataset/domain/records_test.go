package domain_test

import (
	"strings"
	"testing"

	"onsetscore/internal/modules/dataset/domain"
)

const translationCSV = `trial_number,word,word_id,list_id,recording_file,voice,playback_end_ms_rel,auto_onset_ms_rel,latency_ms,latency_status
3,árbol,w03,L1,P07_3_árbol.wav,female,812.5,1430,617.5,ok
1,casa,w01,L1,P07_1_casa.wav,male,640,0,0,ok
2,perro,w02,L1,P07_2_perro.wav,male,,NA,,no_onset
`

func TestParseRecordSetTranslation(t *testing.T) {
	t.Parallel()
	trials, rowErrs, err := domain.ParseRecordSet(strings.NewReader(translationCSV), domain.TestTypeTranslation, "P7")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("unexpected row errors: %v", rowErrs)
	}
	if len(trials) != 3 {
		t.Fatalf("expected 3 trials, got %d", len(trials))
	}
	for i, tr := range trials {
		if tr.Number != i+1 {
			t.Fatalf("trials must be sorted by number, got %d at %d", tr.Number, i)
		}
	}

	casa := trials[0]
	if casa.AutoOnsetMs == nil || *casa.AutoOnsetMs != 0 {
		t.Fatalf("a real zero onset must be kept, got %v", casa.AutoOnsetMs)
	}
	if casa.LatencyMs == nil || *casa.LatencyMs != 0 {
		t.Fatalf("a real zero latency must be kept, got %v", casa.LatencyMs)
	}
	if casa.Voice != "male" || casa.PlaybackEndMs == nil || *casa.PlaybackEndMs != 640 {
		t.Fatalf("translation fields not mapped: %+v", casa)
	}

	perro := trials[1]
	if perro.AutoOnsetMs != nil || perro.LatencyMs != nil || perro.PlaybackEndMs != nil {
		t.Fatalf("missing numeric cells must be absent, got %+v", perro)
	}
	if perro.LatencyStatus != "no_onset" {
		t.Fatalf("unexpected status %q", perro.LatencyStatus)
	}

	arbol := trials[2]
	if arbol.WordNormalized != "arbol" {
		t.Fatalf("unexpected normalized word %q", arbol.WordNormalized)
	}
	if arbol.RecordingFile != "P07_3_árbol.wav" || arbol.ExhibitName != "P7_3_arbol.wav" {
		t.Fatalf("unexpected exhibit names raw=%q resolved=%q", arbol.RecordingFile, arbol.ExhibitName)
	}
	if arbol.Image != "" || arbol.ImageOnsetMs != nil {
		t.Fatalf("picture naming fields must stay empty for translation")
	}
}

func TestParseRecordSetPictureNamingWithTabs(t *testing.T) {
	t.Parallel()
	doc := "Trial\tWord\tImage\tImage Onset ms rel\tFilename\n" +
		"2\tsol\tsol.png\t250\tP01_2_sol.wav\n" +
		"1\tluna\tluna.png\tx\tP01_1_luna.wav\n"
	trials, _, err := domain.ParseRecordSet(strings.NewReader(doc), domain.TestTypePictureNaming, "P01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(trials) != 2 || trials[0].Word != "luna" {
		t.Fatalf("unexpected trials %+v", trials)
	}
	if trials[0].ImageOnsetMs != nil {
		t.Fatalf("non-numeric offset must be absent")
	}
	if trials[1].Image != "sol.png" || trials[1].ImageOnsetMs == nil || *trials[1].ImageOnsetMs != 250 {
		t.Fatalf("picture naming fields not mapped: %+v", trials[1])
	}
	if trials[1].Voice != "" || trials[1].PlaybackEndMs != nil {
		t.Fatalf("translation fields must stay empty for picture naming")
	}
}

func TestParseRecordSetToleratesMalformedRows(t *testing.T) {
	t.Parallel()
	doc := "trial;word;latency_ms\n" +
		"1;uno;12,5\n" +
		"abc;dos;10\n" +
		"\n" +
		"1;uno-dup;3\n" +
		"4;cuatro\n"
	trials, rowErrs, err := domain.ParseRecordSet(strings.NewReader(doc), domain.TestTypeTranslation, "P01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(trials) != 2 {
		t.Fatalf("expected 2 surviving trials, got %+v", trials)
	}
	if trials[0].LatencyMs == nil || *trials[0].LatencyMs != 12.5 {
		t.Fatalf("decimal comma not honoured: %v", trials[0].LatencyMs)
	}
	if trials[1].Number != 4 || trials[1].LatencyMs != nil {
		t.Fatalf("short row must default to absent: %+v", trials[1])
	}
	if len(rowErrs) != 2 {
		t.Fatalf("expected bad number and duplicate row errors, got %v", rowErrs)
	}
}

func TestParseRecordSetRejectsMissingTrialColumnAndBadType(t *testing.T) {
	t.Parallel()
	if _, _, err := domain.ParseRecordSet(strings.NewReader("word\ncasa\n"), domain.TestTypeTranslation, "P01"); err == nil {
		t.Fatalf("missing trial column must fail")
	}
	if _, _, err := domain.ParseRecordSet(strings.NewReader("trial\n1\n"), domain.TestType("lexical"), "P01"); err == nil {
		t.Fatalf("unknown test type must fail")
	}
	trials, _, err := domain.ParseRecordSet(strings.NewReader("  \n"), domain.TestTypeTranslation, "P01")
	if err != nil || len(trials) != 0 {
		t.Fatalf("empty document must yield zero trials, got %v %v", trials, err)
	}
}
