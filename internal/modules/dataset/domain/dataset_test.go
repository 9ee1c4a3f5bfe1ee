package domain_test

import (
	"testing"

	"onsetscore/internal/modules/dataset/domain"
)

func TestResolveExhibitNameIsIdempotent(t *testing.T) {
	t.Parallel()
	cases := []struct {
		recorded string
		pid      string
		want     string
	}{
		{"P07_3_árbol.wav", "P7", "P7_3_arbol.wav"},
		{"P7_3_arbol.wav", "P7", "P7_3_arbol.wav"},
		{`C:\rec\S12_4_niño.wav`, "S12", "S12_4_nino.wav"},
		{"audio/x01_1_canción.mp3", "P1", "P1_1_cancion.mp3"},
		{"nounderscore.wav", "P1", "nounderscore.wav"},
		{"", "P1", ""},
		{"x_2_sol.wav", "site/P3", "site-P3_2_sol.wav"},
		{`x_2_sol.wav`, `site\P3`, "site-P3_2_sol.wav"},
	}
	for _, tc := range cases {
		got := domain.ResolveExhibitName(tc.recorded, tc.pid)
		if got != tc.want {
			t.Fatalf("resolve(%q, %q) = %q, want %q", tc.recorded, tc.pid, got, tc.want)
		}
		if again := domain.ResolveExhibitName(got, tc.pid); again != got {
			t.Fatalf("resolve not idempotent for %q: %q then %q", tc.recorded, got, again)
		}
	}
}

func TestExhibitURL(t *testing.T) {
	t.Parallel()
	if got := domain.ExhibitURL("audio/ds1/", "P1", "P1_1_casa.wav"); got != "audio/ds1/P1/P1_1_casa.wav" {
		t.Fatalf("unexpected url %s", got)
	}
	if got := domain.ExhibitURL("", "P1", "x.wav"); got != "P1/x.wav" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestParseIndex(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"datasets":[{"id":"es-t1","label":"Spanish T1","test_type":"translation","timing":"T1",
		  "exhibit_path":"audio/es-t1","record_path":"records/es-t1","participants":["P1","P2"]}],
		"translations":{"árbol":"tree"}
	}`)
	idx, err := domain.ParseIndex(raw)
	if err != nil {
		t.Fatalf("parse index: %v", err)
	}
	ds, ok := idx.Dataset("es-t1")
	if !ok || !ds.HasParticipant("P2") || ds.HasParticipant("P3") {
		t.Fatalf("unexpected dataset %+v", ds)
	}
	if tr, ok := idx.Translate("ARBOL"); !ok || tr != "tree" {
		t.Fatalf("accent-insensitive translation failed: %q %v", tr, ok)
	}

	bad := [][]byte{
		[]byte(`{"datasets":[{"id":"x","test_type":"essay"}]}`),
		[]byte(`{"datasets":[{"id":"x","test_type":"translation","participants":["P1","P1"]}]}`),
		[]byte(`{"datasets":[{"id":"x","test_type":"translation"},{"id":"x","test_type":"translation"}]}`),
		[]byte(`not json`),
	}
	for _, b := range bad {
		if _, err := domain.ParseIndex(b); err == nil {
			t.Fatalf("expected error for %s", b)
		}
	}
}
