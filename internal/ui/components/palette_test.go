package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
)

func typeInto(p Palette, s string) Palette {
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return p
}

func submit(t *testing.T, p Palette) (Palette, string) {
	t.Helper()
	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msg, ok := cmd().(PaletteSubmitMsg)
	if !ok {
		t.Fatalf("enter must submit")
	}
	return p, msg.Input
}

func TestPaletteTabCompletesCommandWord(t *testing.T) {
	t.Parallel()
	p := NewPalette()
	p.Open()
	p = typeInto(p, "cor")
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyTab})
	p = typeInto(p, "250")
	_, got := submit(t, p)
	if got != "correct 250" {
		t.Fatalf("unexpected submission %q", got)
	}
}

func TestPaletteRecallsHistory(t *testing.T) {
	t.Parallel()
	p := NewPalette()
	for _, in := range []string{"jump", "correct 300", "correct 300"} {
		p.Open()
		p = typeInto(p, in)
		p, _ = submit(t, p)
	}
	if diff := cmp.Diff([]string{"jump", "correct 300"}, p.history); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	p.Open()
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyUp})
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := p.input.Value(); got != "jump" {
		t.Fatalf("expected oldest entry, got %q", got)
	}
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := p.input.Value(); got != "" {
		t.Fatalf("walking past the newest entry must clear the input, got %q", got)
	}
}

func TestMatchHints(t *testing.T) {
	t.Parallel()
	if diff := cmp.Diff([]string{"correct <ms>", "click <ms>"}, matchHints("c")); diff != "" {
		t.Fatalf("prefix match mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"drag <ms>"}, matchHints("drag 12")); diff != "" {
		t.Fatalf("typed command with args must pin its hint:\n%s", diff)
	}
	if got := matchHints("zzz"); len(got) != 0 {
		t.Fatalf("expected no hints, got %v", got)
	}
}
