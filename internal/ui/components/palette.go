package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"onsetscore/internal/ui/theme"
)

// PaletteSubmitMsg is emitted when the user confirms a command.
type PaletteSubmitMsg struct{ Input string }

// PaletteCancelMsg is emitted when the user presses esc.
type PaletteCancelMsg struct{}

var (
	paletteStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Peach).
			Background(theme.Mantle).
			Foreground(theme.Text).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().Foreground(theme.Subtext0)
)

// hints must stay in sync with the switch in app/model.go executePalette.
var paletteHints = []string{
	"goto <participant> <trial>",
	"jump",
	"score <correct|incorrect|self_corrected|no_response|clear>",
	"correct <ms>",
	"manual [ms]",
	"click <ms>",
	"drag <ms>",
	"note <text>",
	"exporters",
	"doctor",
}

const historyLimit = 32

// Palette is the command line overlay. Up and down walk previously submitted
// commands; tab completes the command word.
type Palette struct {
	input   textinput.Model
	visible bool
	width   int
	history []string
	histPos int
}

func NewPalette() Palette {
	ti := textinput.New()
	ti.Placeholder = "type a command…"
	ti.CharLimit = 256
	return Palette{input: ti}
}

func (p Palette) Visible() bool { return p.visible }

// Open shows the palette with an empty input and returns the focus command.
func (p *Palette) Open() tea.Cmd {
	p.visible = true
	p.input.SetValue("")
	p.histPos = len(p.history)
	return p.input.Focus()
}

func (p *Palette) SetWidth(w int) { p.width = w }

func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			p.visible = false
			p.input.Blur()
			return p, func() tea.Msg { return PaletteCancelMsg{} }
		case "enter":
			val := strings.TrimSpace(p.input.Value())
			p.visible = false
			p.input.Blur()
			p.remember(val)
			return p, func() tea.Msg { return PaletteSubmitMsg{Input: val} }
		case "up":
			p.recall(-1)
			return p, nil
		case "down":
			p.recall(1)
			return p, nil
		case "tab":
			if m := matchHints(p.input.Value()); len(m) > 0 {
				p.input.SetValue(commandWord(m[0]) + " ")
				p.input.CursorEnd()
			}
			return p, nil
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *Palette) remember(val string) {
	if val == "" || (len(p.history) > 0 && p.history[len(p.history)-1] == val) {
		return
	}
	p.history = append(p.history, val)
	if len(p.history) > historyLimit {
		p.history = p.history[len(p.history)-historyLimit:]
	}
}

func (p *Palette) recall(step int) {
	if len(p.history) == 0 {
		return
	}
	p.histPos = max(0, min(len(p.history), p.histPos+step))
	if p.histPos == len(p.history) {
		p.input.SetValue("")
		return
	}
	p.input.SetValue(p.history[p.histPos])
	p.input.CursorEnd()
}

func commandWord(hint string) string {
	word, _, _ := strings.Cut(hint, " ")
	return word
}

// matchHints returns the hints whose command starts with the typed word, or
// all of them once an exact command has been typed with arguments.
func matchHints(typed string) []string {
	typed = strings.ToLower(strings.TrimLeft(typed, " "))
	word, _, hasArgs := strings.Cut(typed, " ")
	var out []string
	for _, h := range paletteHints {
		cmd := commandWord(h)
		if (hasArgs && cmd == word) || (!hasArgs && strings.HasPrefix(cmd, word)) {
			out = append(out, h)
		}
	}
	return out
}

func (p Palette) View() string {
	if !p.visible {
		return ""
	}
	matching := matchHints(p.input.Value())
	if len(matching) > 5 {
		matching = matching[:5]
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Command") + "\n")
	sb.WriteString(": " + p.input.View() + "\n")
	if len(matching) > 0 {
		sb.WriteString("\n")
		for _, h := range matching {
			sb.WriteString(hintStyle.Render("  "+h) + "\n")
		}
	}

	w := p.width
	if w < 20 {
		w = 64
	}
	return paletteStyle.Width(w - 2).Render(sb.String())
}
