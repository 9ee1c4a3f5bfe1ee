package trial

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	datasetdto "onsetscore/internal/modules/dataset/dto"
	exhibitdto "onsetscore/internal/modules/exhibit/dto"
	navigationdto "onsetscore/internal/modules/navigation/dto"
	sessiondto "onsetscore/internal/modules/session/dto"
	"onsetscore/internal/ui/theme"
)

// Port is what the trial pane reads when a new trial comes into view.
type Port interface {
	GetScore(ctx context.Context, participantID string, trialNumber int) (sessiondto.ScoreOutput, error)
	Locate(ctx context.Context, input exhibitdto.LocateInput) (exhibitdto.LocateOutput, error)
	Translate(ctx context.Context, word string) (datasetdto.TranslationOutput, error)
}

type ScoreLoadedMsg struct {
	Key   string
	Score sessiondto.ScoreOutput
	Err   error
}

type ExhibitLocatedMsg struct {
	Key     string
	Exhibit exhibitdto.LocateOutput
	Err     error
}

type TranslatedMsg struct {
	Key         string
	Translation datasetdto.TranslationOutput
}

// NoteSubmitMsg carries an edited note back to the app.
type NoteSubmitMsg struct{ Text string }

type Model struct {
	port        Port
	view        navigationdto.ViewOutput
	score       sessiondto.ScoreOutput
	exhibit     exhibitdto.LocateOutput
	translation string
	clickToSet  bool
	note        textinput.Model
	editing     bool
	bar         progress.Model
	err         error
	width       int
	height      int
}

func New(port Port) Model {
	ti := textinput.New()
	ti.Placeholder = "note"
	ti.CharLimit = 512

	bar := progress.New(progress.WithSolidFill(string(theme.Lavender)), progress.WithoutPercentage())
	return Model{port: port, note: ti, bar: bar}
}

// Key identifies the trial in view; late loads for another trial are
// dropped.
func Key(v navigationdto.ViewOutput) string {
	return fmt.Sprintf("%s/%s/%d", v.DatasetID, v.ParticipantID, v.TrialNumber)
}

func (m Model) Current() (navigationdto.ViewOutput, bool) {
	return m.view, m.view.ParticipantID != ""
}

// Show puts a trial in view and starts loading its score, exhibit and
// translation.
func (m *Model) Show(v navigationdto.ViewOutput) tea.Cmd {
	m.view = v
	m.score = sessiondto.ScoreOutput{}
	m.exhibit = exhibitdto.LocateOutput{}
	m.translation = ""
	m.err = nil
	m.editing = false
	m.note.Blur()

	cmds := []tea.Cmd{m.ReloadScore(), m.locateCmd()}
	if v.TestType == "translation" && v.Word != "" {
		cmds = append(cmds, m.translateCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) ReloadScore() tea.Cmd {
	if m.port == nil || m.view.ParticipantID == "" {
		return nil
	}
	v, port := m.view, m.port
	return func() tea.Msg {
		score, err := port.GetScore(context.Background(), v.ParticipantID, v.TrialNumber)
		return ScoreLoadedMsg{Key: Key(v), Score: score, Err: err}
	}
}

func (m *Model) SetScore(score sessiondto.ScoreOutput) {
	if score.ParticipantID == m.view.ParticipantID && score.TrialNumber == m.view.TrialNumber {
		m.score = score
	}
}

func (m *Model) SetClickToSet(enabled bool) { m.clickToSet = enabled }

func (m Model) ClickToSetEnabled() bool { return m.clickToSet }

// EditNote opens the note editor seeded with the stored note.
func (m *Model) EditNote() tea.Cmd {
	if m.view.ParticipantID == "" {
		return nil
	}
	m.editing = true
	m.note.SetValue(m.score.Note)
	return m.note.Focus()
}

func (m Model) Editing() bool { return m.editing }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-8, 10)
		m.note.Width = max(msg.Width-12, 10)

	case ScoreLoadedMsg:
		if msg.Key != Key(m.view) {
			return m, nil
		}
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.score = msg.Score

	case ExhibitLocatedMsg:
		if msg.Key != Key(m.view) {
			return m, nil
		}
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.exhibit = msg.Exhibit

	case TranslatedMsg:
		if msg.Key == Key(m.view) && msg.Translation.Found {
			m.translation = msg.Translation.Translation
		}

	case tea.KeyMsg:
		if !m.editing {
			return m, nil
		}
		switch msg.String() {
		case "esc":
			m.editing = false
			m.note.Blur()
			return m, nil
		case "enter":
			text := m.note.Value()
			m.editing = false
			m.note.Blur()
			return m, func() tea.Msg { return NoteSubmitMsg{Text: text} }
		}
		var cmd tea.Cmd
		m.note, cmd = m.note.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	v := m.view
	if v.ParticipantID == "" {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			theme.Muted.Render("No trial in view. Start or resume a session."))
	}

	var sb strings.Builder
	sb.WriteString(theme.Title.Render(v.ParticipantID))
	sb.WriteString(theme.Muted.Render(fmt.Sprintf("  participant %d/%d  trial %d/%d  #%d",
		v.ParticipantIndex+1, v.ParticipantCount, v.TrialIndex+1, v.TrialCount, v.TrialNumber)) + "\n")
	sb.WriteString(m.bar.ViewAs(fraction(v.TrialIndex+1, v.TrialCount)) + "\n\n")

	word := theme.Word.Render(v.Word)
	if m.translation != "" {
		word += theme.Muted.Render("→ " + m.translation)
	}
	sb.WriteString(word + "\n\n")

	sb.WriteString(theme.Muted.Render("exhibit:  ") + m.exhibitLine() + "\n")
	sb.WriteString(theme.Muted.Render("auto:     ") + ms(v.AutoOnsetMs) + "\n")
	if v.LatencyMs != nil || v.LatencyStatus != "" {
		sb.WriteString(theme.Muted.Render("latency:  ") + ms(v.LatencyMs) + " " + theme.Muted.Render(v.LatencyStatus) + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(theme.Muted.Render("accuracy: ") + theme.Accuracy(m.score.Accuracy) + "\n")
	sb.WriteString(theme.Muted.Render("onset:    ") + ms(m.score.OnsetMs) + " " + theme.Muted.Render(m.score.OnsetStatus) + "\n")
	if m.clickToSet {
		sb.WriteString(theme.Hot.Render("click to place onset") + "\n")
	}
	if m.editing {
		sb.WriteString(theme.Muted.Render("note:     ") + m.note.View() + "\n")
	} else if m.score.Note != "" {
		sb.WriteString(theme.Muted.Render("note:     ") + m.score.Note + "\n")
	}
	if m.err != nil {
		sb.WriteString("\n" + theme.Failed.Render(m.err.Error()) + "\n")
	}

	return theme.PaneActive.Width(max(m.width-2, 10)).Render(sb.String())
}

func (m Model) exhibitLine() string {
	if m.exhibit.Location == "" {
		return theme.Muted.Render(orDefault(m.view.ExhibitName, "none"))
	}
	if m.exhibit.Cached {
		return m.exhibit.Location + theme.Done.Render("  cached")
	}
	return m.exhibit.Location + theme.Pending.Render("  remote")
}

func (m Model) locateCmd() tea.Cmd {
	if m.port == nil || m.view.ExhibitName == "" {
		return nil
	}
	view, port := m.view, m.port
	return func() tea.Msg {
		out, err := port.Locate(context.Background(), exhibitdto.LocateInput{
			DatasetID:     view.DatasetID,
			ParticipantID: view.ParticipantID,
			TrialNumber:   view.TrialNumber,
		})
		return ExhibitLocatedMsg{Key: Key(view), Exhibit: out, Err: err}
	}
}

func (m Model) translateCmd() tea.Cmd {
	if m.port == nil {
		return nil
	}
	view, port := m.view, m.port
	return func() tea.Msg {
		out, err := port.Translate(context.Background(), view.Word)
		if err != nil {
			return TranslatedMsg{Key: Key(view)}
		}
		return TranslatedMsg{Key: Key(view), Translation: out}
	}
}

func ms(v *float64) string {
	if v == nil {
		return theme.Muted.Render("-")
	}
	return fmt.Sprintf("%.1f ms", *v)
}

func fraction(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
