package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	datasetdto "onsetscore/internal/modules/dataset/dto"
	exhibitdto "onsetscore/internal/modules/exhibit/dto"
	exportdto "onsetscore/internal/modules/export/dto"
	navigationdto "onsetscore/internal/modules/navigation/dto"
	onsetdto "onsetscore/internal/modules/onset/dto"
	sessiondto "onsetscore/internal/modules/session/dto"
	apperrors "onsetscore/internal/platform/errors"
	"onsetscore/internal/ui/components"
	"onsetscore/internal/ui/theme"
	exportersview "onsetscore/internal/ui/views/exporters"
	progressview "onsetscore/internal/ui/views/progress"
	trialview "onsetscore/internal/ui/views/trial"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type navigationPort interface {
	Goto(ctx context.Context, participantIndex, trialIndex int) (navigationdto.ViewOutput, error)
	Next(ctx context.Context) (navigationdto.ViewOutput, error)
	Prev(ctx context.Context) (navigationdto.ViewOutput, error)
	NextParticipant(ctx context.Context) (navigationdto.ViewOutput, error)
	PrevParticipant(ctx context.Context) (navigationdto.ViewOutput, error)
	JumpToUnscored(ctx context.Context) (navigationdto.ViewOutput, error)
	Resume(ctx context.Context) (navigationdto.ViewOutput, error)
}

type scoringPort interface {
	Status(ctx context.Context) (sessiondto.StatusOutput, error)
	SetScore(ctx context.Context, participantID string, trialNumber int, accuracy, note *string) (sessiondto.ScoreOutput, error)
	GetScore(ctx context.Context, participantID string, trialNumber int) (sessiondto.ScoreOutput, error)
	Flush(ctx context.Context) error
}

type onsetPort interface {
	Focus(ctx context.Context, participantID string, trialNumber int) (onsetdto.OnsetOutput, error)
	Apply(ctx context.Context, action string, valueMs *float64) (onsetdto.OnsetOutput, error)
	Place(ctx context.Context, ms float64, source string) (onsetdto.OnsetOutput, error)
	SetNote(ctx context.Context, note string) (onsetdto.OnsetOutput, error)
}

type exhibitPort interface {
	Locate(ctx context.Context, input exhibitdto.LocateInput) (exhibitdto.LocateOutput, error)
}

type datasetPort interface {
	Translate(ctx context.Context, word string) (datasetdto.TranslationOutput, error)
}

type exportPort interface {
	List(ctx context.Context) ([]exportdto.ExporterInfo, error)
	Doctor(ctx context.Context) ([]exportdto.DoctorResult, error)
}

// Ports groups everything the scoring program drives.
type Ports struct {
	Navigation navigationPort
	Scoring    scoringPort
	Onset      onsetPort
	Exhibits   exhibitPort
	Datasets   datasetPort
	Exports    exportPort
}

// ─── tabs ────────────────────────────────────────────────────────────────────

type tabID int

const (
	tabTrial tabID = iota
	tabProgress
	tabExporters
	tabCount
)

var tabLabels = [tabCount]string{"Trial", "Participants", "Exporters"}

// ─── async messages ──────────────────────────────────────────────────────────

type navigatedMsg struct {
	out navigationdto.ViewOutput
	err error
}

type scoredMsg struct {
	score sessiondto.ScoreOutput
	err   error
}

type onsetMsg struct {
	out onsetdto.OnsetOutput
	err error
}

type flushedMsg struct{ err error }

// ─── key bindings ────────────────────────────────────────────────────────────

type keyMap struct {
	Next, Prev                key.Binding
	NextPart, PrevPart        key.Binding
	Jump                      key.Binding
	Correct, Incorrect        key.Binding
	SelfCorrected, NoResponse key.Binding
	ClearScore                key.Binding
	Confirm, Manual, NoSpeech key.Binding
	ClearOnset, Note          key.Binding
	Tab, Help, Palette, Quit  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Next:          key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next trial")),
		Prev:          key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev trial")),
		NextPart:      key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next participant")),
		PrevPart:      key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev participant")),
		Jump:          key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "next unscored")),
		Correct:       key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "correct")),
		Incorrect:     key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "incorrect")),
		SelfCorrected: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "self-corrected")),
		NoResponse:    key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "no response")),
		ClearScore:    key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "clear accuracy")),
		Confirm:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "confirm onset")),
		Manual:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual onset")),
		NoSpeech:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "no speech")),
		ClearOnset:    key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "clear onset")),
		Note:          key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "note")),
		Tab:           key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette:       key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "command")),
		Quit:          key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Tab, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.NextPart, k.PrevPart, k.Jump},
		{k.Correct, k.Incorrect, k.SelfCorrected, k.NoResponse, k.ClearScore},
		{k.Confirm, k.Manual, k.NoSpeech, k.ClearOnset, k.Note},
		{k.Tab, k.Palette, k.Help, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root program. It routes keys to the scoring ports and leaves
// rendering to the tab views. Trials come into view only through the
// surface, so a superseded navigation never reaches the screen.
type Model struct {
	ports   Ports
	surface *Surface

	trialView     trialview.Model
	progressView  progressview.Model
	exportersView exportersview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int

	// flushFailed lets a second quit leave without saving.
	flushFailed bool
}

func NewModel(ports Ports, surface *Surface) Model {
	return Model{
		ports:         ports,
		surface:       surface,
		trialView:     trialview.New(trialPortBridge{ports: ports}),
		progressView:  progressview.New(ports.Scoring),
		exportersView: exportersview.New(ports.Exports),
		activeTab:     tabTrial,
		keys:          defaultKeys(),
		help:          help.New(),
		palette:       components.NewPalette(),
		status:        "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.surface.waitView(),
		m.surface.waitClick(),
		m.progressView.Init(),
		m.exportersView.Init(),
		m.navigate("resume", m.ports.Navigation.Resume),
	)
}

// ─── update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The open palette owns the keyboard; everything else, including the
	// surface wait loops, keeps flowing.
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, cmd
		}
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.propagateSize()
		return m, nil

	case NavigatedMsg:
		cmds = append(cmds, m.surface.waitView(), m.trialView.Show(msg.View), m.focusCmd(msg.View))
		return m, tea.Batch(cmds...)

	case ClickToSetMsg:
		m.trialView.SetClickToSet(msg.Enabled)
		cmds = append(cmds, m.surface.waitClick())
		return m, tea.Batch(cmds...)

	case navigatedMsg:
		switch {
		case errors.Is(msg.err, apperrors.ErrNoActiveSession):
			m.status = "no active session: run `onsetscore session start` first"
		case msg.err != nil:
			m.status = "navigation: " + msg.err.Error()
		case !msg.out.Moved:
			m.status = "nothing further in that direction"
		default:
			m.status = fmt.Sprintf("%s trial %d", msg.out.ParticipantID, msg.out.TrialNumber)
		}
		return m, m.progressView.Refresh()

	case scoredMsg:
		if msg.err != nil {
			m.status = "score: " + msg.err.Error()
			return m, nil
		}
		m.trialView.SetScore(msg.score)
		m.status = "scored " + orUnset(msg.score.Accuracy)
		return m, m.progressView.Refresh()

	case onsetMsg:
		if msg.err != nil {
			m.status = "onset: " + msg.err.Error()
			return m, nil
		}
		if !msg.out.Applied {
			m.status = "click placement is off; press m for a manual onset"
		} else {
			m.status = "onset " + msg.out.OnsetStatus
		}
		m.trialView.SetClickToSet(msg.out.ClickToSet)
		return m, m.trialView.ReloadScore()

	case flushedMsg:
		if msg.err != nil {
			m.status = "save failed, press q again to quit anyway: " + msg.err.Error()
			m.flushFailed = true
			return m, nil
		}
		return m, tea.Quit

	case trialview.NoteSubmitMsg:
		return m, m.noteCmd(msg.Text)

	case progressview.GotoParticipantMsg:
		m.activeTab = tabTrial
		return m, m.navigate("goto", func(ctx context.Context) (navigationdto.ViewOutput, error) {
			return m.ports.Navigation.Goto(ctx, msg.Index, 0)
		})

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.trialView.Editing() {
			var cmd tea.Cmd
			m.trialView, cmd = m.trialView.Update(msg)
			return m, cmd
		}
		if m.subViewFiltering() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.flushFailed {
				return m, tea.Quit
			}
			return m, m.quitCmd()
		case key.Matches(msg, m.keys.Tab):
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case msg.String() == "shift+tab":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.Palette):
			cmd := m.palette.Open()
			return m, cmd
		}
		if m.activeTab == tabTrial {
			if cmd, ok := m.trialKey(msg); ok {
				return m, cmd
			}
		}
		if m.activeTab == tabProgress && msg.String() == "r" {
			return m, m.progressView.Refresh()
		}
	}

	// Keys go to the visible tab only; loads and ticks reach every view.
	_, isKey := msg.(tea.KeyMsg)
	var cmd tea.Cmd
	if !isKey || m.activeTab == tabTrial {
		m.trialView, cmd = m.trialView.Update(msg)
		cmds = append(cmds, cmd)
	}
	if !isKey || m.activeTab == tabProgress {
		m.progressView, cmd = m.progressView.Update(msg)
		cmds = append(cmds, cmd)
	}
	if !isKey || m.activeTab == tabExporters {
		m.exportersView, cmd = m.exportersView.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) trialKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	nav := m.ports.Navigation
	switch {
	case key.Matches(msg, m.keys.Next):
		return m.navigate("next", nav.Next), true
	case key.Matches(msg, m.keys.Prev):
		return m.navigate("prev", nav.Prev), true
	case key.Matches(msg, m.keys.NextPart):
		return m.navigate("next participant", nav.NextParticipant), true
	case key.Matches(msg, m.keys.PrevPart):
		return m.navigate("prev participant", nav.PrevParticipant), true
	case key.Matches(msg, m.keys.Jump):
		return m.navigate("jump", nav.JumpToUnscored), true
	case key.Matches(msg, m.keys.Correct):
		return m.scoreCmd("correct"), true
	case key.Matches(msg, m.keys.Incorrect):
		return m.scoreCmd("incorrect"), true
	case key.Matches(msg, m.keys.SelfCorrected):
		return m.scoreCmd("self_corrected"), true
	case key.Matches(msg, m.keys.NoResponse):
		return m.scoreCmd("no_response"), true
	case key.Matches(msg, m.keys.ClearScore):
		return m.scoreCmd(""), true
	case key.Matches(msg, m.keys.Confirm):
		return m.onsetCmd("confirm", nil), true
	case key.Matches(msg, m.keys.Manual):
		return m.onsetCmd("manual", nil), true
	case key.Matches(msg, m.keys.NoSpeech):
		return m.onsetCmd("no_speech", nil), true
	case key.Matches(msg, m.keys.ClearOnset):
		return m.onsetCmd("clear", nil), true
	case key.Matches(msg, m.keys.Note):
		return m.trialView.EditNote(), true
	}
	return nil, false
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := max(m.height-lipgloss.Height(tabBar)-lipgloss.Height(statusBar), 1)

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.FullHelpView(m.keys.FullHelp()))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		content = m.activeView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) activeView() string {
	switch m.activeTab {
	case tabTrial:
		return m.trialView.View()
	case tabProgress:
		return m.progressView.View()
	case tabExporters:
		return m.exportersView.View()
	}
	return ""
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		label := " " + tabLabels[i] + " "
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(label)
		} else {
			parts[i] = theme.Muted.Render(label)
		}
	}
	bar := "onsetscore  " + strings.Join(parts, theme.Muted.Render(" │ "))
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	right := m.help.ShortHelpView(m.keys.ShortHelp())
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette ─────────────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	switch parts[0] {
	case "goto":
		if len(parts) < 3 {
			m.status = "usage: goto <participant> <trial>"
			return m, nil
		}
		p, perr := strconv.Atoi(parts[1])
		t, terr := strconv.Atoi(parts[2])
		if perr != nil || terr != nil {
			m.status = "goto takes 1-based positions"
			return m, nil
		}
		m.activeTab = tabTrial
		return m, m.navigate("goto", func(ctx context.Context) (navigationdto.ViewOutput, error) {
			return m.ports.Navigation.Goto(ctx, p-1, t-1)
		})

	case "jump":
		m.activeTab = tabTrial
		return m, m.navigate("jump", m.ports.Navigation.JumpToUnscored)

	case "score":
		if len(parts) < 2 {
			m.status = "usage: score <accuracy|clear>"
			return m, nil
		}
		accuracy := parts[1]
		if accuracy == "clear" {
			accuracy = ""
		}
		return m, m.scoreCmd(accuracy)

	case "correct", "manual":
		value, err := optionalMs(parts[1:])
		if err != nil || (parts[0] == "correct" && value == nil) {
			m.status = "usage: " + parts[0] + " <ms>"
			return m, nil
		}
		return m, m.onsetCmd(parts[0], value)

	case "click", "drag":
		value, err := optionalMs(parts[1:])
		if err != nil || value == nil {
			m.status = "usage: " + parts[0] + " <ms>"
			return m, nil
		}
		ms := *value
		source := parts[0]
		return m, func() tea.Msg {
			out, err := m.ports.Onset.Place(context.Background(), ms, source)
			return onsetMsg{out: out, err: err}
		}

	case "note":
		return m, m.noteCmd(strings.TrimSpace(strings.TrimPrefix(input, parts[0])))

	case "exporters":
		m.activeTab = tabExporters
		return m, nil

	case "doctor":
		m.activeTab = tabExporters
		cmd := m.exportersView.RunDoctor()
		return m, cmd
	}
	m.status = "unknown command: " + parts[0]
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m Model) subViewFiltering() bool {
	switch m.activeTab {
	case tabProgress:
		return m.progressView.Filtering()
	case tabExporters:
		return m.exportersView.Filtering()
	}
	return false
}

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: m.height - 3}
	m.trialView, _ = m.trialView.Update(sz)
	m.progressView, _ = m.progressView.Update(sz)
	m.exportersView, _ = m.exportersView.Update(sz)
}

func optionalMs(args []string) (*float64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func orUnset(v string) string {
	if v == "" {
		return "cleared"
	}
	return v
}

// ─── async commands ──────────────────────────────────────────────────────────

func (m Model) navigate(label string, move func(context.Context) (navigationdto.ViewOutput, error)) tea.Cmd {
	return func() tea.Msg {
		out, err := move(context.Background())
		if err != nil {
			err = fmt.Errorf("%s: %w", label, err)
		}
		return navigatedMsg{out: out, err: err}
	}
}

func (m Model) focusCmd(view navigationdto.ViewOutput) tea.Cmd {
	return func() tea.Msg {
		out, err := m.ports.Onset.Focus(context.Background(), view.ParticipantID, view.TrialNumber)
		if err != nil {
			return onsetMsg{err: err}
		}
		return ClickToSetMsg{Enabled: out.ClickToSet}
	}
}

func (m Model) scoreCmd(accuracy string) tea.Cmd {
	view, ok := m.trialView.Current()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		score, err := m.ports.Scoring.SetScore(context.Background(), view.ParticipantID, view.TrialNumber, &accuracy, nil)
		return scoredMsg{score: score, err: err}
	}
}

func (m Model) onsetCmd(action string, value *float64) tea.Cmd {
	return func() tea.Msg {
		out, err := m.ports.Onset.Apply(context.Background(), action, value)
		return onsetMsg{out: out, err: err}
	}
}

func (m Model) noteCmd(note string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.ports.Onset.SetNote(context.Background(), note)
		return onsetMsg{out: out, err: err}
	}
}

// quitCmd writes pending scores before the program exits.
func (m Model) quitCmd() tea.Cmd {
	return func() tea.Msg {
		return flushedMsg{err: m.ports.Scoring.Flush(context.Background())}
	}
}

// ─── port bridges ────────────────────────────────────────────────────────────

type trialPortBridge struct{ ports Ports }

func (b trialPortBridge) GetScore(ctx context.Context, participantID string, trialNumber int) (sessiondto.ScoreOutput, error) {
	return b.ports.Scoring.GetScore(ctx, participantID, trialNumber)
}

func (b trialPortBridge) Locate(ctx context.Context, input exhibitdto.LocateInput) (exhibitdto.LocateOutput, error) {
	return b.ports.Exhibits.Locate(ctx, input)
}

func (b trialPortBridge) Translate(ctx context.Context, word string) (datasetdto.TranslationOutput, error) {
	return b.ports.Datasets.Translate(ctx, word)
}
