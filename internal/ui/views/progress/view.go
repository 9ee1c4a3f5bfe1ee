package progress

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	sessiondto "onsetscore/internal/modules/session/dto"
	"onsetscore/internal/platform/markdown"
	"onsetscore/internal/ui/theme"
)

type Port interface {
	Status(ctx context.Context) (sessiondto.StatusOutput, error)
}

type StatusLoadedMsg struct {
	Status sessiondto.StatusOutput
	Err    error
}

// GotoParticipantMsg asks the app to move to the first trial of the
// selected participant.
type GotoParticipantMsg struct {
	Index int
}

type participantItem struct {
	index  int
	status sessiondto.ParticipantStatus
}

func (i participantItem) Title() string {
	marker := "  "
	if i.status.IsCurrent {
		marker = "▸ "
	}
	return marker + i.status.ID
}

func (i participantItem) Description() string {
	label := fmt.Sprintf("%d / %d scored", i.status.Scored, i.status.Trials)
	if i.status.Complete {
		return label + "  complete"
	}
	return label
}

func (i participantItem) FilterValue() string { return i.status.ID }

type Model struct {
	port     Port
	list     list.Model
	detail   viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	status   sessiondto.StatusOutput
	err      error
	loading  bool
	width    int
	height   int
}

func New(port Port) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Participants"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().
		Background(theme.Mantle).
		Foreground(theme.Text).
		Padding(1)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	r, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(0),
	)
	return Model{port: port, list: l, detail: vp, spinner: sp, renderer: r, loading: true}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Refresh(), m.spinner.Tick)
}

// Refresh reloads participant progress from the session.
func (m Model) Refresh() tea.Cmd {
	return func() tea.Msg {
		status, err := m.port.Status(context.Background())
		return StatusLoadedMsg{Status: status, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case StatusLoadedMsg:
		m.loading = false
		m.err = msg.Err
		if msg.Err != nil {
			m.detail.SetContent(theme.Failed.Render(msg.Err.Error()))
			return m, nil
		}
		m.status = msg.Status
		items := make([]list.Item, len(msg.Status.Participants))
		for i, p := range msg.Status.Participants {
			items[i] = participantItem{index: i, status: p}
		}
		cmds = append(cmds, m.list.SetItems(items))
		m.detail.SetContent(m.renderDetail())

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		if msg.String() == "enter" && !m.Filtering() {
			if item, ok := m.list.SelectedItem().(participantItem); ok {
				idx := item.index
				return m, func() tea.Msg { return GotoParticipantMsg{Index: idx} }
			}
		}
	}

	if !m.loading {
		var lCmd tea.Cmd
		m.list, lCmd = m.list.Update(msg)
		cmds = append(cmds, lCmd)
		var vCmd tea.Cmd
		m.detail, vCmd = m.detail.Update(msg)
		cmds = append(cmds, vCmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading session…")
	}

	listW := m.width * 4 / 10
	detailW := m.width - listW

	listPane := lipgloss.NewStyle().
		Width(listW).
		Height(m.height).
		Render(m.list.View())

	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Background(theme.Mantle).
		Width(detailW - 2).
		Height(m.height - 2).
		Render(m.detail.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

// Filtering reports whether the list's search filter is open so the app
// does not consume global keys during a search.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m *Model) resize() {
	listW := m.width * 4 / 10
	detailW := m.width - listW
	m.list.SetSize(listW, m.height)
	m.detail.Width = detailW - 4
	m.detail.Height = m.height - 4
	if r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(m.detail.Width),
	); err == nil {
		m.renderer = r
	}
	if !m.loading && m.err == nil {
		m.detail.SetContent(m.renderDetail())
	}
}

func (m Model) renderDetail() string {
	s := m.status.Session
	if s.SessionID == "" {
		return theme.Muted.Render("No active session")
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(s.DatasetID) + "\n\n")
	sb.WriteString(theme.Muted.Render("rater:    ") + s.RaterID + "\n")
	sb.WriteString(theme.Muted.Render("session:  ") + s.SessionID + "\n")
	sb.WriteString(fmt.Sprintf("%s%d\n", theme.Muted.Render("scored:   "), s.TotalScored))
	if !s.LastSaved.IsZero() {
		sb.WriteString(theme.Muted.Render("saved:    ") + s.LastSaved.Local().Format("15:04:05") + "\n")
	}
	sb.WriteString("\n" + m.renderTable())
	sb.WriteString("\n" + theme.Muted.Render("enter: go to participant  r: refresh"))
	return sb.String()
}

// renderTable lays the per-participant progress out as a markdown table and
// renders it for the terminal, falling back to the raw markdown.
func (m Model) renderTable() string {
	complete := 0
	rows := make([][]string, 0, len(m.status.Participants))
	for _, p := range m.status.Participants {
		id := p.ID
		if p.IsCurrent {
			id = "**" + id + "**"
		}
		state := "-"
		switch {
		case p.Signaled:
			state = "exported"
		case p.Complete:
			state = "complete"
		}
		if p.Complete {
			complete++
		}
		rows = append(rows, []string{id, fmt.Sprintf("%d / %d", p.Scored, p.Trials), state})
	}
	doc := fmt.Sprintf("### %d / %d participants complete\n\n", complete, len(m.status.Participants)) +
		markdown.Table([]string{"participant", "scored", "state"}, rows)
	if m.renderer == nil {
		return doc
	}
	out, err := m.renderer.Render(doc)
	if err != nil {
		return doc
	}
	return out
}
