package exporters

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	exportdto "onsetscore/internal/modules/export/dto"
	"onsetscore/internal/ui/theme"
)

// Port is the part of the export use case this view needs.
type Port interface {
	List(ctx context.Context) ([]exportdto.ExporterInfo, error)
	Doctor(ctx context.Context) ([]exportdto.DoctorResult, error)
}

type ListedMsg struct {
	Exporters []exportdto.ExporterInfo
	Err       error
}

type DoctorDoneMsg struct {
	Results []exportdto.DoctorResult
	Err     error
}

type exporterItem struct{ info exportdto.ExporterInfo }

func (i exporterItem) Title() string { return i.info.Name }

func (i exporterItem) Description() string {
	state := "disabled"
	if i.info.Enabled {
		state = "enabled"
	}
	return i.info.Version + "  " + state
}

func (i exporterItem) FilterValue() string { return i.info.Name }

type Model struct {
	port    Port
	list    list.Model
	output  viewport.Model
	spinner spinner.Model
	doctor  map[string]exportdto.DoctorResult
	loading bool
	width   int
	height  int
}

func New(port Port) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Exporters"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(false)
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

	return Model{port: port, list: l, output: vp, spinner: sp}
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	if m.port == nil {
		return nil
	}
	return func() tea.Msg {
		items, err := m.port.List(context.Background())
		return ListedMsg{Exporters: items, Err: err}
	}
}

// RunDoctor checks every configured exporter.
func (m *Model) RunDoctor() tea.Cmd {
	if m.port == nil {
		return nil
	}
	m.loading = true
	port := m.port
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		results, err := port.Doctor(context.Background())
		return DoctorDoneMsg{Results: results, Err: err}
	})
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case ListedMsg:
		if msg.Err != nil {
			m.output.SetContent(theme.Failed.Render(msg.Err.Error()))
			return m, nil
		}
		items := make([]list.Item, len(msg.Exporters))
		for i, e := range msg.Exporters {
			items[i] = exporterItem{info: e}
		}
		cmds = append(cmds, m.list.SetItems(items))
		m.output.SetContent(m.renderDetail())

	case DoctorDoneMsg:
		m.loading = false
		if msg.Err != nil {
			m.output.SetContent(theme.Failed.Render(msg.Err.Error()))
			return m, nil
		}
		m.doctor = make(map[string]exportdto.DoctorResult, len(msg.Results))
		for _, r := range msg.Results {
			m.doctor[r.Name] = r
		}
		m.output.SetContent(m.renderDetail())

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		if msg.String() == "d" && !m.Filtering() {
			cmd := m.RunDoctor()
			return m, cmd
		}
	}

	prev := m.list.Index()
	var lCmd tea.Cmd
	m.list, lCmd = m.list.Update(msg)
	cmds = append(cmds, lCmd)
	if m.list.Index() != prev {
		m.output.SetContent(m.renderDetail())
	}
	var vCmd tea.Cmd
	m.output, vCmd = m.output.Update(msg)
	cmds = append(cmds, vCmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	listW := m.width * 4 / 10
	detailW := m.width - listW

	listPane := lipgloss.NewStyle().Width(listW).Height(m.height).Render(m.list.View())
	body := m.output.View()
	if m.loading {
		body = m.spinner.View() + " Checking exporters…"
	}
	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Background(theme.Mantle).
		Width(detailW - 2).
		Height(m.height - 2).
		Render(body)
	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m *Model) resize() {
	listW := m.width * 4 / 10
	detailW := m.width - listW
	m.list.SetSize(listW, m.height)
	m.output.Width = detailW - 4
	m.output.Height = m.height - 4
}

func (m Model) renderDetail() string {
	item, ok := m.list.SelectedItem().(exporterItem)
	if !ok {
		return theme.Muted.Render("No exporters configured")
	}
	e := item.info
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(e.Name) + "\n\n")
	sb.WriteString(theme.Muted.Render("version: ") + e.Version + "\n")
	sb.WriteString(theme.Muted.Render("binary:  ") + e.Binary + "\n")
	sb.WriteString(theme.Muted.Render("caps:    ") + strings.Join(e.Capabilities, ", ") + "\n")
	if r, ok := m.doctor[e.Name]; ok {
		sb.WriteString("\n")
		sb.WriteString(check("checksum", r.ChecksumValid))
		sb.WriteString(check("binary", r.BinaryReachable))
		sb.WriteString(check("lifecycle", r.LifecycleOK))
		if r.Error != "" {
			sb.WriteString(theme.Failed.Render(r.Error) + "\n")
		}
	}
	sb.WriteString("\n" + theme.Muted.Render("d: run doctor"))
	return sb.String()
}

func check(label string, ok bool) string {
	if ok {
		return theme.Done.Render("✓ ") + label + "\n"
	}
	return theme.Failed.Render("✗ ") + label + "\n"
}
