package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"parallel-ytdl/internal/model"
)

const maxEvents = 8

// maxDiagLines caps the diagnostic lines shown under a failed job.
const maxDiagLines = 6

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type planMsg struct {
	workers int
	jobs    int
}

type eventMsg model.Event

type doneMsg struct{}

type workerRow struct {
	url     string
	percent float64
	speed   string
	eta     string
	since   time.Time
}

type Model struct {
	workers   int
	jobs      int
	succeeded int
	failed    int
	warnings  int

	active  map[int]workerRow
	events  []string
	started time.Time
	now     func() time.Time

	spinner spinner.Model
	bar     progress.Model
	width   int

	cancel      func()
	interrupted bool
	finished    bool
}

// NewModel builds an empty dashboard. cancel is invoked when the user
// presses ctrl+c or q.
func NewModel(cancel func()) Model {
	return Model{
		active:  make(map[int]workerRow),
		events:  make([]string, 0, maxEvents),
		started: time.Now(),
		now:     time.Now,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(titleStyle)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		width:   100,
		cancel:  cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-30))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.interrupted && m.cancel != nil {
				m.cancel()
			}
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil
	case planMsg:
		m.workers = msg.workers
		m.jobs = msg.jobs
		return m, nil
	case eventMsg:
		m.apply(model.Event(msg))
		return m, nil
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(e model.Event) {
	switch e.Kind {
	case model.EventStarted:
		m.active[e.Worker] = workerRow{url: e.Job.URL, since: m.now()}
	case model.EventProgress:
		row, ok := m.active[e.Worker]
		if !ok {
			row = workerRow{url: e.Job.URL, since: m.now()}
		}
		row.percent = e.Percent
		row.speed = e.Speed
		row.eta = e.ETA
		m.active[e.Worker] = row
	case model.EventSucceeded:
		delete(m.active, e.Worker)
		m.succeeded++
		m.pushEvent(okStyle.Render("done") + " " + e.Job.URL + mutedStyle.Render(" "+formatElapsed(e.Elapsed)))
	case model.EventFailed:
		delete(m.active, e.Worker)
		m.failed++
		var diag []string
		if e.Err != nil {
			diag = strings.Split(strings.TrimSpace(e.Err.Error()), "\n")
		}
		m.pushEvent(m.renderFailure(e.Job.URL, diag))
	case model.EventWarning:
		m.warnings++
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		m.pushEvent(warnStyle.Render("warn") + " " + msg)
	}
}

// renderFailure shows the first diagnostic line next to the URL and the rest
// indented below it, so failures are readable while the run is still going.
func (m *Model) renderFailure(url string, diag []string) string {
	width := 80
	if m.width > 0 {
		width = max(40, m.width-8)
	}
	head := errorStyle.Render("fail") + " " + url
	if len(diag) == 0 {
		return head
	}
	lines := []string{head + mutedStyle.Render(" "+truncate(strings.TrimRight(diag[0], "\r"), width))}
	rest := diag[1:]
	shown := min(len(rest), maxDiagLines)
	for _, l := range rest[:shown] {
		lines = append(lines, mutedStyle.Render("    "+truncate(strings.TrimRight(l, "\r"), width)))
	}
	if hidden := len(rest) - shown; hidden > 0 {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("    ... %d more lines", hidden)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) pushEvent(line string) {
	m.events = append([]string{line}, m.events...)
	if len(m.events) > maxEvents {
		m.events = m.events[:maxEvents]
	}
}

func (m Model) fraction() float64 {
	if m.jobs <= 0 {
		return 0
	}
	return math.Min(1, float64(m.succeeded+m.failed)/float64(m.jobs))
}

func (m Model) View() string {
	var b strings.Builder

	head := m.spinner.View() + " " + titleStyle.Render("parallel-ytdl")
	if m.finished {
		head = titleStyle.Render("parallel-ytdl finished")
	}
	if m.interrupted {
		head = errorStyle.Render("parallel-ytdl interrupted")
	}
	b.WriteString(head)
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  active %d/%d | done %d | failed %d | warnings %d | elapsed %s",
		len(m.active), m.workers, m.succeeded, m.failed, m.warnings, formatElapsed(m.now().Sub(m.started)))))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.fraction()))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d/%d", m.succeeded+m.failed, m.jobs)))
	b.WriteString("\n")

	ids := make([]int, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := make([]string, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, m.renderRow(id, m.active[id]))
	}
	if len(rows) == 0 {
		rows = append(rows, mutedStyle.Render("(no active workers)"))
	}
	b.WriteString(panelStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	for _, e := range m.events {
		b.WriteString(e + "\n")
	}
	if !m.finished && !m.interrupted {
		b.WriteString(mutedStyle.Render("ctrl+c/q: stop after persisting finished downloads") + "\n")
	}
	return b.String()
}

func (m Model) renderRow(id int, row workerRow) string {
	parts := []string{fmt.Sprintf("w%d", id)}
	if row.percent > 0 {
		parts = append(parts, fmt.Sprintf("%5.1f%%", row.percent))
	} else {
		parts = append(parts, "  ...")
	}
	if row.speed != "" {
		parts = append(parts, row.speed)
	}
	if row.eta != "" {
		parts = append(parts, "ETA "+row.eta)
	}
	parts = append(parts, formatElapsed(m.now().Sub(row.since)))
	prefix := strings.Join(parts, "  ")
	return prefix + "  " + truncate(row.url, max(20, m.width-len(prefix)-8))
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatElapsed(d time.Duration) string {
	secs := int64(math.Round(d.Seconds()))
	if secs < 0 {
		secs = 0
	}
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	minutes := secs / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, secs%60)
	}
	hours := minutes / 60
	remMinutes := minutes % 60
	if remMinutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, remMinutes)
}
