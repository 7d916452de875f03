package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"donorwall/models"
	"donorwall/tui/styles"
)

var logLevels = []string{"ALL", "INFO", "WARN", "ERROR"}

type journalMsg struct {
	run  *models.ScrapeRun
	logs []models.ScrapeLog
}

// Journal shows the journal lines of the latest cycle.
type Journal struct {
	src           Source
	width, height int
	run           *models.ScrapeRun
	logs          []models.ScrapeLog
	levelIndex    int
	scrollOffset  int
}

func NewJournal(src Source) Journal {
	return Journal{src: src}
}

func (j Journal) Init() tea.Cmd {
	return j.Refresh()
}

func (j Journal) Refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := queryCtx()
		defer cancel()
		run, err := j.src.LatestRun(ctx)
		if err != nil || run == nil {
			return journalMsg{}
		}
		logs, _ := j.src.RunLogs(ctx, run.ID)
		return journalMsg{run, logs}
	}
}

func (j Journal) SetSize(w, h int) Journal {
	j.width = w
	j.height = h
	return j
}

func (j Journal) filtered() []models.ScrapeLog {
	level := logLevels[j.levelIndex]
	if level == "ALL" {
		return j.logs
	}
	var out []models.ScrapeLog
	for _, l := range j.logs {
		if strings.EqualFold(string(l.Level), level) {
			out = append(out, l)
		}
	}
	return out
}

func (j Journal) visibleLines() int {
	return max(j.height-7, 5)
}

func (j Journal) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case journalMsg:
		j.run = msg.run
		j.logs = msg.logs
		j.scrollOffset = 0

	case tea.KeyMsg:
		maxScroll := max(len(j.filtered())-j.visibleLines(), 0)
		switch msg.String() {
		case "left", "h":
			if j.levelIndex > 0 {
				j.levelIndex--
				j.scrollOffset = 0
			}
		case "right", "l":
			if j.levelIndex < len(logLevels)-1 {
				j.levelIndex++
				j.scrollOffset = 0
			}
		case "up", "k":
			j.scrollOffset = max(j.scrollOffset-1, 0)
		case "down", "j":
			j.scrollOffset = min(j.scrollOffset+1, maxScroll)
		case "g":
			j.scrollOffset = 0
		case "G":
			j.scrollOffset = maxScroll
		}
	}
	return j, nil
}

func (j Journal) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Journal")+j.renderRunLine(),
		j.renderFilter(),
		"",
		j.renderLogs(),
	)
}

func (j Journal) renderRunLine() string {
	if j.run == nil {
		return styles.Muted.Render("no runs yet")
	}
	return styles.StatusStyle(string(j.run.Status)).Render(string(j.run.Status)) +
		styles.Muted.Render(fmt.Sprintf(" · run %s · %s", truncate(j.run.ID, 8), relativeTime(j.run.StartedAt)))
}

func (j Journal) renderFilter() string {
	var parts []string
	for i, level := range logLevels {
		if i == j.levelIndex {
			parts = append(parts, styles.TabActive.Render("["+level+"]"))
		} else {
			parts = append(parts, styles.TabInactive.Render(level))
		}
	}
	return "Filter: " + strings.Join(parts, " ") + "  (←/→ to change)"
}

func (j Journal) renderLogs() string {
	logs := j.filtered()
	if len(logs) == 0 {
		return styles.Muted.Render("No journal lines")
	}

	start := j.scrollOffset
	end := min(start+j.visibleLines(), len(logs))

	var lines []string
	for _, l := range logs[start:end] {
		lines = append(lines, j.formatLog(l))
	}
	header := styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(logs)))
	return header + "\n" + strings.Join(lines, "\n")
}

func (j Journal) formatLog(l models.ScrapeLog) string {
	var levelStyle lipgloss.Style
	switch l.Level {
	case models.LogLevelWarn:
		levelStyle = styles.StatusPending
	case models.LogLevelError:
		levelStyle = styles.StatusError
	default:
		levelStyle = styles.StatusSuccess
	}

	return fmt.Sprintf("%s %s %s",
		styles.Muted.Render(l.Timestamp.Local().Format("15:04:05")),
		levelStyle.Render(fmt.Sprintf("%-5s", strings.ToUpper(string(l.Level)))),
		truncate(l.Message, max(j.width-18, 20)),
	)
}
