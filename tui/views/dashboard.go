package views

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"donorwall/models"
	"donorwall/tui/styles"
)

type dashboardDataMsg struct {
	donorCount int
	runs       []models.ScrapeRun
}

type logTailMsg struct {
	lines   []string
	modTime time.Time
}

type Dashboard struct {
	src           Source
	width, height int
	donorCount    int
	runs          []models.ScrapeRun
	logLines      []string
	logPath       string
	logScroll     int // 0 = newest
	logViewport   int
	logBuffer     int
	logModTime    time.Time
}

func NewDashboard(src Source, logPath string) Dashboard {
	if logPath == "" {
		logPath = "daemon.log"
	}
	return Dashboard{
		src:         src,
		logPath:     logPath,
		logViewport: 20,
		logBuffer:   200,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.Refresh(), d.TailLog())
}

func (d Dashboard) Refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := queryCtx()
		defer cancel()
		count, _ := d.src.CountDonors(ctx)
		runs, _ := d.src.RecentRuns(ctx, 8)
		return dashboardDataMsg{donorCount: count, runs: runs}
	}
}

func (d Dashboard) TailLog() tea.Cmd {
	return func() tea.Msg {
		lines, modTime := readLastLines(d.logPath, d.logBuffer)
		return logTailMsg{lines, modTime}
	}
}

func readLastLines(path string, n int) ([]string, time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}

	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	defer f.Close()

	var all []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if len(all) == 0 {
		return []string{"(empty log)"}, info.ModTime()
	}

	start := len(all) - n
	if start < 0 {
		start = 0
	}
	return all[start:], info.ModTime()
}

func (d Dashboard) SetSize(w, h int) Dashboard {
	d.width = w
	d.height = h
	if h > 24 {
		d.logViewport = h - 22
	}
	return d
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.donorCount = msg.donorCount
		d.runs = msg.runs
	case logTailMsg:
		d.logLines = msg.lines
		d.logModTime = msg.modTime
	case tea.KeyMsg:
		maxScroll := len(d.logLines) - d.logViewport
		if maxScroll < 0 {
			maxScroll = 0
		}
		switch msg.String() {
		case "up", "k":
			d.logScroll = min(d.logScroll+1, maxScroll)
		case "down", "j":
			d.logScroll = max(d.logScroll-1, 0)
		case "pgup":
			d.logScroll = min(d.logScroll+10, maxScroll)
		case "pgdown":
			d.logScroll = max(d.logScroll-10, 0)
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d Dashboard) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Dashboard"),
		d.renderStatCards(),
		"",
		styles.Title.Render("Recent Runs"),
		d.renderRunsTable(),
		"",
		d.renderLogTail(),
	)
}

func (d Dashboard) renderStatCards() string {
	status, lastRun, names := "never run", "never", "-"
	statusStyle := styles.StatusPending
	if len(d.runs) > 0 {
		r := d.runs[0]
		status = string(r.Status)
		statusStyle = styles.StatusStyle(status)
		lastRun = relativeTime(r.StartedAt)
		names = fmt.Sprintf("%d", r.NamesFound)
	}

	cards := []string{
		d.renderStatCard("Donors", fmt.Sprintf("%d", d.donorCount), styles.StatValue),
		d.renderStatCard("Last run", status, statusStyle),
		d.renderStatCard("Started", lastRun, styles.StatValue),
		d.renderStatCard("Names found", names, styles.StatValue),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (d Dashboard) renderStatCard(label, value string, valueStyle lipgloss.Style) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		valueStyle.Bold(true).Render(value),
		styles.StatLabel.Render(label),
	)
	return styles.CardBorder.Width(18).Render(content)
}

func (d Dashboard) renderRunsTable() string {
	if len(d.runs) == 0 {
		return styles.Muted.Render("No runs yet")
	}

	header := fmt.Sprintf("%-10s %-10s %-9s %6s %7s  %s",
		"Run", "Status", "Started", "Found", "Written", "Error")
	rows := styles.TableHeader.Render(header) + "\n"

	for _, r := range d.runs {
		row := fmt.Sprintf("%-10s %s %-9s %6d %7d  %s",
			truncate(r.ID, 10),
			styles.StatusStyle(string(r.Status)).Render(fmt.Sprintf("%-10s", r.Status)),
			r.StartedAt.Local().Format("15:04:05"),
			r.NamesFound,
			r.DonorsWritten,
			styles.Muted.Render(truncate(r.Error, max(d.width-52, 10))),
		)
		rows += row + "\n"
	}
	return rows
}

func (d Dashboard) renderLogTail() string {
	width := max(d.width-4, 20)
	if len(d.logLines) == 0 {
		return styles.LogBox.Width(width).Render(styles.Muted.Render("(waiting for logs...)"))
	}

	total := len(d.logLines)
	end := total - d.logScroll
	start := max(end-d.logViewport, 0)

	var lines []string
	for _, line := range d.logLines[start:end] {
		lines = append(lines, formatLogLine(line, width-4))
	}

	indicator := styles.StatusSuccess.Render(" ● LIVE ")
	if d.logScroll > 0 {
		indicator = styles.StatusPending.Render(fmt.Sprintf(" ↑%d ", d.logScroll))
	} else if !d.logModTime.IsZero() && time.Since(d.logModTime) > 15*time.Minute {
		indicator = styles.StatusError.Render(" ● IDLE ")
	}

	header := styles.Title.Render("Daemon Log") + indicator +
		styles.Muted.Render(fmt.Sprintf("[%d-%d/%d]", start+1, end, total))
	return styles.LogBox.Width(width).Render(header + "\n" + strings.Join(lines, "\n"))
}

// formatLogLine renders one zerolog JSON line as "15:04:05 LEVEL message".
// Lines that are not JSON are shown as-is.
func formatLogLine(line string, maxWidth int) string {
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return truncate(line, maxWidth)
	}

	level, _ := entry["level"].(string)
	msg, _ := entry["message"].(string)
	if errText, ok := entry["error"].(string); ok {
		msg += ": " + errText
	}
	ts := ""
	if raw, ok := entry["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			ts = t.Local().Format("15:04:05") + " "
		}
	}

	var levelStyle lipgloss.Style
	switch level {
	case "error", "fatal", "panic":
		levelStyle = styles.StatusError
	case "warn":
		levelStyle = styles.StatusPending
	case "info":
		levelStyle = styles.LogInfo
	default:
		levelStyle = styles.Muted
	}

	prefix := fmt.Sprintf("%-5s ", strings.ToUpper(level))
	msg = truncate(msg, maxWidth-len(ts)-len(prefix))
	return styles.Muted.Render(ts) + levelStyle.Render(prefix) + msg
}
