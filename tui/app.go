package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"donorwall/tui/styles"
	"donorwall/tui/views"
)

type tab int

const (
	tabDashboard tab = iota
	tabDonors
	tabJournal
)

// TriggerFunc asks the daemon for an immediate cycle and returns the number
// of donors written.
type TriggerFunc func(ctx context.Context) (int, error)

type model struct {
	activeTab     tab
	width, height int
	notification  string
	notifyUntil   time.Time
	trigger       TriggerFunc

	dashboard views.Dashboard
	donors    views.Donors
	journal   views.Journal
}

type tickMsg time.Time
type logTickMsg time.Time

type scrapeDoneMsg struct {
	count int
	err   error
}

func newModel(src views.Source, logPath string, trigger TriggerFunc) model {
	return model{
		activeTab: tabDashboard,
		trigger:   trigger,
		dashboard: views.NewDashboard(src, logPath),
		donors:    views.NewDonors(src),
		journal:   views.NewJournal(src),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.Init(),
		m.donors.Init(),
		m.journal.Init(),
		tickCmd(),
		logTickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func logTickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return logTickMsg(t)
	})
}

func (m model) notify(text string) model {
	m.notification = text
	m.notifyUntil = time.Now().Add(3 * time.Second)
	return m
}

func (m model) scrapeCmd() tea.Cmd {
	trigger := m.trigger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := trigger(ctx)
		return scrapeDoneMsg{n, err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1":
			m.activeTab = tabDashboard
		case "2":
			m.activeTab = tabDonors
		case "3":
			m.activeTab = tabJournal
		case "tab":
			m.activeTab = (m.activeTab + 1) % 3
		case "r":
			m = m.notify("Refreshed")
			return m, m.refreshAll()
		case "s":
			if m.trigger == nil {
				m = m.notify("API not configured")
				return m, nil
			}
			m = m.notify("Scrape requested...")
			return m, m.scrapeCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dashboard = m.dashboard.SetSize(msg.Width, msg.Height-4)
		m.donors = m.donors.SetSize(msg.Width, msg.Height-4)
		m.journal = m.journal.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case scrapeDoneMsg:
		if msg.err != nil {
			m = m.notify("Scrape failed: " + msg.err.Error())
		} else {
			m = m.notify(fmt.Sprintf("Scraped %d donors", msg.count))
		}
		return m, m.refreshAll()

	case tickMsg:
		cmds = append(cmds, m.refreshAll(), tickCmd())

	case logTickMsg:
		cmds = append(cmds, m.dashboard.TailLog(), logTickCmd())
	}

	switch msg.(type) {
	case tea.KeyMsg:
		// keys only reach the active tab
		switch m.activeTab {
		case tabDashboard:
			next, cmd := m.dashboard.Update(msg)
			m.dashboard = next.(views.Dashboard)
			cmds = append(cmds, cmd)
		case tabDonors:
			next, cmd := m.donors.Update(msg)
			m.donors = next.(views.Donors)
			cmds = append(cmds, cmd)
		case tabJournal:
			next, cmd := m.journal.Update(msg)
			m.journal = next.(views.Journal)
			cmds = append(cmds, cmd)
		}
	default:
		next, cmd1 := m.dashboard.Update(msg)
		m.dashboard = next.(views.Dashboard)
		cmds = append(cmds, cmd1)

		nextDonors, cmd2 := m.donors.Update(msg)
		m.donors = nextDonors.(views.Donors)
		cmds = append(cmds, cmd2)

		nextJournal, cmd3 := m.journal.Update(msg)
		m.journal = nextJournal.(views.Journal)
		cmds = append(cmds, cmd3)
	}

	return m, tea.Batch(cmds...)
}

func (m model) refreshAll() tea.Cmd {
	return tea.Batch(m.dashboard.Refresh(), m.donors.Refresh(), m.journal.Refresh())
}

func (m model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), m.renderContent(), m.renderStatusBar())
}

func (m model) renderTabs() string {
	names := []string{"1 Dashboard", "2 Donors", "3 Journal"}
	var rendered []string
	for i, name := range names {
		if tab(i) == m.activeTab {
			rendered = append(rendered, styles.TabActive.Render(name))
		} else {
			rendered = append(rendered, styles.TabInactive.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func (m model) renderContent() string {
	switch m.activeTab {
	case tabDonors:
		return m.donors.View()
	case tabJournal:
		return m.journal.View()
	default:
		return m.dashboard.View()
	}
}

func (m model) renderStatusBar() string {
	left := "tab Switch  r Refresh  s Scrape now  q Quit"
	right := ""
	if time.Now().Before(m.notifyUntil) {
		right = styles.Notification.Render(m.notification)
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 0)
	return styles.StatusBar.Render(left) + lipgloss.NewStyle().Width(gap).Render("") + right
}

// Run starts the terminal dashboard and blocks until the user quits.
func Run(src views.Source, logPath string, trigger TriggerFunc) error {
	p := tea.NewProgram(newModel(src, logPath, trigger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
