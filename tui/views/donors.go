package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"donorwall/models"
	"donorwall/tui/styles"
)

type donorsMsg struct {
	donors []models.Donor
	total  int
}

type Donors struct {
	src           Source
	width, height int
	donors        []models.Donor
	total         int
	selectedRow   int
	page          int // 0-indexed
	pageSize      int
}

func NewDonors(src Source) Donors {
	return Donors{src: src, pageSize: 50}
}

func (d Donors) Init() tea.Cmd {
	return d.Refresh()
}

func (d Donors) Refresh() tea.Cmd {
	page, size := d.page, d.pageSize
	return func() tea.Msg {
		ctx, cancel := queryCtx()
		defer cancel()
		donors, _ := d.src.ListDonors(ctx, size, page*size)
		total, _ := d.src.CountDonors(ctx)
		return donorsMsg{donors, total}
	}
}

func (d Donors) SetSize(w, h int) Donors {
	d.width = w
	d.height = h
	return d
}

// Selected returns the highlighted donor name.
func (d Donors) Selected() string {
	if d.selectedRow < len(d.donors) {
		return d.donors[d.selectedRow].Name
	}
	return ""
}

func (d Donors) totalPages() int {
	if d.total == 0 {
		return 1
	}
	return (d.total + d.pageSize - 1) / d.pageSize
}

func (d Donors) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case donorsMsg:
		d.donors = msg.donors
		d.total = msg.total
		if d.selectedRow >= len(d.donors) {
			d.selectedRow = 0
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if d.selectedRow > 0 {
				d.selectedRow--
			}
		case "down", "j":
			if d.selectedRow < len(d.donors)-1 {
				d.selectedRow++
			}
		case "pgup", "ctrl+u":
			d.selectedRow = max(d.selectedRow-10, 0)
		case "pgdown", "ctrl+d":
			d.selectedRow = max(min(d.selectedRow+10, len(d.donors)-1), 0)
		case "home", "g":
			d.selectedRow = 0
		case "end", "G":
			d.selectedRow = max(len(d.donors)-1, 0)
		case "[":
			if d.page > 0 {
				d.page--
				d.selectedRow = 0
				return d, d.Refresh()
			}
		case "]":
			if d.page < d.totalPages()-1 {
				d.page++
				d.selectedRow = 0
				return d, d.Refresh()
			}
		}
	}
	return d, nil
}

func (d Donors) View() string {
	title := styles.Title.Render("Donors") +
		styles.Muted.Render(fmt.Sprintf("page %d/%d · %d total · [ ] to page", d.page+1, d.totalPages(), d.total))

	if len(d.donors) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, "", styles.Muted.Render("No donors stored"))
	}

	visible := max(d.height-6, 5)
	start := 0
	if d.selectedRow >= visible {
		start = d.selectedRow - visible + 1
	}
	end := min(start+visible, len(d.donors))

	nameWidth := max(d.width-24, 20)
	header := styles.TableHeader.Render(fmt.Sprintf("%6s  %-*s %8s", "#", nameWidth, "Name", "Amount"))

	var rows []string
	for i := start; i < end; i++ {
		donor := d.donors[i]
		row := fmt.Sprintf("%6d  %-*s %8d", d.page*d.pageSize+i+1, nameWidth, truncate(donor.Name, nameWidth), donor.Amount)
		if i == d.selectedRow {
			row = styles.TableSelected.Render(row)
		}
		rows = append(rows, row)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, "", header, strings.Join(rows, "\n"))
}
