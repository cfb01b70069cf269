package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/arcade-interstitial/internal/storage"
)

// Purchase history layout constants
const (
	maxTransactions  = 100 // Max transactions to load
	identifierColumn = 12  // Visible prefix of a transaction id
)

// PurchasesModel is the Bubble Tea model for the purchase history screen.
type PurchasesModel struct {
	store         *storage.Store
	transactions  []storage.TransactionEntry
	presentations []storage.PresentationStats
	loadErr       error
	table         table.Model
	help          help.Model
	keys          PurchasesKeyMap
	width         int
	height        int
	quitting      bool
	goingBack     bool
}

// NewPurchasesModel creates a new purchase history model.
func NewPurchasesModel(store *storage.Store, width, height int) PurchasesModel {
	m := PurchasesModel{
		store:  store,
		keys:   DefaultPurchasesKeyMap(),
		help:   help.New(),
		width:  width,
		height: height,
	}
	m.table = m.createTable()
	m.load()
	return m
}

// createTable creates a new table sized to the window.
func (m *PurchasesModel) createTable() table.Model {
	columns := []table.Column{
		{Title: "Date", Width: 16},
		{Title: "Product", Width: 22},
		{Title: "State", Width: 10},
		{Title: "Transaction", Width: identifierColumn},
	}
	if extra := m.width - 4 - 70; extra > 0 {
		columns[1].Width += min(extra, 18)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(3, m.height-12)), // Leave room for header, stats and help
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

// load reads transactions and presentation stats from the store.
func (m *PurchasesModel) load() {
	m.transactions, m.presentations, m.loadErr = nil, nil, nil
	if m.store != nil {
		if txs, err := m.store.Transactions(maxTransactions); err != nil {
			m.loadErr = err
		} else {
			m.transactions = txs
		}
		if stats, err := m.store.PresentationStats(); err == nil {
			m.presentations = stats
		}
	}
	m.updateTableRows()
}

func (m *PurchasesModel) updateTableRows() {
	rows := make([]table.Row, len(m.transactions))
	for i, tx := range m.transactions {
		id := tx.TransactionIdentifier
		if len(id) > identifierColumn {
			id = id[:identifierColumn]
		}
		rows[i] = table.Row{
			tx.TransactionDate.Format("Jan 02 15:04:05"),
			tx.ProductIdentifier,
			tx.State.String(),
			id,
		}
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

// Init initializes the purchases model.
func (m PurchasesModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the purchase history.
func (m PurchasesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Back):
			m.goingBack = true
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table = m.createTable()
		m.updateTableRows()
		m.help.Width = msg.Width
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the purchase history.
func (m PurchasesModel) View() string {
	if m.quitting || m.goingBack {
		return ""
	}

	var b strings.Builder
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229"))
	b.WriteString(titleStyle.Render(centerText("PURCHASES", m.width)))
	b.WriteString("\n\n")

	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	b.WriteString(tableStyle.Render(m.tableContent()))
	b.WriteString("\n\n")
	b.WriteString(m.statsLine())
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m PurchasesModel) tableContent() string {
	switch {
	case m.store == nil:
		return mutedStyle.Italic(true).Padding(2, 4).Render("No database available.")
	case m.loadErr != nil:
		return errorStyle.Padding(2, 4).Render(m.loadErr.Error())
	case len(m.transactions) == 0:
		return mutedStyle.Italic(true).Padding(2, 4).Render("No purchases yet.")
	}
	return m.table.View()
}

// statsLine summarises how upgrade interstitials ended.
func (m PurchasesModel) statsLine() string {
	if len(m.presentations) == 0 {
		return mutedStyle.Render("The upgrade screen has not been shown yet.")
	}
	parts := make([]string, 0, len(m.presentations))
	for _, p := range m.presentations {
		parts = append(parts, fmt.Sprintf("%s: %d (avg %.1fs)", p.Outcome, p.Count, p.AvgSeconds))
	}
	return mutedStyle.Render("Upgrade screen  " + strings.Join(parts, "  |  "))
}

// IsGoingBack returns true if user wants to go back to the menu.
func (m PurchasesModel) IsGoingBack() bool {
	return m.goingBack
}

// IsQuitting returns true if user wants to quit entirely.
func (m PurchasesModel) IsQuitting() bool {
	return m.quitting
}
