package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/arcade-interstitial/internal/interstitial"
)

// Route is a way to start a game.
type Route struct {
	ID    string
	Title string
}

// GameRoutes are the entries under "Start a game".
var GameRoutes = []Route{
	{ID: "solo", Title: "Solo"},
	{ID: "multiplayer", Title: "Multiplayer"},
}

type homeScreen int

const (
	screenMenu homeScreen = iota
	screenRoutes
	screenUpgrade
	screenPurchases
)

type menuItem int

const (
	itemStartGame menuItem = iota
	itemUpgrade
	itemPurchases
)

var menuTitles = map[menuItem]string{
	itemStartGame: "Start a game",
	itemUpgrade:   "Upgrade to the full game",
	itemPurchases: "Purchase history",
}

var menuItems = []menuItem{itemStartGame, itemUpgrade, itemPurchases}

// HomeModel is the top-level model of an arcade session: a menu to start a
// game, the upgrade interstitial that may interrupt it and the purchase history.
type HomeModel struct {
	ctx      context.Context
	services *Services
	username string
	screen   homeScreen
	cursor   int
	keys     HomeKeyMap
	help     help.Model
	width    int
	height   int
	status   string

	pending   *Route // route waiting for the interstitial to finish
	upgrade   *InterstitialModel
	purchases *PurchasesModel
	started   []Route // routes that went through to a game
	quitting  bool
}

// NewHomeModel creates a new home model. ctx bounds every interstitial
// opened from it.
func NewHomeModel(ctx context.Context, services *Services, username string, width, height int) HomeModel {
	h := help.New()
	h.Width = width
	return HomeModel{
		ctx:      ctx,
		services: services,
		username: username,
		keys:     DefaultHomeKeyMap(),
		help:     h,
		width:    width,
		height:   height,
	}
}

// Init initializes the home model.
func (m HomeModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the session.
func (m HomeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle window resize globally
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = wsm.Width
		m.height = wsm.Height
		m.help.Width = wsm.Width
	}

	switch m.screen {
	case screenUpgrade:
		return m.updateUpgrade(msg)
	case screenPurchases:
		return m.updatePurchases(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(msg)
	}
	return m, nil
}

// handleKey processes keyboard input for menu navigation.
func (m HomeModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.entries()-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Back):
		if m.screen == screenRoutes {
			m.screen = screenMenu
			m.cursor = 0
		}

	case key.Matches(msg, m.keys.Purchases):
		return m.openPurchases()

	case key.Matches(msg, m.keys.Select):
		if m.screen == screenRoutes {
			return m.startRoute(GameRoutes[m.cursor])
		}
		switch menuItems[m.cursor] {
		case itemStartGame:
			m.screen = screenRoutes
			m.cursor = 0
			m.status = ""
		case itemUpgrade:
			return m.openUpgrade(true, nil)
		case itemPurchases:
			return m.openPurchases()
		}
	}

	return m, nil
}

func (m HomeModel) entries() int {
	if m.screen == screenRoutes {
		return len(GameRoutes)
	}
	return len(menuItems)
}

// startRoute starts a game, showing the upgrade interstitial first when the
// player has used up their free games.
func (m HomeModel) startRoute(r Route) (tea.Model, tea.Cmd) {
	if m.services.Gate(r.ID) {
		return m.openUpgrade(false, &r)
	}
	return m.finishRoute(r, ""), nil
}

func (m HomeModel) finishRoute(r Route, prefix string) HomeModel {
	m.started = append(m.started, r)
	m.screen = screenMenu
	m.cursor = 0
	m.status = prefix + fmt.Sprintf("Starting %s game...", strings.ToLower(r.Title))
	return m
}

func (m HomeModel) openUpgrade(isDismissable bool, route *Route) (tea.Model, tea.Cmd) {
	ctrl, err := m.services.NewInterstitial(isDismissable)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	sub := NewInterstitialModel(m.ctx, ctrl, m.width, m.height)
	m.upgrade = &sub
	m.pending = route
	m.screen = screenUpgrade
	return m, sub.Init()
}

func (m HomeModel) updateUpgrade(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.upgrade.Update(msg)
	if sub, ok := next.(InterstitialModel); ok {
		m.upgrade = &sub
	}

	if m.upgrade.IsQuitting() {
		m.quitting = true
		return m, tea.Quit
	}
	if !m.upgrade.Finished() {
		return m, cmd
	}

	outcome, ok := m.upgrade.Outcome()
	route := m.pending
	m.upgrade = nil
	m.pending = nil
	m.screen = screenMenu
	m.cursor = 0

	prefix := ""
	if ok && outcome == interstitial.OutcomeFullGamePurchased {
		prefix = "Thanks for upgrading! "
	}
	switch {
	case route != nil && ok:
		// Both outcomes continue to the game the player asked for.
		m = m.finishRoute(*route, prefix)
	case ok:
		m.status = strings.TrimSpace(prefix)
	default:
		m.status = "Upgrade screen closed."
	}
	return m, nil
}

func (m HomeModel) openPurchases() (tea.Model, tea.Cmd) {
	sub := NewPurchasesModel(m.services.Store, m.width, m.height)
	m.purchases = &sub
	m.screen = screenPurchases
	return m, sub.Init()
}

func (m HomeModel) updatePurchases(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.purchases.Update(msg)
	if sub, ok := next.(PurchasesModel); ok {
		m.purchases = &sub
	}
	if m.purchases.IsQuitting() {
		m.quitting = true
		return m, tea.Quit
	}
	if m.purchases.IsGoingBack() {
		m.purchases = nil
		m.screen = screenMenu
		m.cursor = 0
		return m, nil
	}
	return m, cmd
}

// View renders the current screen.
func (m HomeModel) View() string {
	if m.quitting {
		return ""
	}

	switch m.screen {
	case screenUpgrade:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.upgrade.View())
	case screenPurchases:
		return m.purchases.View()
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(upgradeTitleStyle.Render(centerText("  A R C A D E  ", m.width)))
	b.WriteString("\n\n")

	subtitle := "Main menu"
	if m.username != "" {
		subtitle = fmt.Sprintf("Welcome, %s", m.username)
	}
	if m.screen == screenRoutes {
		subtitle = "Start a game"
	}
	b.WriteString(centerText(subtitle, m.width))
	b.WriteString("\n\n")

	titles := make([]string, 0, m.entries())
	if m.screen == screenRoutes {
		for _, r := range GameRoutes {
			titles = append(titles, r.Title)
		}
	} else {
		for _, item := range menuItems {
			titles = append(titles, menuTitles[item])
		}
	}
	for i, title := range titles {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		b.WriteString(centerText(cursor+title, m.width))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(priceStyle.Render(centerText(m.status, m.width)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(centerText(m.help.View(m.keys), m.width)))
	b.WriteString("\n")

	return b.String()
}

// Started lists the routes that made it to a game, in order.
func (m HomeModel) Started() []Route {
	return m.started
}

// IsQuitting returns true if user requested to quit.
func (m HomeModel) IsQuitting() bool {
	return m.quitting
}

// centerText centers text within given width.
func centerText(text string, width int) string {
	w := lipgloss.Width(text)
	if w >= width {
		return text
	}
	return strings.Repeat(" ", (width-w)/2) + text
}

// RunHome runs the arcade home screen until the player quits.
func RunHome(ctx context.Context, services *Services, width, height int) error {
	model := NewHomeModel(ctx, services, "", width, height)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
