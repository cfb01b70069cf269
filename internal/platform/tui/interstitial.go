package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/arcade-interstitial/internal/interstitial"
)

const maxProgressWidth = 40

var (
	upgradeTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229"))
	upgradeBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("57")).
			Padding(1, 3)
	priceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

// interstitialChangedMsg carries a fresh state snapshot.
type interstitialChangedMsg struct {
	state interstitial.State
}

// interstitialDoneMsg is sent once the controller has finished.
type interstitialDoneMsg struct {
	outcome interstitial.Outcome
	ok      bool // false when abandoned without an outcome
}

// InterstitialModel renders an interstitial.Controller and forwards key
// presses to it. It never changes the interstitial state itself.
type InterstitialModel struct {
	ctx        context.Context
	ctrl       *interstitial.Controller
	state      interstitial.State
	spinner    spinner.Model
	progress   progress.Model
	help       help.Model
	keys       InterstitialKeyMap
	width      int
	height     int
	standalone bool // quit the program when the interstitial ends
	finished   bool
	outcome    interstitial.Outcome
	quitting   bool
}

// NewInterstitialModel creates a screen for ctrl. The controller is started by
// Init and abandoned when ctx ends.
func NewInterstitialModel(ctx context.Context, ctrl *interstitial.Controller, width, height int) InterstitialModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := InterstitialModel{
		ctx:      ctx,
		ctrl:     ctrl,
		state:    ctrl.State(),
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:     help.New(),
		keys:     DefaultInterstitialKeyMap(),
	}
	m.resize(width, height)
	m.syncKeys()
	return m
}

// Init starts the controller and the spinner.
func (m InterstitialModel) Init() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	start := func() tea.Msg {
		ctrl.Start(ctx)
		return waitForInterstitial(ctrl)()
	}
	return tea.Batch(m.spinner.Tick, start)
}

// waitForInterstitial blocks until the controller state changes or it finishes.
func waitForInterstitial(ctrl *interstitial.Controller) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ctrl.Changes(); ok {
			return interstitialChangedMsg{state: ctrl.State()}
		}
		o, ok := <-ctrl.Outcome()
		return interstitialDoneMsg{outcome: o, ok: ok}
	}
}

// Update handles messages for the interstitial screen.
func (m InterstitialModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case interstitialChangedMsg:
		m.state = msg.state
		m.syncKeys()
		return m, waitForInterstitial(m.ctrl)

	case interstitialDoneMsg:
		m.finished = true
		m.outcome = msg.outcome
		m.state = m.ctrl.State()
		m.syncKeys()
		if m.standalone {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			m.ctrl.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Upgrade):
			m.ctrl.Send(interstitial.UpgradeButtonTapped{})
		case key.Matches(msg, m.keys.MaybeLater):
			m.ctrl.Send(interstitial.MaybeLaterButtonTapped{})
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *InterstitialModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width
	m.progress.Width = min(maxProgressWidth, max(10, width-16))
}

// syncKeys enables only the bindings that would do something.
func (m *InterstitialModel) syncKeys() {
	m.keys.Upgrade.SetEnabled(m.state.CanPurchase())
	m.keys.MaybeLater.SetEnabled(m.state.CanDismiss())
}

// View renders the interstitial.
func (m InterstitialModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(upgradeTitleStyle.Render("UPGRADE TO THE FULL GAME"))
	b.WriteString("\n\n")
	b.WriteString(m.productView())
	b.WriteString("\n\n")
	b.WriteString(m.countdownView())
	if m.state.ErrorMessage != "" {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(m.state.ErrorMessage))
	}

	box := upgradeBoxStyle.Render(b.String())
	return lipgloss.JoinVertical(lipgloss.Center, box, "", mutedStyle.Render(m.help.View(m.keys)))
}

func (m InterstitialModel) productView() string {
	s := m.state
	switch {
	case s.Phase == interstitial.PhasePurchased:
		return priceStyle.Render("Thanks for upgrading! Enjoy the full game.")
	case s.Phase == interstitial.PhaseLoading && s.FullGameProduct == nil:
		return m.spinner.View() + " Loading store..."
	case s.FullGameProduct == nil:
		return mutedStyle.Render("The full game is not available right now.")
	}

	p := s.FullGameProduct
	line := fmt.Sprintf("%s  %s", p.LocalizedTitle, priceStyle.Render(p.FormattedPrice()))
	if p.LocalizedDescription != "" {
		line += "\n" + mutedStyle.Render(p.LocalizedDescription)
	}
	if s.IsPurchasing {
		line += "\n\n" + m.spinner.View() + " Purchasing..."
	}
	return line
}

func (m InterstitialModel) countdownView() string {
	s := m.state
	if s.Phase.Terminal() {
		return ""
	}
	if s.CanDismiss() {
		return m.progress.ViewAs(1) + "\n" + mutedStyle.Render("Not now? Press m to keep playing.")
	}
	percent := 0.0
	if s.CountdownLimit > 0 {
		percent = float64(s.SecondsPassedCount) / float64(s.CountdownLimit)
	}
	return m.progress.ViewAs(percent) + "\n" +
		mutedStyle.Render(fmt.Sprintf("Maybe later in %ds", s.SecondsRemaining()))
}

// Finished reports whether the interstitial has ended.
func (m InterstitialModel) Finished() bool {
	return m.finished
}

// Outcome returns the delivered outcome. ok is false if there was none.
func (m InterstitialModel) Outcome() (interstitial.Outcome, bool) {
	return m.outcome, m.finished && m.outcome != 0
}

// IsQuitting returns true if user requested to quit entirely.
func (m InterstitialModel) IsQuitting() bool {
	return m.quitting
}

// RunInterstitial shows ctrl full screen until it delivers an outcome.
// ok is false when the user quit before that.
func RunInterstitial(ctx context.Context, ctrl *interstitial.Controller, width, height int) (outcome interstitial.Outcome, ok bool, err error) {
	defer ctrl.Close()

	model := NewInterstitialModel(ctx, ctrl, width, height)
	model.standalone = true

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return 0, false, err
	}
	m, isModel := finalModel.(InterstitialModel)
	if !isModel {
		return 0, false, nil
	}
	outcome, ok = m.Outcome()
	return outcome, ok, nil
}
