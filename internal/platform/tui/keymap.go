package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// HomeKeyMap defines the key bindings of the home menu.
type HomeKeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Select    key.Binding
	Back      key.Binding
	Purchases key.Binding
	Quit      key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k HomeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Back, k.Purchases, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k HomeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Back, k.Purchases, k.Quit},
	}
}

// DefaultHomeKeyMap returns default key bindings.
func DefaultHomeKeyMap() HomeKeyMap {
	return HomeKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k", "w"), // vim-style k for up
			key.WithHelp("up/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j", "s"),
			key.WithHelp("down/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "select"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "b"),
			key.WithHelp("esc/b", "back"),
		),
		Purchases: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "purchases"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// InterstitialKeyMap defines the key bindings of the upgrade screen.
type InterstitialKeyMap struct {
	Upgrade    key.Binding
	MaybeLater key.Binding
	Quit       key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k InterstitialKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Upgrade, k.MaybeLater, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k InterstitialKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// DefaultInterstitialKeyMap returns default key bindings.
func DefaultInterstitialKeyMap() InterstitialKeyMap {
	return InterstitialKeyMap{
		Upgrade: key.NewBinding(
			key.WithKeys("u", "enter"),
			key.WithHelp("u", "upgrade"),
		),
		MaybeLater: key.NewBinding(
			key.WithKeys("m", "esc"),
			key.WithHelp("m/esc", "maybe later"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// PurchasesKeyMap defines the key bindings of the purchase history.
type PurchasesKeyMap struct {
	Up   key.Binding
	Down key.Binding
	Back key.Binding
	Quit key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k PurchasesKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Back, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k PurchasesKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// DefaultPurchasesKeyMap returns default key bindings.
func DefaultPurchasesKeyMap() PurchasesKeyMap {
	return PurchasesKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "b"),
			key.WithHelp("esc/b", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
