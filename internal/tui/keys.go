package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the dashboard key bindings.
type KeyMap struct {
	Quit            key.Binding
	ResetSession    key.Binding
	ResetCumulative key.Binding
	Confirm         key.Binding
	Deny            key.Binding
	Escape          key.Binding
	Tab             key.Binding
	Filter          key.Binding
	Enter           key.Binding
	Up              key.Binding
	Down            key.Binding
	End             key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		ResetSession: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset session"),
		),
		ResetCumulative: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reset all-time"),
		),
		Confirm: key.NewBinding(key.WithKeys("y", "Y")),
		Deny:    key.NewBinding(key.WithKeys("n", "N")),
		Escape:  key.NewBinding(key.WithKeys("esc")),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch view"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter"),
		),
		Enter: key.NewBinding(key.WithKeys("enter")),
		Up:    key.NewBinding(key.WithKeys("up", "k")),
		Down:  key.NewBinding(key.WithKeys("down", "j")),
		End:   key.NewBinding(key.WithKeys("end", "G")),
	}
}
