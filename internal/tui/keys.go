package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Label key.Binding
	Undo  key.Binding
	Next  key.Binding
	Reset key.Binding
	Mode  key.Binding
	Crop  key.Binding
	Help  key.Binding
	Quit  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Label: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "label last box"),
		),
		Undo:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "undo")),
		Next:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "save & next")),
		Reset: key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "clear boxes")),
		Mode:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto/manual")),
		Crop:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "crop mode")),
		Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Label, k.Next, k.Undo, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Label, k.Next, k.Undo, k.Reset},
		{k.Mode, k.Crop, k.Help, k.Quit},
	}
}
