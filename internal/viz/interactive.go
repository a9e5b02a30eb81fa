package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Choice is one selectable entry of a Picker.
type Choice struct {
	Name        string
	Description string
}

// Picker is a menu for choosing a preset before a live run.
type Picker struct {
	title    string
	choices  []Choice
	cursor   int
	selected string
	theme    Theme
}

func NewPicker(title string, choices []Choice) Picker {
	return Picker{title: title, choices: choices, theme: Themes[0]}
}

// Selected returns the chosen name, or "" when the user quit.
func (p Picker) Selected() string { return p.selected }

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.choices)-1 {
			p.cursor++
		}
	case "t":
		p.theme = p.theme.Next()
	case "enter", " ":
		if len(p.choices) > 0 {
			p.selected = p.choices[p.cursor].Name
			return p, tea.Quit
		}
	}
	return p, nil
}

func (p Picker) View() string {
	th := p.theme
	var s strings.Builder
	s.WriteString(th.header().Render(GradientText(p.title, th.Primary, th.Accent)) + "\n\n")

	desc := lipgloss.NewStyle().Foreground(th.Muted)
	for i, c := range p.choices {
		line := fmt.Sprintf("%-16s", c.Name)
		if i == p.cursor {
			s.WriteString(th.status(th.Accent).Render("> "+line) + " " + desc.Render(c.Description) + "\n")
		} else {
			s.WriteString("  " + lipgloss.NewStyle().Foreground(th.Text).Render(line) + " " + desc.Render(c.Description) + "\n")
		}
	}
	s.WriteString("\n" + th.hint().Render("↑↓:Move ENTER:Run T:Theme Q:Quit"))
	return th.panel().Render(s.String())
}
