package viz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/chembox/internal/chem"
	"github.com/san-kum/chembox/internal/sim"
)

const (
	chartWidth  = 50
	chartHeight = 8
	barWidth    = 30
)

// RunFunc performs the run the view follows.
type RunFunc func(ctx context.Context) (*sim.Series, error)

// BatchMsg carries one committed batch.
type BatchMsg sim.Row

// DoneMsg ends the run.
type DoneMsg struct {
	Series *sim.Series
	Err    error
}

type tickMsg time.Time

// Model follows a batched run. It is fed by the observer returned from
// Observer and by the result of its RunFunc.
type Model struct {
	title   string
	species []string
	plot    []int
	total   int
	feed    chan sim.Row
	run     RunFunc
	ctx     context.Context
	cancel  context.CancelFunc

	rows   []sim.Row
	focus  int
	frame  int
	theme  Theme
	done   bool
	err    error
	series *sim.Series
}

// NewModel prepares a view for a run of total batches over species. Only
// the species named in plot are shown; unknown names are ignored.
func NewModel(ctx context.Context, title string, species, plot []string, total int, run RunFunc) Model {
	index := make(map[string]int, len(species))
	for i, s := range species {
		index[s] = i
	}
	var cols []int
	for _, name := range plot {
		if i, ok := index[name]; ok {
			cols = append(cols, i)
		}
	}
	if len(cols) == 0 && len(species) > 0 {
		cols = []int{0}
	}

	ctx, cancel := context.WithCancel(ctx)
	return Model{
		title:   title,
		species: species,
		plot:    cols,
		total:   total,
		feed:    make(chan sim.Row, total+1),
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
		rows:    make([]sim.Row, 0, total),
		theme:   Themes[0],
	}
}

// Observer forwards committed batches to the view. The feed is sized for
// the whole run so the controller never blocks on the terminal.
func (m Model) Observer() sim.Observer {
	return sim.ObserverFunc(func(row sim.Row) {
		select {
		case m.feed <- row:
		default:
		}
	})
}

// Result returns the finished series and run error.
func (m Model) Result() (*sim.Series, error) { return m.series, m.err }

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.waitForRow(), m.start())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) waitForRow() tea.Cmd {
	return func() tea.Msg {
		select {
		case row := <-m.feed:
			return BatchMsg(row)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) start() tea.Cmd {
	if m.run == nil {
		return nil
	}
	return func() tea.Msg {
		series, err := m.run(m.ctx)
		return DoneMsg{Series: series, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancel()
			return m, tea.Quit
		case "tab":
			if len(m.plot) > 0 {
				m.focus = (m.focus + 1) % len(m.plot)
			}
		case "t":
			m.theme = m.theme.Next()
		}
	case BatchMsg:
		if !m.done {
			m.rows = append(m.rows, sim.Row(msg))
		}
		return m, m.waitForRow()
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.series = msg.Series
		if msg.Series != nil {
			m.rows = msg.Series.Rows()
		}
	case tickMsg:
		m.frame++
		if !m.done {
			return m, tick()
		}
	}
	return m, nil
}

func (m Model) View() string {
	th := m.theme
	var s strings.Builder

	s.WriteString(th.header().Render(GradientText(strings.ToUpper(m.title), th.Primary, th.Accent)) + "\n")
	s.WriteString(m.statusLine() + "\n\n")

	frac := 0.0
	if m.total > 0 {
		frac = float64(len(m.rows)) / float64(m.total)
	}
	fmt.Fprintf(&s, "%s %d/%d\n\n", ProgressBar(frac, barWidth, th), len(m.rows), m.total)

	if len(m.rows) > 0 && len(m.plot) > 0 {
		col := m.plot[m.focus]
		hist := make([]float64, len(m.rows))
		for i, r := range m.rows {
			hist[i] = r.State[col]
		}
		if len(hist) > 1 {
			chart := asciigraph.Plot(Log10(hist),
				asciigraph.Height(chartHeight),
				asciigraph.Width(chartWidth),
				asciigraph.Precision(2),
				asciigraph.Caption("log10 "+m.species[col]))
			s.WriteString(lipgloss.NewStyle().Foreground(th.Primary).Render(chart) + "\n\n")
		}

		last := m.rows[len(m.rows)-1]
		s.WriteString(th.label().Render("Elapsed") + th.value().Render(fmt.Sprintf("%.0fs", last.Elapsed)) + "\n")
		for _, j := range m.plot {
			hist := make([]float64, len(m.rows))
			for i, r := range m.rows {
				hist[i] = r.State[j]
			}
			ppb := last.State[j] / chem.PPBToMolecules
			line := fmt.Sprintf("%10.4g ppb  %s", ppb, Sparkline(Log10(hist), 20))
			s.WriteString(th.label().Render(m.species[j]) + th.value().Render(line) + "\n")
		}
	}

	if m.done && m.series != nil && len(m.series.Metrics) > 0 {
		s.WriteString("\n" + Separator(40, th) + "\n")
		for _, k := range sortedMetricNames(m.series.Metrics) {
			s.WriteString(th.label().Render(k) + th.value().Render(fmt.Sprintf("%.4g", m.series.Metrics[k])) + "\n")
		}
	}

	s.WriteString("\n" + th.hint().Render("TAB:Species T:Theme Q:Quit"))
	return th.panel().Render(s.String())
}

func (m Model) statusLine() string {
	th := m.theme
	switch {
	case m.done && m.err != nil:
		return th.status(th.Error).Render("FAILED: " + m.err.Error())
	case m.done:
		return th.status(th.Success).Render("DONE")
	}
	return th.status(th.Warning).Render(AnimatedSpinner(m.frame) + " RUNNING")
}

func sortedMetricNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
