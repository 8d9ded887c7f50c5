package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"smoothfade/internal/fade"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	barFullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3C3C3C"))
)

const (
	DefaultRefreshInterval = 50 * time.Millisecond
	DefaultInTarget        = 1.0
	DefaultOutTarget       = 0.01 // -40 dB
	defaultBarWidth        = 40
	minBarWidth            = 10
)

// Fader is the part of the fade engine the terminal fader drives.
type Fader interface {
	FadeIn(opts ...fade.Option) error
	FadeOut(opts ...fade.Option) error
	Window() fade.Window
	ValueAt(t float64) float64
}

type faderKeyMap struct {
	FadeIn  key.Binding
	FadeOut key.Binding
	Quit    key.Binding
}

func (k faderKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.FadeIn, k.FadeOut, k.Quit}
}

func (k faderKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var faderKeys = faderKeyMap{
	FadeIn: key.NewBinding(
		key.WithKeys("i", "up", "k"),
		key.WithHelp("i/↑", "fade in"),
	),
	FadeOut: key.NewBinding(
		key.WithKeys("o", "down", "j"),
		key.WithHelp("o/↓", "fade out"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type tickMsg time.Time

// sourceDoneMsg is sent once playback has run out of source material.
type sourceDoneMsg struct{}

// FaderModel is the Bubble Tea model of the interactive fader.
type FaderModel struct {
	fader    Fader
	clock    fade.Clock
	done     <-chan struct{}
	interval time.Duration

	inTarget  float64
	outTarget float64

	keys     faderKeyMap
	help     help.Model
	barWidth int

	// Refreshed on every tick.
	now    float64
	value  float64
	window fade.Window

	err      error
	finished bool
	quitting bool
}

// FaderOption customises a FaderModel.
type FaderOption func(*FaderModel)

// WithTargets sets the gains the fade in and fade out keys head for.
func WithTargets(in, out float64) FaderOption {
	return func(m *FaderModel) {
		m.inTarget = in
		m.outTarget = out
	}
}

// WithRefreshInterval sets how often the display samples the fader.
func WithRefreshInterval(d time.Duration) FaderOption {
	return func(m *FaderModel) {
		if d > 0 {
			m.interval = d
		}
	}
}

// NewFaderModel creates a fader bound to f. done may be nil; when it closes
// the program exits.
func NewFaderModel(f Fader, clock fade.Clock, done <-chan struct{}, opts ...FaderOption) FaderModel {
	m := FaderModel{
		fader:     f,
		clock:     clock,
		done:      done,
		interval:  DefaultRefreshInterval,
		inTarget:  DefaultInTarget,
		outTarget: DefaultOutTarget,
		keys:      faderKeys,
		help:      help.New(),
		barWidth:  defaultBarWidth,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

func (m FaderModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick()}
	if m.done != nil {
		cmds = append(cmds, waitForDone(m.done))
	}
	return tea.Batch(cmds...)
}

func (m FaderModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return sourceDoneMsg{}
	}
}

func (m *FaderModel) refresh() {
	m.now = m.clock.Now()
	m.window = m.fader.Window()
	m.value = m.fader.ValueAt(m.now)
}

func (m FaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.barWidth = max(msg.Width-20, minBarWidth)
		m.help.Width = msg.Width

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case sourceDoneMsg:
		m.finished = true
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.FadeIn):
			m.err = m.fader.FadeIn(fade.Target(m.inTarget))
			m.refresh()

		case key.Matches(msg, m.keys.FadeOut):
			m.err = m.fader.FadeOut(fade.Target(m.outTarget))
			m.refresh()
		}
	}

	return m, nil
}

func (m FaderModel) View() string {
	if m.quitting {
		if m.finished {
			return "Source finished.\n"
		}
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Fader"))
	sb.WriteString("\n\n")
	sb.WriteString(renderBar(m.value, m.barWidth))
	fmt.Fprintf(&sb, " %s\n\n", highlightStyle.Render(formatGain(m.value)))

	w := m.window
	state := "idle"
	if w.Active(m.now) {
		state = fmt.Sprintf("%.2fs left", w.EndTime-m.now)
	}
	fmt.Fprintf(&sb, "%s\n", infoStyle.Render(fmt.Sprintf("Direction: %s (%s)", w.Direction, state)))
	fmt.Fprintf(&sb, "%s\n", infoStyle.Render(fmt.Sprintf("Window: %.3f → %.3f, %.2fs → %.2fs",
		w.StartValue, w.TargetValue, w.StartTime, w.EndTime)))

	if m.err != nil {
		fmt.Fprintf(&sb, "\n%s\n", errorStyle.Render("Error: "+m.err.Error()))
	}

	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// Err returns the error of the last rejected fade request, if any.
func (m FaderModel) Err() error {
	return m.err
}

// renderBar draws value as a horizontal bar, clamped to [0, 1].
func renderBar(value float64, width int) string {
	filled := int(math.Round(math.Max(0, math.Min(1, value)) * float64(width)))
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func formatGain(v float64) string {
	if v <= 0 {
		return fmt.Sprintf("%.3f (-inf dB)", v)
	}
	return fmt.Sprintf("%.3f (%.1f dB)", v, 20*math.Log10(v))
}

// RunFader launches the interactive fader and blocks until it quits.
func RunFader(f Fader, clock fade.Clock, done <-chan struct{}, opts ...FaderOption) error {
	p := tea.NewProgram(
		NewFaderModel(f, clock, done, opts...),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
