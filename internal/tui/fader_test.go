package tui

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"smoothfade/internal/automation"
	"smoothfade/internal/fade"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestFader(t *testing.T, curve fade.Curve) (*fade.Engine, *automation.ManualClock) {
	t.Helper()
	clock := &automation.ManualClock{}
	engine, err := fade.New(clock, automation.NewTimeline(1), fade.Config{
		Curve:      curve,
		FadeLength: 2,
		StartValue: 1,
	})
	if err != nil {
		t.Fatalf("fade.New() error = %v", err)
	}
	return engine, clock
}

func runeKey(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

func update(t *testing.T, m FaderModel, msg tea.Msg) (FaderModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	fm, ok := next.(FaderModel)
	if !ok {
		t.Fatalf("Update returned %T, want FaderModel", next)
	}
	return fm, cmd
}

func TestFaderModelKeys(t *testing.T) {
	engine, clock := newTestFader(t, fade.Linear)
	m := NewFaderModel(engine, clock, nil)

	m, _ = update(t, m, runeKey("o"))
	w := engine.Window()
	if w.Direction != fade.Out {
		t.Fatalf("Direction = %s, want %s", w.Direction, fade.Out)
	}
	if w.TargetValue != DefaultOutTarget || w.EndTime != 2 {
		t.Errorf("window = %+v, want target %g ending at 2", w, DefaultOutTarget)
	}

	clock.Set(1)
	m, cmd := update(t, m, tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	want := 1 + (DefaultOutTarget-1)*0.5
	if math.Abs(m.value-want) > 1e-9 {
		t.Errorf("value after tick = %g, want %g", m.value, want)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if got := engine.Direction(); got != fade.In {
		t.Errorf("Direction after up = %s, want %s", got, fade.In)
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v, want nil", m.Err())
	}
	if !strings.Contains(m.View(), "fadein") {
		t.Errorf("View() does not show the direction:\n%s", m.View())
	}
}

func TestFaderModelRepeatedDirection(t *testing.T) {
	engine, clock := newTestFader(t, fade.Linear)
	m := NewFaderModel(engine, clock, nil)

	m, _ = update(t, m, runeKey("o"))
	first := engine.Window()

	clock.Set(0.5)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if got := engine.Window(); got != first {
		t.Errorf("repeated fade out changed the window: %+v -> %+v", first, got)
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v, want nil", m.Err())
	}
}

func TestFaderModelTargets(t *testing.T) {
	engine, clock := newTestFader(t, fade.Linear)
	m := NewFaderModel(engine, clock, nil, WithTargets(0.8, 0))

	m, _ = update(t, m, runeKey("o"))
	if got := engine.Window().TargetValue; got != 0 {
		t.Errorf("out target = %g, want 0", got)
	}
	clock.Set(3)
	_, _ = update(t, m, runeKey("i"))
	if got := engine.Window().TargetValue; got != 0.8 {
		t.Errorf("in target = %g, want 0.8", got)
	}
}

func TestFaderModelRejectedRequest(t *testing.T) {
	engine, clock := newTestFader(t, fade.Exponential)
	m := NewFaderModel(engine, clock, nil, WithTargets(1, 0))

	m, _ = update(t, m, runeKey("o"))
	if !errors.Is(m.Err(), fade.ErrNonPositiveValue) {
		t.Fatalf("Err() = %v, want %v", m.Err(), fade.ErrNonPositiveValue)
	}
	if engine.Direction() != fade.None {
		t.Errorf("rejected request committed direction %s", engine.Direction())
	}
	if !strings.Contains(m.View(), "Error:") {
		t.Errorf("View() does not show the error:\n%s", m.View())
	}
}

func TestFaderModelQuit(t *testing.T) {
	engine, clock := newTestFader(t, fade.Linear)

	tests := []struct {
		name     string
		msg      tea.Msg
		wantView string
	}{
		{"q", runeKey("q"), ""},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}, ""},
		{"source done", sourceDoneMsg{}, "Source finished.\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := update(t, NewFaderModel(engine, clock, nil), tt.msg)
			if cmd == nil {
				t.Fatal("expected a quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Errorf("command did not quit")
			}
			if got := m.View(); got != tt.wantView {
				t.Errorf("View() = %q, want %q", got, tt.wantView)
			}
		})
	}
}

func TestFaderModelWaitsForDone(t *testing.T) {
	done := make(chan struct{})
	close(done)

	if _, ok := waitForDone(done)().(sourceDoneMsg); !ok {
		t.Error("waitForDone did not report a finished source")
	}
}

func TestFaderModelResize(t *testing.T) {
	engine, clock := newTestFader(t, fade.Linear)
	m := NewFaderModel(engine, clock, nil)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if m.barWidth != 80 {
		t.Errorf("barWidth = %d, want 80", m.barWidth)
	}
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 5, Height: 30})
	if m.barWidth != minBarWidth {
		t.Errorf("barWidth = %d, want %d", m.barWidth, minBarWidth)
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value float64
		full  int
	}{
		{0, 0},
		{0.5, 20},
		{1, 40},
		{-1, 0},
		{2, 40},
	}

	for _, tt := range tests {
		bar := renderBar(tt.value, 40)
		if got := strings.Count(bar, "█"); got != tt.full {
			t.Errorf("renderBar(%g) has %d full cells, want %d", tt.value, got, tt.full)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 40 {
			t.Errorf("renderBar(%g) has %d cells, want 40", tt.value, got)
		}
	}
}

func TestFormatGain(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{1, "1.000 (0.0 dB)"},
		{0.1, "0.100 (-20.0 dB)"},
		{0, "0.000 (-inf dB)"},
	}

	for _, tt := range tests {
		if got := formatGain(tt.value); got != tt.want {
			t.Errorf("formatGain(%g) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
