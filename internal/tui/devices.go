package tui

import (
	"errors"
	"fmt"
	"strings"

	"smoothfade/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrNoDeviceSelected is returned when the picker quits without a choice.
var ErrNoDeviceSelected = errors.New("tui: no output device selected")

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// DevicePickerModel lists output devices and lets the user choose one for
// playback.
type DevicePickerModel struct {
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	chosen        bool
	viewport      viewport.Model
	ready         bool
	err           error
}

// NewDevicePickerModel creates a picker over the devices returned by fetch.
func NewDevicePickerModel(fetch func() ([]audio.Device, error)) DevicePickerModel {
	return DevicePickerModel{fetch: fetch}
}

func (m DevicePickerModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case devicesMsg:
		m.devices = msg.devices
		for i, d := range m.devices {
			if d.IsDefault {
				m.selectedIndex = i
				break
			}
		}
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"))):
			return m, tea.Quit

		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.viewport.SetContent(m.renderDevices())
			}
			return m, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
				m.viewport.SetContent(m.renderDevices())
			}
			return m, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			if len(m.devices) > 0 {
				m.chosen = true
				return m, tea.Quit
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m DevicePickerModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render("Output Devices")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Play • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// Selected returns the chosen device, if the user confirmed one.
func (m DevicePickerModel) Selected() (audio.Device, bool) {
	if !m.chosen || m.selectedIndex >= len(m.devices) {
		return audio.Device{}, false
	}
	return m.devices[m.selectedIndex], true
}

func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No output devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := ""
		if device.IsDefault {
			marker = " (default)"
		}
		info := fmt.Sprintf("[%d] %s%s\n", device.ID, device.Name, marker)
		info += fmt.Sprintf("    Output channels: %d, default sample rate: %.0f Hz\n",
			device.MaxOutputChannels, device.DefaultSampleRate)

		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickOutputDevice runs the picker and returns the chosen device ID.
func PickOutputDevice() (int, error) {
	p := tea.NewProgram(
		NewDevicePickerModel(audio.OutputDevices),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return 0, err
	}
	m := final.(DevicePickerModel)
	if m.err != nil {
		return 0, m.err
	}
	device, ok := m.Selected()
	if !ok {
		return 0, ErrNoDeviceSelected
	}
	return device.ID, nil
}
