package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studio/internal/media"
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

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))
)

var (
	keyQuit  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp    = key.NewBinding(key.WithKeys("up", "k"))
	keyDown  = key.NewBinding(key.WithKeys("down", "j"))
	keyLeft  = key.NewBinding(key.WithKeys("left", "h"))
	keyRight = key.NewBinding(key.WithKeys("right", "l"))
	keyEnter = key.NewBinding(key.WithKeys("enter"))
	keyBack  = key.NewBinding(key.WithKeys("esc"))
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Selection is the microphone setup chosen in the picker.
type Selection struct {
	DeviceID   int
	DeviceName string
	SampleRate float64
	Channels   int
}

// Flags renders the selection as serve command flags.
func (s Selection) Flags() string {
	return fmt.Sprintf("--device %d --sample-rate %.0f --channels %d", s.DeviceID, s.SampleRate, s.Channels)
}

var sampleRates = []float64{44100, 48000, 88200, 96000}

// DeviceListModel is the microphone picker. Only devices with input
// channels can be selected.
type DeviceListModel struct {
	fetch         func() ([]media.Device, error)
	devices       []media.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	// Configuration options
	sampleRateIndex int
	channels        int
	selection       *Selection
}

type devicesMsg struct {
	devices []media.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a picker listing the devices fetch returns.
// A nil fetch lists the PortAudio devices.
func NewDeviceListModel(fetch func() ([]media.Device, error)) DeviceListModel {
	if fetch == nil {
		fetch = media.ListDevices
	}
	return DeviceListModel{fetch: fetch, activeScreen: ListScreen}
}

// Init fetches the devices.
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Selection returns the confirmed choice, or nil if the picker was quit.
func (m DeviceListModel) Selection() *Selection { return m.selection }

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.selectedIndex = m.nextInput(-1, 1)
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keyUp):
				m.selectedIndex = m.nextInput(m.selectedIndex, -1)
			case key.Matches(msg, keyDown):
				m.selectedIndex = m.nextInput(m.selectedIndex, 1)
			case key.Matches(msg, keyEnter):
				if d, ok := m.current(); ok {
					m.activeScreen = ConfigScreen
					m.sampleRateIndex = 0
					for i, rate := range sampleRates {
						if rate == d.DefaultSampleRate {
							m.sampleRateIndex = i
							break
						}
					}
					m.channels = 1
				}
			}
		case ConfigScreen:
			d, _ := m.current()
			switch {
			case key.Matches(msg, keyBack):
				m.activeScreen = ListScreen
			case key.Matches(msg, keyUp):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, keyDown):
				if m.sampleRateIndex < len(sampleRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, keyLeft):
				if m.channels > 1 {
					m.channels--
				}
			case key.Matches(msg, keyRight):
				if m.channels < min(d.MaxInputChannels, 2) {
					m.channels++
				}
			case key.Matches(msg, keyEnter):
				m.selection = &Selection{
					DeviceID:   d.ID,
					DeviceName: d.Name,
					SampleRate: sampleRates[m.sampleRateIndex],
					Channels:   m.channels,
				}
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// current returns the highlighted device if it can capture.
func (m DeviceListModel) current() (media.Device, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.devices) {
		return media.Device{}, false
	}
	d := m.devices[m.selectedIndex]
	return d, d.MaxInputChannels > 0
}

// nextInput walks from i in direction dir to the next input device, staying
// put if there is none.
func (m DeviceListModel) nextInput(i, dir int) int {
	for j := i + dir; j >= 0 && j < len(m.devices); j += dir {
		if m.devices[j].MaxInputChannels > 0 {
			return j
		}
	}
	if i < 0 {
		return 0
	}
	return i
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string

	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Microphones")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Microphone Setup")
		help = infoStyle.Render("↑/↓: Sample rate • ←/→: Channels • Enter: Use • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.Type())
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz, latency %.1f-%.1f ms\n",
			device.DefaultSampleRate, device.LowLatencyMs, device.HighLatencyMs)

		switch {
		case device.MaxInputChannels == 0:
			deviceInfo = dimStyle.Render(deviceInfo)
		case i == m.selectedIndex:
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDeviceConfig formats the device configuration screen
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device, _ := m.current()

	sb.WriteString(fmt.Sprintf("Configure Device: %s\n\n", device.Name))
	sb.WriteString("Sample Rate:\n")
	for i, rate := range sampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	sb.WriteString(fmt.Sprintf("\nChannels: %d (max %d)\n", m.channels, min(device.MaxInputChannels, 2)))
	return sb.String()
}

// StartDeviceListUI runs the picker and returns the confirmed selection, nil
// if the user quit without choosing.
func StartDeviceListUI() (*Selection, error) {
	p := tea.NewProgram(
		NewDeviceListModel(nil),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	if m, ok := final.(DeviceListModel); ok {
		return m.Selection(), nil
	}
	return nil, nil
}
