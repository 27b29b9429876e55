package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/media"
)

var testDevices = []media.Device{
	{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "USB Mic", MaxInputChannels: 2, DefaultSampleRate: 48000},
	{ID: 2, Name: "Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 44100},
}

func send(t *testing.T, m tea.Model, msgs ...tea.Msg) (DeviceListModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	dm, ok := m.(DeviceListModel)
	require.True(t, ok)
	return dm, cmd
}

func keyMsg(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runeMsg(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func newModel(t *testing.T) DeviceListModel {
	t.Helper()
	m := NewDeviceListModel(func() ([]media.Device, error) { return testDevices, nil })
	msg := m.Init()()
	dm, _ := send(t, m, tea.WindowSizeMsg{Width: 80, Height: 30}, msg)
	return dm
}

func TestPickerSkipsOutputOnlyDevices(t *testing.T) {
	m := newModel(t)
	assert.Equal(t, 1, m.selectedIndex, "first input device preselected")
	assert.Contains(t, m.View(), "USB Mic")

	m, _ = send(t, m, keyMsg(tea.KeyUp))
	assert.Equal(t, 1, m.selectedIndex)
	m, _ = send(t, m, keyMsg(tea.KeyDown), keyMsg(tea.KeyDown))
	assert.Equal(t, 2, m.selectedIndex)
}

func TestPickerSelection(t *testing.T) {
	m := newModel(t)

	m, _ = send(t, m, keyMsg(tea.KeyEnter))
	require.Equal(t, ConfigScreen, m.activeScreen)
	assert.Equal(t, 48000.0, sampleRates[m.sampleRateIndex])
	assert.Contains(t, m.View(), "Configure Device: USB Mic")

	m, _ = send(t, m, keyMsg(tea.KeyDown), keyMsg(tea.KeyRight), keyMsg(tea.KeyRight))
	assert.Equal(t, 2, m.channels, "capped at the device's input channels")

	m, cmd := send(t, m, keyMsg(tea.KeyEnter))
	require.NotNil(t, cmd)
	sel := m.Selection()
	require.NotNil(t, sel)
	assert.Equal(t, Selection{DeviceID: 1, DeviceName: "USB Mic", SampleRate: 88200, Channels: 2}, *sel)
	assert.Equal(t, "--device 1 --sample-rate 88200 --channels 2", sel.Flags())
}

func TestPickerBackAndQuit(t *testing.T) {
	m := newModel(t)
	m, _ = send(t, m, keyMsg(tea.KeyEnter), keyMsg(tea.KeyEsc))
	assert.Equal(t, ListScreen, m.activeScreen)

	m, cmd := send(t, m, runeMsg('q'))
	require.NotNil(t, cmd)
	assert.Nil(t, m.Selection())
}

func TestPickerFetchError(t *testing.T) {
	m := NewDeviceListModel(func() ([]media.Device, error) { return nil, errors.New("no host api") })
	dm, _ := send(t, m, tea.WindowSizeMsg{Width: 80, Height: 30}, m.Init()())
	assert.Contains(t, dm.View(), "no host api")
}

func TestPickerWithoutDevices(t *testing.T) {
	m := NewDeviceListModel(func() ([]media.Device, error) { return nil, nil })
	dm, _ := send(t, m, tea.WindowSizeMsg{Width: 80, Height: 30}, m.Init()())
	assert.Contains(t, dm.View(), "No audio devices found.")

	dm, _ = send(t, dm, keyMsg(tea.KeyEnter))
	assert.Equal(t, ListScreen, dm.activeScreen)
}
