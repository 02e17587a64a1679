// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/muart/pkg/bridge"
	"github.com/Thermoquad/muart/pkg/muart"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	minTargetTemp  = 16.0
	maxTargetTemp  = 31.0
	targetTempStep = 0.5
	minRemoteTemp  = -20.0
	maxRemoteTemp  = 50.0
)

// Focus states
const (
	focusSourceList = iota
	focusTempInput
	focusRemoteButton
	focusInternalButton
)

// Cycling order for the m and f keys
var (
	modeCycle = []muart.Mode{muart.ModeHeat, muart.ModeDry, muart.ModeCool, muart.ModeFan, muart.ModeAuto}
	fanCycle  = []muart.Fan{muart.FanAuto, muart.FanQuiet, muart.FanLow, muart.FanMedium, muart.FanHigh, muart.FanVeryHigh}
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// sourceItem is one selectable temperature source
type sourceItem struct {
	name      string
	selected  bool
	effective bool
}

// Implement list.Item interface
func (s sourceItem) Title() string { return s.name }
func (s sourceItem) Description() string {
	switch {
	case s.selected && s.effective:
		return "selected"
	case s.selected:
		return "selected (timed out, using internal)"
	case s.effective:
		return "in effect"
	}
	return ""
}
func (s sourceItem) FilterValue() string { return s.name }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for sending intents and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Latest bridge view
	state       bridge.DeviceState
	hasState    bool
	snapshot    bridge.Snapshot
	hasSnapshot bool

	// Control
	sourceList   list.Model
	tempInput    textinput.Model
	focusedField int

	// Monitoring
	events eventLog

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type stateMsg struct {
	state bridge.DeviceState
}

type snapshotMsg struct {
	snapshot bridge.Snapshot
}

type eventMsg struct {
	message string
	isError bool
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	// Initialize text input for the remote temperature
	ti := textinput.New()
	ti.Placeholder = "21.5"
	ti.CharLimit = 5
	ti.Width = 8

	// Initialize source list; filled from the first snapshot
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	sourceList := list.New([]list.Item{}, delegate, 30, 10)
	sourceList.Title = "Temperature Source"
	sourceList.SetShowStatusBar(false)
	sourceList.SetShowHelp(false)
	sourceList.SetFilteringEnabled(false)

	return controlModel{
		connMgr:      connMgr,
		connInfo:     connInfo,
		state:        bridge.NewDeviceState(),
		sourceList:   sourceList,
		tempInput:    ti,
		focusedField: focusSourceList,
		events:       newEventLog(100),
		width:        80,
		height:       24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(controlTickCmd(), m.connMgr.querySnapshot())
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			m.sourceList, _ = m.sourceList.Update(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		return m, tea.Batch(controlTickCmd(), m.connMgr.querySnapshot())

	case stateMsg:
		m.applyState(msg.state)

	case snapshotMsg:
		m.snapshot = msg.snapshot
		m.hasSnapshot = true
		m.applyState(msg.snapshot.State)
		m.updateSourceList()

	case eventMsg:
		m.events.add(msg.message, msg.isError)

	case connectionLostMsg:
		m.connectionLost = true
		if msg.err != nil {
			m.events.add(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)
		} else {
			m.events.add("Connection lost - reconnecting...", true)
		}

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.events.add("Reconnected", false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusTempInput {
		m.tempInput, cmd = m.tempInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusSourceList {
		m.sourceList, cmd = m.sourceList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) applyState(s bridge.DeviceState) {
	if m.hasState && m.state.Connection != s.Connection {
		m.events.add(fmt.Sprintf("Heat pump %s", s.Connection), s.Connection == bridge.Disconnected)
	}
	if m.hasState && m.state.TemperatureSource != s.TemperatureSource {
		m.events.add(fmt.Sprintf("Temperature source now %s", s.TemperatureSource), false)
	}
	m.state = s
	m.hasState = true
	m.updateSourceList()
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()
	}

	// Pass through to focused input; single-letter shortcuts are text there
	if m.focusedField == focusTempInput {
		var cmd tea.Cmd
		m.tempInput, cmd = m.tempInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "p":
		return m.changeSettings(m.togglePower())

	case "m":
		return m.changeSettings(m.nextMode())

	case "f":
		return m.changeSettings(m.nextFan())

	case "+", "=":
		return m.changeSettings(m.adjustTarget(targetTempStep))

	case "-":
		return m.changeSettings(m.adjustTarget(-targetTempStep))

	case "up", "k", "down", "j":
		if m.focusedField == focusSourceList {
			m.sourceList, _ = m.sourceList.Update(msg)
		}
	}

	return m, nil
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	maxFocus := focusInternalButton

	m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)

	if m.focusedField == focusTempInput {
		m.tempInput.Focus()
	} else {
		m.tempInput.Blur()
	}

	return m
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.events.add("Cannot send command: connection lost", true)
		return m, nil
	}

	switch m.focusedField {
	case focusSourceList:
		item, ok := m.sourceList.SelectedItem().(sourceItem)
		if !ok {
			return m, nil
		}
		return m, m.connMgr.sendIntent(bridge.SelectSource{Source: item.name},
			fmt.Sprintf("Selecting temperature source %s", item.name))

	case focusTempInput, focusRemoteButton:
		return m.sendRemoteTemperature()

	case focusInternalButton:
		return m, m.connMgr.sendIntent(bridge.UseInternalTemperature{}, "Switching to internal sensor")
	}

	return m, nil
}

func (m *controlModel) sendRemoteTemperature() (tea.Model, tea.Cmd) {
	celsius, err := parseRemoteTemperature(m.tempInput.Value())
	if err != nil {
		m.events.add(err.Error(), true)
		return m, nil
	}
	return m, m.connMgr.sendIntent(bridge.SetRemoteTemperature{Celsius: celsius},
		fmt.Sprintf("Sending remote temperature %.1f°C", celsius))
}

// parseRemoteTemperature validates the remote temperature input
func parseRemoteTemperature(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("enter a temperature first")
	}
	celsius, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(celsius) {
		return 0, fmt.Errorf("invalid temperature %q", value)
	}
	if celsius < minRemoteTemp || celsius > maxRemoteTemp {
		return 0, fmt.Errorf("temperature %.1f°C out of range (%.0f to %.0f°C)", celsius, minRemoteTemp, maxRemoteTemp)
	}
	return celsius, nil
}

//////////////////////////////////////////////////////////////
// Settings Changes
//////////////////////////////////////////////////////////////

func (m *controlModel) changeSettings(change muart.SettingsChange, description string) (tea.Model, tea.Cmd) {
	if m.connectionLost || m.state.Connection != bridge.Connected {
		m.events.add("Cannot change settings: heat pump not connected", true)
		return m, nil
	}
	if change.Empty() {
		return m, nil
	}
	return m, m.connMgr.sendIntent(bridge.ChangeSettings{Change: change}, description)
}

func (m *controlModel) togglePower() (muart.SettingsChange, string) {
	on := !m.state.Power
	desc := "Turning heat pump off"
	if on {
		desc = "Turning heat pump on"
	}
	return muart.SettingsChange{Power: &on}, desc
}

func (m *controlModel) nextMode() (muart.SettingsChange, string) {
	mode := modeCycle[0]
	for i, candidate := range modeCycle {
		if candidate == m.state.Mode {
			mode = modeCycle[(i+1)%len(modeCycle)]
		}
	}
	return muart.SettingsChange{Mode: &mode}, fmt.Sprintf("Setting mode %s", mode)
}

func (m *controlModel) nextFan() (muart.SettingsChange, string) {
	fan := fanCycle[0]
	for i, candidate := range fanCycle {
		if candidate == m.state.Fan {
			fan = fanCycle[(i+1)%len(fanCycle)]
		}
	}
	return muart.SettingsChange{Fan: &fan}, fmt.Sprintf("Setting fan %s", fan)
}

func (m *controlModel) adjustTarget(delta float64) (muart.SettingsChange, string) {
	if math.IsNaN(m.state.TargetTemperature) {
		return muart.SettingsChange{}, ""
	}
	target := math.Max(minTargetTemp, math.Min(maxTargetTemp, m.state.TargetTemperature+delta))
	return muart.SettingsChange{TargetTemperature: &target}, fmt.Sprintf("Setting target %.1f°C", target)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := newTUIStyles()
	var s strings.Builder

	// Header
	s.WriteString(st.title.Render("MUART CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = st.warning.Render("RECONNECTING...")
	}
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | Tab=switch Enter=apply q=quit", connStatus)))
	s.WriteString("\n")

	if m.hasSnapshot {
		s.WriteString(fmt.Sprintf(" %s %s",
			st.statsLabel.Render("Bridge Uptime:"),
			st.statsValue.Render(formatUptime(time.Since(m.snapshot.Statistics.StartTime)))))
	}
	s.WriteString("\n\n")

	// Layout: left panel (sources) | right panel (state and controls)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 40 {
		rightWidth = 40
	}

	listStyle := st.box.Width(leftWidth)
	if m.focusedField == focusSourceList {
		listStyle = st.focusedBox.Width(leftWidth)
	}
	sourcePanel := listStyle.Render(m.sourceList.View())
	controlPanel := st.box.Width(rightWidth).Render(m.renderControlPanel(st))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sourcePanel, " ", controlPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar(st))
	s.WriteString("\n\n")

	s.WriteString(st.statsLabel.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(m.events.render(st, m.height-24, m.width-4))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func formatTemperature(c float64) string {
	if math.IsNaN(c) {
		return "--.-°C"
	}
	return fmt.Sprintf("%.1f°C", c)
}

func (m controlModel) renderControlPanel(st tuiStyles) string {
	var s strings.Builder
	state := m.state

	connStyle := st.statsValue
	switch state.Connection {
	case bridge.Disconnected:
		connStyle = st.errorText
	case bridge.Connecting:
		connStyle = st.warning
	}
	s.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		st.statsLabel.Render("Heat Pump:"), connStyle.Render(state.Connection.String()),
		st.statsLabel.Render("Action:"), st.statsValue.Render(state.Action.String()),
	))

	power := "OFF"
	if state.Power {
		power = "ON"
	}
	s.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		st.statsLabel.Render("Power:"), st.statsValue.Render(power),
		st.statsLabel.Render("Mode:"), st.statsValue.Render(state.Mode.String()),
		st.statsLabel.Render("Fan:"), st.statsValue.Render(state.Fan.String()),
	))
	s.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		st.statsLabel.Render("Target:"), st.statsValue.Render(formatTemperature(state.TargetTemperature)),
		st.statsLabel.Render("Room:"), st.statsValue.Render(formatTemperature(state.RoomTemperature)),
		st.statsLabel.Render("Source:"), st.statsValue.Render(state.TemperatureSource),
	))
	s.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n\n",
		st.statsLabel.Render("Vane:"), st.statsValue.Render(state.Vane.String()),
		st.statsLabel.Render("Compressor:"), st.statsValue.Render(fmt.Sprintf("%d Hz", state.CompressorFrequency)),
		st.statsLabel.Render("Stage:"), st.statsValue.Render(muart.FormatStage(state.Stage)),
	))

	// Remote temperature input
	s.WriteString(st.statsLabel.Render("Remote °C: "))
	if m.focusedField == focusTempInput {
		s.WriteString(m.tempInput.View())
	} else {
		// Show as plain text when not focused
		val := m.tempInput.Value()
		if val == "" {
			val = m.tempInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString("\n\n")

	// Buttons
	buttons := []struct {
		focus int
		text  string
	}{
		{focusRemoteButton, "[ Send Remote ]"},
		{focusInternalButton, "[ Use Internal ]"},
	}
	for i, btn := range buttons {
		if i > 0 {
			s.WriteString(" ")
		}
		if m.focusedField == btn.focus {
			s.WriteString(st.focusedButton.Render(btn.text))
		} else {
			s.WriteString(st.button.Render(btn.text))
		}
	}
	s.WriteString("\n\n")
	s.WriteString(st.header.Render("p=power m=mode f=fan +/-=target"))

	return s.String()
}

func (m controlModel) renderStatisticsBar(st tuiStyles) string {
	if !m.hasSnapshot {
		return st.box.Width(m.width - 4).Render(st.header.Render("Waiting for bridge statistics..."))
	}
	stats := m.snapshot.Statistics

	errRate := st.statsValue.Render("0.0%")
	if rate := stats.ErrorRate(); rate > 0 {
		errRate = st.errorText.Render(fmt.Sprintf("%.1f%%", rate))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		st.statsLabel.Render("RX:"), st.statsValue.Render(fmt.Sprintf("%d/%d", stats.HeatPumpFrames, stats.ThermostatFrames)),
		st.statsLabel.Render("TX:"), st.statsValue.Render(fmt.Sprintf("%d", stats.FramesSent)),
		st.statsLabel.Render("Fwd:"), st.statsValue.Render(fmt.Sprintf("%d", stats.Forwarded)),
		st.statsLabel.Render("Errors:"), errRate,
		st.statsLabel.Render("Missed:"), st.statsValue.Render(fmt.Sprintf("%d", stats.MissedPolls)),
		st.statsLabel.Render("Rate:"), st.statsValue.Render(fmt.Sprintf("%.1f fr/s", stats.FrameRate(time.Now()))),
	)

	return st.box.Width(m.width - 4).Render(content)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) updateSourceList() {
	if !m.hasSnapshot {
		return
	}
	items := make([]list.Item, len(m.snapshot.Sources))
	for i, name := range m.snapshot.Sources {
		items[i] = sourceItem{
			name:      name,
			selected:  name == m.snapshot.Selected,
			effective: name == m.state.TemperatureSource,
		}
	}
	m.sourceList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	height := m.height - 20
	if height < 6 {
		height = 6
	}
	m.sourceList.SetSize(28, height)
}
