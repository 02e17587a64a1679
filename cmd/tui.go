// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/muart/pkg/muart"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// eventLog keeps the most recent entries
type eventLog struct {
	entries    []errorLogEntry
	maxEntries int
}

func newEventLog(maxEntries int) eventLog {
	return eventLog{entries: make([]errorLogEntry, 0), maxEntries: maxEntries}
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}
}

// Shared TUI styles
type tuiStyles struct {
	title         lipgloss.Style
	header        lipgloss.Style
	statsLabel    lipgloss.Style
	statsValue    lipgloss.Style
	errorText     lipgloss.Style
	warning       lipgloss.Style
	box           lipgloss.Style
	focusedBox    lipgloss.Style
	button        lipgloss.Style
	focusedButton lipgloss.Style
}

func newTUIStyles() tuiStyles {
	return tuiStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		statsLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		statsValue: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		errorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		focusedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1),
		button: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("238")).
			Padding(0, 2),
		focusedButton: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color("12")).
			Padding(0, 2),
	}
}

// renderEvents renders the newest entries that fit in height lines
func (l eventLog) render(st tuiStyles, height, width int) string {
	if height < 5 {
		height = 5
	}

	logContent := strings.Builder{}
	startIdx := len(l.entries) - height
	if startIdx < 0 {
		startIdx = 0
	}

	if len(l.entries) == 0 {
		logContent.WriteString(st.header.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(l.entries); i++ {
			entry := l.entries[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					st.header.Render(timestamp),
					st.errorText.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					st.header.Render(timestamp),
					st.warning.Render("ℹ "+entry.message),
				))
			}
		}
	}

	if width < 20 {
		width = 20
	}
	return st.box.Width(width).Render(logContent.String())
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := uint64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// Latest decoded values seen on the link
type telemetryData struct {
	settings *muart.SettingsResponse
	room     *muart.RoomTempResponse
	status   *muart.StatusResponse
	standby  *muart.StandbyResponse
	updated  time.Time
}

func (t *telemetryData) update(f *muart.Frame) bool {
	if !f.IsChecksumValid() {
		return false
	}
	p, err := muart.Decode(f)
	if err != nil {
		return false
	}
	switch v := p.(type) {
	case muart.SettingsResponse:
		t.settings = &v
	case muart.RoomTempResponse:
		t.room = &v
	case muart.StatusResponse:
		t.status = &v
	case muart.StandbyResponse:
		t.standby = &v
	default:
		return false
	}
	t.updated = f.Timestamp()
	return true
}

// TUI model
type model struct {
	connInfo     string
	showAll      bool
	stats        *muart.Statistics
	events       eventLog
	synchronized bool
	noiseBytes   uint64
	width        int
	height       int
	quitting     bool
	telemetry    *telemetryData
}

// Messages
type tickMsg time.Time
type frameMsg struct {
	frame            *muart.Frame
	validationErrors []muart.ValidationError
}
type noiseMsg struct {
	bytes uint64
}
type linkClosedMsg struct {
	err error
}

func initialModel(connInfo string, showAll bool) model {
	return model{
		connInfo: connInfo,
		showAll:  showAll,
		stats:    muart.NewStatistics(),
		events:   newEventLog(100),
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.events.add("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case noiseMsg:
		m.stats.AddNoise(msg.bytes)
		m.noiseBytes += msg.bytes
		if m.synchronized {
			m.events.add(fmt.Sprintf("Discarded %d noise bytes", msg.bytes), true)
		}

	case linkClosedMsg:
		if msg.err != nil {
			m.events.add(fmt.Sprintf("Connection closed: %v", msg.err), true)
		} else {
			m.events.add("Connection closed", true)
		}

	case frameMsg:
		if !m.synchronized {
			m.synchronized = true
			if m.noiseBytes > 0 {
				m.events.add(fmt.Sprintf("Synchronized after skipping %d invalid bytes", m.noiseBytes), false)
			} else {
				m.events.add("Synchronized", false)
			}
		}

		m.stats.Update(msg.validationErrors)

		if m.telemetry == nil {
			m.telemetry = &telemetryData{}
		}
		m.telemetry.update(msg.frame)

		name := muart.FormatFrameName(msg.frame)
		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.events.add(fmt.Sprintf("%s: %s", name, err.Message), true)
			}
		} else if m.showAll {
			m.events.add(fmt.Sprintf("%s (valid)", name), false)
		}
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := newTUIStyles()

	// Header
	var s strings.Builder
	s.WriteString(st.title.Render("MUART - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(st.header.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset stats | 'q' quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	if !m.synchronized {
		s.WriteString(st.warning.Render("⏳ Waiting for first frame..."))
	} else {
		s.WriteString(st.statsValue.Render("✓ Synchronized"))
		s.WriteString(st.header.Render(fmt.Sprintf(" (uptime %s)", formatUptime(time.Since(m.stats.StartTime)))))
	}
	s.WriteString("\n\n")

	s.WriteString(st.box.Render(m.renderStatistics(st)))
	s.WriteString("\n\n")

	if m.telemetry != nil && !m.telemetry.updated.IsZero() {
		s.WriteString(st.statsLabel.Render("Latest Telemetry:"))
		s.WriteString("\n")
		s.WriteString(st.box.Render(m.telemetry.render(st)))
		s.WriteString("\n\n")
	}

	s.WriteString(st.statsLabel.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(m.events.render(st, m.height-17, m.width-4))

	return s.String()
}

func (m model) renderStatistics(st tuiStyles) string {
	stats := m.stats
	var validPercent, errorPercent float64
	totalErrors := stats.ChecksumErrors + stats.LengthErrors + stats.UnknownFrames + stats.AnomalousValues
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(stats.TotalFrames)
	}

	content := strings.Builder{}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		st.statsLabel.Render("Total:"), st.statsValue.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		st.statsLabel.Render("Valid:"), st.statsValue.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidFrames, validPercent)),
		st.statsLabel.Render("Errors:"), st.errorText.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if stats.ChecksumErrors > 0 || stats.LengthErrors > 0 {
		content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			st.statsLabel.Render("Checksum Errors:"), st.errorText.Render(fmt.Sprintf("%d", stats.ChecksumErrors)),
			st.statsLabel.Render("Short Payloads:"), st.errorText.Render(fmt.Sprintf("%d", stats.LengthErrors)),
		))
	}

	if stats.UnknownFrames > 0 || stats.AnomalousValues > 0 {
		content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			st.statsLabel.Render("Unknown:"), st.warning.Render(fmt.Sprintf("%d", stats.UnknownFrames)),
			st.statsLabel.Render("Anomalous:"), st.warning.Render(fmt.Sprintf("%d", stats.AnomalousValues)),
		))
	}

	if stats.NoiseBytes > 0 {
		content.WriteString(fmt.Sprintf("%s %s\n",
			st.statsLabel.Render("Noise Bytes:"), st.warning.Render(fmt.Sprintf("%d", stats.NoiseBytes)),
		))
	}

	errRate := st.statsValue.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	if stats.ErrorRate > 0 {
		errRate = st.errorText.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s",
		st.statsLabel.Render("Frame Rate:"), st.statsValue.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		st.statsLabel.Render("Error Rate:"), errRate,
	))

	return content.String()
}

func (t *telemetryData) render(st tuiStyles) string {
	content := strings.Builder{}

	if s := t.settings; s != nil {
		power := "OFF"
		if s.Power() {
			power = "ON"
		}
		content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			st.statsLabel.Render("Power:"), st.statsValue.Render(power),
			st.statsLabel.Render("Mode:"), st.statsValue.Render(s.Mode().String()),
			st.statsLabel.Render("Target:"), st.statsValue.Render(fmt.Sprintf("%.1f°C", s.TargetTemperature())),
		))
		content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			st.statsLabel.Render("Fan:"), st.statsValue.Render(s.Fan().String()),
			st.statsLabel.Render("Vane:"), st.statsValue.Render(s.Vane().String()),
			st.statsLabel.Render("H-Vane:"), st.statsValue.Render(s.HorizontalVane().String()),
		))
	}
	if r := t.room; r != nil {
		content.WriteString(fmt.Sprintf("%s %s\n",
			st.statsLabel.Render("Room:"), st.statsValue.Render(fmt.Sprintf("%.1f°C", r.RoomTemperature())),
		))
	}
	if s := t.status; s != nil {
		operating := "No"
		if s.Operating() {
			operating = "Yes"
		}
		content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			st.statsLabel.Render("Operating:"), st.statsValue.Render(operating),
			st.statsLabel.Render("Compressor:"), st.statsValue.Render(fmt.Sprintf("%d Hz", s.CompressorFrequency())),
		))
	}
	if s := t.standby; s != nil {
		content.WriteString(fmt.Sprintf("%s %s\n",
			st.statsLabel.Render("Stage:"), st.statsValue.Render(muart.FormatStage(s.Stage())),
		))
	}

	return strings.TrimSuffix(content.String(), "\n")
}
