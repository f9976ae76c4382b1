// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The mdsbridge authors

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openmds/mdsbridge/pkg/mds"
)

// Event log entry
type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isAnomaly bool
}

// Monitor TUI model
type monitorModel struct {
	connInfo string
	config   *mds.DeviceConfig

	stats        mds.SessionStats
	lastSequence uint8
	hasPacket    bool
	lastPacket   time.Time
	lastChunkLen int

	eventLog      []monitorLogEntry
	maxLogEntries int
	logView       viewport.Model
	logDirty      bool

	startTime time.Time
	width     int
	height    int
	quitting  bool
	streamErr error
}

// Messages
type monitorTickMsg time.Time

type monitorPacketMsg struct {
	packet *mds.StreamPacket
	stats  mds.SessionStats
}

type monitorAnomalyMsg struct {
	result   mds.SequenceResult
	expected uint8
	got      uint8
}

type monitorErrMsg struct {
	err error
}

func initialMonitorModel(connInfo string, config *mds.DeviceConfig) monitorModel {
	vp := viewport.New(78, 10)
	return monitorModel{
		connInfo:      connInfo,
		config:        config,
		eventLog:      make([]monitorLogEntry, 0),
		maxLogEntries: 200,
		logView:       vp,
		startTime:     time.Now(),
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logView.Width = msg.Width - 4
		logHeight := msg.Height - 14
		if logHeight < 3 {
			logHeight = 3
		}
		m.logView.Height = logHeight

	case monitorTickMsg:
		if m.logDirty {
			m.refreshLog()
			m.logDirty = false
		}
		return m, monitorTickCmd()

	case monitorPacketMsg:
		m.stats = msg.stats
		m.lastSequence = msg.packet.Sequence
		m.lastChunkLen = len(msg.packet.Data)
		m.lastPacket = time.Now()
		m.hasPacket = true
		m.addLogEntry(fmt.Sprintf("seq=%2d  %d bytes", msg.packet.Sequence, len(msg.packet.Data)), false)

	case monitorAnomalyMsg:
		m.addLogEntry(fmt.Sprintf("%s: expected seq %d, got %d", msg.result, msg.expected, msg.got), true)

	case monitorErrMsg:
		m.streamErr = msg.err
		m.addLogEntry(fmt.Sprintf("STREAM ERROR: %v", msg.err), true)
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isAnomaly bool) {
	m.eventLog = append(m.eventLog, monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isAnomaly: isAnomaly,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
	m.logDirty = true
}

func (m *monitorModel) refreshLog() {
	anomalyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	var b strings.Builder
	for _, e := range m.eventLog {
		line := fmt.Sprintf("%s  %s", e.timestamp.Format("15:04:05"), e.message)
		if e.isAnomaly {
			line = anomalyStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	m.logView.SetContent(b.String())
	m.logView.GotoBottom()
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	anomalyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("MDSBRIDGE - STREAM MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Device: %s | Press 'q' to quit",
		m.connInfo, m.config.DeviceIdentifier)))
	s.WriteString("\n\n")

	// Statistics
	elapsed := time.Since(m.startTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(m.stats.PacketsReceived) / elapsed
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Packets:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.PacketsReceived)),
		labelStyle.Render("Bytes:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.BytesReceived)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f pkts/s", rate)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Duplicates:"), anomalyCount(m.stats.Duplicates, valueStyle, anomalyStyle),
		labelStyle.Render("Gaps:"), anomalyCount(m.stats.Gaps, valueStyle, anomalyStyle),
	))
	if m.hasPacket {
		statsContent.WriteString(fmt.Sprintf("\n%s %s   %s %s",
			labelStyle.Render("Last seq:"), valueStyle.Render(fmt.Sprintf("%d", m.lastSequence)),
			labelStyle.Render("Last chunk:"), valueStyle.Render(fmt.Sprintf("%d bytes, %s ago",
				m.lastChunkLen, time.Since(m.lastPacket).Round(time.Second))),
		))
	}

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	if m.streamErr != nil {
		s.WriteString(anomalyStyle.Render(fmt.Sprintf("Stream error: %v", m.streamErr)))
		s.WriteString("\n\n")
	}

	s.WriteString(labelStyle.Render("Events:"))
	s.WriteString("\n")
	s.WriteString(m.logView.View())

	return s.String()
}

func anomalyCount(n uint64, ok, bad lipgloss.Style) string {
	if n > 0 {
		return bad.Render(fmt.Sprintf("%d", n))
	}
	return ok.Render(fmt.Sprintf("%d", n))
}
