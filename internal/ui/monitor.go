package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/railctl/z21/protocol"
)

// TelemetryMsg delivers a fresh system state snapshot to the monitor.
// Feed it in from outside with Program.Send.
type TelemetryMsg struct {
	State protocol.SystemState
}

// TelemetryErrMsg reports a failure of the telemetry source. The
// monitor shows the error and keeps running.
type TelemetryErrMsg struct {
	Err error
}

// monitorKeyMap defines key bindings for the monitor screen
type monitorKeyMap struct {
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

// MonitorModel is the live telemetry screen shown by "z21ctl monitor".
// It renders the most recent system state snapshot and waits for the
// next one; the command station pushes snapshots via TelemetryMsg.
type MonitorModel struct {
	StationName string
	Address     string

	state    *protocol.SystemState
	lastSeen time.Time
	updates  int
	err      error

	width   int
	height  int
	spinner spinner.Model
	help    help.Model
	keys    monitorKeyMap
}

// NewMonitorModel creates a monitor for the given station.
func NewMonitorModel(name, address string) MonitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	width, height := GetTerminalSize()
	return MonitorModel{
		StationName: name,
		Address:     address,
		width:       width,
		height:      height,
		spinner:     sp,
		help:        help.New(),
		keys: monitorKeyMap{
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c", "esc"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.width > MaxContentWidth {
			m.width = MaxContentWidth
		}
		m.height = msg.Height
	case TelemetryMsg:
		state := msg.State
		m.state = &state
		m.lastSeen = time.Now()
		m.updates++
		m.err = nil
	case TelemetryErrMsg:
		m.err = msg.Err
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m MonitorModel) View() string {
	var b strings.Builder

	title := HeaderTitleStyle.Render("TRACK MONITOR")
	target := m.Address
	if m.StationName != "" {
		target = m.StationName + " (" + m.Address + ")"
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left,
		title,
		HeaderCommandStyle.Render(target),
	))
	b.WriteString("\n")
	b.WriteString(RenderHorizontalDivider(m.width-6, "─"))
	b.WriteString("\n")

	if m.state == nil {
		b.WriteString(fmt.Sprintf("  %s waiting for telemetry...", m.spinner.View()))
	} else {
		b.WriteString(m.renderTelemetry(*m.state))
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorMessageStyle.Render("  telemetry error: " + m.err.Error()))
	}

	b.WriteString("\n")
	b.WriteString(RenderHorizontalDivider(m.width-6, "─"))
	b.WriteString("\n")
	b.WriteString(HeaderCommandStyle.Render(m.statusLine()))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return MonitorBorderStyle(m.width).Render(b.String())
}

// renderTelemetry renders the measurement rows for one snapshot.
func (m MonitorModel) renderTelemetry(s protocol.SystemState) string {
	row := func(label, value string) string {
		return TelemetryLabelStyle.Render("  "+label) + TelemetryValueStyle.Render(value)
	}

	track := TelemetryOKStyle.Render("ON")
	if !s.TrackVoltageOn() {
		track = TelemetryAlertStyle.Render("OFF")
	}

	lines := []string{
		TelemetryLabelStyle.Render("  Track voltage") + track,
		row("Main current", fmt.Sprintf("%d mA", s.MainCurrent)),
		row("Filtered current", fmt.Sprintf("%d mA", s.FilteredMainCurrent)),
		row("Prog current", fmt.Sprintf("%d mA", s.ProgCurrent)),
		row("Supply voltage", fmt.Sprintf("%.2f V", float64(s.SupplyVoltage)/1000)),
		row("Track voltage out", fmt.Sprintf("%.2f V", float64(s.VCCVoltage)/1000)),
		row("Temperature", fmt.Sprintf("%d °C", s.Temperature)),
	}

	for _, flag := range stateAlerts(s) {
		lines = append(lines, "  "+TelemetryAlertStyle.Render(FailureMarker+" "+flag))
	}

	return strings.Join(lines, "\n")
}

// stateAlerts lists the active alarm flags of a snapshot.
func stateAlerts(s protocol.SystemState) []string {
	var alerts []string
	if s.CentralState&protocol.StateEmergencyStop != 0 {
		alerts = append(alerts, "EMERGENCY STOP")
	}
	if s.CentralState&protocol.StateShortCircuit != 0 {
		alerts = append(alerts, "SHORT CIRCUIT")
	}
	if s.CentralState&protocol.StateProgrammingActive != 0 {
		alerts = append(alerts, "PROGRAMMING MODE")
	}
	return alerts
}

// statusLine summarizes freshness of the displayed data.
func (m MonitorModel) statusLine() string {
	if m.updates == 0 {
		return "no data yet"
	}
	return fmt.Sprintf("%d updates, last %s ago",
		m.updates, time.Since(m.lastSeen).Round(time.Second))
}
