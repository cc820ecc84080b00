package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/railctl/z21/internal/ui"
	"github.com/railctl/z21/protocol"
)

// Monitor command flags
var monitorInterval int

func init() {
	monitorCmd.Flags().IntVar(&monitorInterval, "interval", 2, "Telemetry poll interval in seconds")
	rootCmd.AddCommand(monitorCmd)
}

// monitorCmd shows live station telemetry
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show live track telemetry",
	Long: `Show a live view of the station's telemetry: track voltage, main and
programming track current, supply voltage and temperature, plus alarm
flags like emergency stop and short circuit.

The station pushes a snapshot whenever something changes; the monitor
additionally polls at the configured interval so the display stays
fresh on a quiet layout. Press q to quit.`,
	Example: `  z21ctl monitor

  # Poll every 10 seconds
  z21ctl monitor --interval 10`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	st, profile, err := openStation()
	if err != nil {
		return err
	}
	defer st.Logout()

	name := profileName
	model := ui.NewMonitorModel(name, profile.Address)
	p := tea.NewProgram(model)

	// The subscription goroutine feeds snapshots into the running
	// program; Send is safe from other goroutines.
	cancel := st.SubscribeSystemState(
		time.Duration(monitorInterval)*time.Second,
		func(state protocol.SystemState) {
			p.Send(ui.TelemetryMsg{State: state})
		},
	)
	defer cancel()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor error: %w", err)
	}
	return nil
}
