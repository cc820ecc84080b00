// Package ui provides terminal UI components for the z21ctl CLI.
//
// This package uses Bubble Tea and Lipgloss to render polished terminal
// output for command station operations. Most commands follow a "run
// once and exit" pattern through the Printer; the monitor command is the
// one fully interactive screen.
//
// # Architecture
//
// The UI package provides three main component types:
//
//   - Header: Command banner showing operation name and parameters
//   - Result: Success/failure boxes with styled information
//   - Monitor: Live telemetry screen fed by system state broadcasts
//
// Commands create a Printer, print a header, run their operation against
// the station, and print a success or error box. The monitor instead
// runs a Bubble Tea program and receives TelemetryMsg values pushed in
// from the station subscription via Program.Send.
//
// Example:
//
//	p := ui.NewPrinter(nil)
//	p.PrintHeader("CV Read", "z21ctl cv read 29",
//	    map[string]string{"Station": "192.168.0.111:21105"})
//	// ... talk to the station ...
//	p.PrintSuccess("CV 29", map[string]string{"Value": "14 (0x0e)"})
//
// # Logging Integration
//
// This package expects logging to be controlled via the Z21_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent,
// allowing the curated UI output to be displayed cleanly. Set
// Z21_LOG_LEVEL to "debug", "info", "warn", or "error" to enable
// logging output.
package ui
