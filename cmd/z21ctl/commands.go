package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/railctl/z21/internal/config"
	"github.com/railctl/z21/internal/logging"
	"github.com/railctl/z21/internal/ui"
	"github.com/railctl/z21/protocol"
	"github.com/railctl/z21/station"
)

// Connection command flags
var (
	stationAddr string
	profileName string
	locoAddr    uint16
	locoSteps   string
)

func init() {
	// Common flags for station commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&stationAddr, "address", "", "Station UDP address (skips the profile registry)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Named station profile (defaults to the registry default)")
	rootCmd.PersistentFlags().Uint16Var(&locoAddr, "loco", 0, "Locomotive address (falls back to the profile default)")
	rootCmd.PersistentFlags().StringVar(&locoSteps, "steps", "", "Throttle stepping: 14, 28 or 128")

	// Add subcommands directly to root
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(driveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(haltCmd)
	rootCmd.AddCommand(fnCmd)
	rootCmd.AddCommand(lightsCmd)
	rootCmd.AddCommand(cvCmd)
	rootCmd.AddCommand(turnoutCmd)
}

// resolveProfile decides which station to talk to: the --address flag
// wins, otherwise the named or default profile from the registry.
func resolveProfile() (*config.Station, error) {
	if stationAddr != "" {
		return &config.Station{Address: stationAddr}, nil
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load station registry: %w", err)
	}

	name := profileName
	if name == "" {
		name = registry.Default
	}
	if name == "" {
		return nil, fmt.Errorf("no station configured; use --address or 'z21ctl station add'")
	}

	profile := registry.GetStation(name)
	if profile == nil {
		return nil, fmt.Errorf("unknown station profile %q; see 'z21ctl station list'", name)
	}
	return profile, nil
}

// openStation connects to the resolved station. The caller is
// responsible for calling Close (or Logout) on the returned session.
func openStation() (*station.Station, *config.Station, error) {
	profile, err := resolveProfile()
	if err != nil {
		return nil, nil, err
	}

	opts := []station.Option{station.WithLogger(logging.GetLogger())}
	if profile.TimeoutMS > 0 {
		opts = append(opts, station.WithTimeout(time.Duration(profile.TimeoutMS)*time.Millisecond))
	}

	st, err := station.Connect(profile.Address, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to station at %s: %w", profile.Address, err)
	}
	return st, profile, nil
}

// openLoco connects and takes control of the selected locomotive.
func openLoco(ctx context.Context) (*station.Station, *station.Loco, error) {
	st, profile, err := openStation()
	if err != nil {
		return nil, nil, err
	}

	addr := locoAddr
	if addr == 0 {
		addr = profile.DefaultLoco
	}
	if addr == 0 {
		st.Close()
		return nil, nil, fmt.Errorf("no locomotive selected; use --loco or set a profile default")
	}

	stepsName := locoSteps
	if stepsName == "" {
		stepsName = profile.Steps
	}
	steps, err := parseSteps(stepsName)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	loco, err := station.ControlWithSteps(ctx, st, addr, steps)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to take control of loco %d: %w", addr, err)
	}
	return st, loco, nil
}

// parseSteps maps the user facing stepping names to wire values.
func parseSteps(name string) (protocol.ThrottleSteps, error) {
	switch name {
	case "", "128":
		return protocol.Steps128, nil
	case "28":
		return protocol.Steps28, nil
	case "14":
		return protocol.Steps14, nil
	default:
		return 0, fmt.Errorf("invalid stepping %q (use 14, 28 or 128)", name)
	}
}

// infoCmd prints the station hardware identity
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show station serial number and firmware version",
	Long: `Connect to the station and print its serial number and firmware
version. Useful as a first connectivity check after adding a profile.`,
	Example: `  # Query the default profile
  z21ctl info

  # Query a station directly
  z21ctl info --address 192.168.0.111:21105`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	st, profile, err := openStation()
	if err != nil {
		return err
	}
	defer st.Logout()

	ctx := context.Background()
	serial, err := st.SerialNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read serial number: %w", err)
	}
	major, minor, err := st.FirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read firmware version: %w", err)
	}

	p := ui.NewPrinter(nil)
	p.PrintSuccess("Station online", map[string]string{
		"Address":  profile.Address,
		"Serial":   strconv.FormatUint(uint64(serial), 10),
		"Firmware": fmt.Sprintf("%d.%d%d", major, minor>>4, minor&0x0F),
	})
	return nil
}

// powerCmd controls track voltage
var powerCmd = &cobra.Command{
	Use:   "power <on|off>",
	Short: "Switch track voltage on or off",
	Long: `Switch the main track voltage. Switching off stops every train on
the layout; switching on releases an emergency stop or programming
mode.`,
	Example: `  z21ctl power on
  z21ctl power off`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runPower,
}

func runPower(cmd *cobra.Command, args []string) error {
	st, _, err := openStation()
	if err != nil {
		return err
	}
	defer st.Logout()

	ctx := context.Background()
	switch args[0] {
	case "on":
		if err := st.VoltageOn(ctx); err != nil {
			return fmt.Errorf("failed to switch track voltage on: %w", err)
		}
		fmt.Println("✓ Track voltage on")
	case "off":
		if err := st.VoltageOff(ctx); err != nil {
			return fmt.Errorf("failed to switch track voltage off: %w", err)
		}
		fmt.Println("✓ Track voltage off")
	default:
		return fmt.Errorf("invalid argument %q (use on or off)", args[0])
	}
	return nil
}

// driveCmd sets locomotive speed
var driveCmd = &cobra.Command{
	Use:   "drive <percent>",
	Short: "Drive the selected locomotive",
	Long: `Set the speed of the selected locomotive as a percentage of full
throttle. Negative values drive in reverse, zero coasts to a stop.

The locomotive is chosen with --loco or the profile default, the
throttle stepping with --steps.`,
	Example: `  # Half speed forward
  z21ctl drive 50 --loco 3

  # Quarter speed in reverse
  z21ctl drive -- -25 --loco 3

  # 28 step decoder
  z21ctl drive 100 --loco 3 --steps 28`,
	Args: cobra.ExactArgs(1),
	RunE: runDrive,
}

func runDrive(cmd *cobra.Command, args []string) error {
	percent, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid speed percentage: %w", err)
	}
	if percent < -100 || percent > 100 {
		return fmt.Errorf("speed percentage %v out of range -100 to 100", percent)
	}

	ctx := context.Background()
	st, loco, err := openLoco(ctx)
	if err != nil {
		return err
	}
	defer st.Logout()

	if err := loco.Drive(ctx, percent); err != nil {
		return fmt.Errorf("drive command failed: %w", err)
	}

	direction := "forward"
	if percent < 0 {
		direction = "reverse"
	}
	fmt.Printf("✓ Loco %d driving %s at %.1f%%\n", loco.Address(), direction, absFloat(percent))
	return nil
}

// stopCmd coasts the locomotive to a stop
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the selected locomotive",
	Long: `Set the selected locomotive's speed to zero. The decoder applies its
programmed deceleration, so the train coasts to a stop.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, loco, err := openLoco(ctx)
	if err != nil {
		return err
	}
	defer st.Logout()

	if err := loco.Stop(ctx); err != nil {
		return fmt.Errorf("stop command failed: %w", err)
	}
	fmt.Printf("✓ Loco %d stopping\n", loco.Address())
	return nil
}

// haltCmd emergency stops the locomotive
var haltCmd = &cobra.Command{
	Use:   "halt",
	Short: "Emergency stop the selected locomotive",
	Long: `Emergency stop the selected locomotive. The decoder cuts power
immediately instead of applying its deceleration curve. Other trains
keep running; use 'z21ctl power off' to stop the whole layout.`,
	Args: cobra.NoArgs,
	RunE: runHalt,
}

func runHalt(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, loco, err := openLoco(ctx)
	if err != nil {
		return err
	}
	defer st.Logout()

	if err := loco.Halt(ctx); err != nil {
		return fmt.Errorf("halt command failed: %w", err)
	}
	fmt.Printf("✓ Loco %d halted\n", loco.Address())
	return nil
}

// fnCmd switches decoder function outputs
var fnCmd = &cobra.Command{
	Use:   "fn <index> <on|off|toggle>",
	Short: "Switch a locomotive function output",
	Long: `Switch one of the locomotive's F0-F31 function outputs. What each
function does depends on the decoder: F0 is conventionally the
headlights, F1 and F2 are often sound and horn.`,
	Example: `  # Sound on
  z21ctl fn 1 on --loco 3

  # Toggle the horn
  z21ctl fn 2 toggle --loco 3`,
	Args: cobra.ExactArgs(2),
	RunE: runFn,
}

func runFn(cmd *cobra.Command, args []string) error {
	index, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid function index: %w", err)
	}

	var action protocol.FunctionAction
	switch args[1] {
	case "on":
		action = protocol.FunctionOn
	case "off":
		action = protocol.FunctionOff
	case "toggle":
		action = protocol.FunctionToggle
	default:
		return fmt.Errorf("invalid action %q (use on, off or toggle)", args[1])
	}

	ctx := context.Background()
	st, loco, err := openLoco(ctx)
	if err != nil {
		return err
	}
	defer st.Logout()

	if err := loco.SetFunction(ctx, uint8(index), action); err != nil {
		return fmt.Errorf("function command failed: %w", err)
	}
	fmt.Printf("✓ Loco %d F%d %s\n", loco.Address(), index, args[1])
	return nil
}

// lightsCmd is a shorthand for the F0 headlight function
var lightsCmd = &cobra.Command{
	Use:   "lights <on|off>",
	Short: "Switch the locomotive headlights",
	Long:  `Switch the selected locomotive's headlights (function output F0).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLights,
}

func runLights(cmd *cobra.Command, args []string) error {
	var on bool
	switch args[0] {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return fmt.Errorf("invalid argument %q (use on or off)", args[0])
	}

	ctx := context.Background()
	st, loco, err := openLoco(ctx)
	if err != nil {
		return err
	}
	defer st.Logout()

	if err := loco.SetHeadlights(ctx, on); err != nil {
		return fmt.Errorf("lights command failed: %w", err)
	}
	fmt.Printf("✓ Loco %d lights %s\n", loco.Address(), args[0])
	return nil
}

// CV programming flags
var usePOM bool

// cvCmd groups decoder CV programming
var cvCmd = &cobra.Command{
	Use:   "cv",
	Short: "Read and write decoder configuration variables",
	Long: `Read and write DCC decoder configuration variables (CVs).

By default CVs are programmed in direct mode on the programming track,
which takes the station out of normal operation; run 'z21ctl power on'
afterwards to resume. With --pom the CV is programmed on the main track
without interrupting operation, addressed to the selected locomotive.`,
}

var cvReadCmd = &cobra.Command{
	Use:   "read <cv>",
	Short: "Read a configuration variable",
	Example: `  # Read the decoder address on the programming track
  z21ctl cv read 1

  # Read CV 29 on the main track (needs RailCom)
  z21ctl cv read 29 --pom --loco 3`,
	Args: cobra.ExactArgs(1),
	RunE: runCVRead,
}

var cvWriteCmd = &cobra.Command{
	Use:   "write <cv> <value>",
	Short: "Write a configuration variable",
	Example: `  # Set the decoder address on the programming track
  z21ctl cv write 1 3

  # Tune acceleration on the main track without stopping
  z21ctl cv write 3 8 --pom --loco 3`,
	Args: cobra.ExactArgs(2),
	RunE: runCVWrite,
}

func init() {
	cvCmd.PersistentFlags().BoolVar(&usePOM, "pom", false, "Program on the main track instead of the programming track")
	cvCmd.AddCommand(cvReadCmd)
	cvCmd.AddCommand(cvWriteCmd)
}

func runCVRead(cmd *cobra.Command, args []string) error {
	cv, err := parseCV(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	p := ui.NewPrinter(nil)

	var value byte
	if usePOM {
		st, loco, err := openLoco(ctx)
		if err != nil {
			return err
		}
		defer st.Logout()
		value, err = loco.CVReadPOM(ctx, cv)
		if err != nil {
			p.PrintError(fmt.Sprintf("CV %d read", cv), err, cvTroubleshooting(err))
			return fmt.Errorf("CV read failed: %w", err)
		}
	} else {
		st, _, err := openStation()
		if err != nil {
			return err
		}
		defer st.Logout()
		value, err = st.CVRead(ctx, cv)
		if err != nil {
			p.PrintError(fmt.Sprintf("CV %d read", cv), err, cvTroubleshooting(err))
			return fmt.Errorf("CV read failed: %w", err)
		}
	}

	p.PrintSuccess(fmt.Sprintf("CV %d", cv), map[string]string{
		"Value": fmt.Sprintf("%d (0x%02x)", value, value),
	})
	return nil
}

func runCVWrite(cmd *cobra.Command, args []string) error {
	cv, err := parseCV(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid CV value: %w", err)
	}

	ctx := context.Background()
	p := ui.NewPrinter(nil)

	if usePOM {
		st, loco, err := openLoco(ctx)
		if err != nil {
			return err
		}
		defer st.Logout()
		if err := loco.CVWritePOM(ctx, cv, byte(value)); err != nil {
			return fmt.Errorf("CV write failed: %w", err)
		}
		// POM writes are not acknowledged by the station.
		fmt.Printf("✓ CV %d write sent to loco %d (not verified)\n", cv, loco.Address())
		return nil
	}

	st, _, err := openStation()
	if err != nil {
		return err
	}
	defer st.Logout()
	if err := st.CVWrite(ctx, cv, byte(value)); err != nil {
		p.PrintError(fmt.Sprintf("CV %d write", cv), err, cvTroubleshooting(err))
		return fmt.Errorf("CV write failed: %w", err)
	}

	p.PrintSuccess(fmt.Sprintf("CV %d written", cv), map[string]string{
		"Value": fmt.Sprintf("%d (0x%02x)", value, value),
	})
	return nil
}

func parseCV(arg string) (uint16, error) {
	cv, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid CV number: %w", err)
	}
	return uint16(cv), nil
}

// cvTroubleshooting maps programming failures to actionable hints.
func cvTroubleshooting(err error) []string {
	switch {
	case errors.Is(err, station.ErrCVNack):
		return []string{
			"Check that a locomotive is standing on the programming track",
			"Some decoders need a load across the motor terminals to ACK",
			"Try --pom on the main track if the decoder supports RailCom",
		}
	case errors.Is(err, station.ErrCVShortCircuit):
		return []string{
			"Check the programming track wiring for shorts",
			"Remove other locomotives from the programming track",
		}
	case errors.Is(err, station.ErrTimeout):
		return []string{
			"Check the station address and network connection",
			"Programming mode may be blocked while trains are running",
		}
	}
	return nil
}

// Turnout flags
var deactivate bool

// turnoutCmd groups turnout operations
var turnoutCmd = &cobra.Command{
	Use:   "turnout",
	Short: "Switch and query turnouts",
	Long: `Switch accessory decoder turnouts and query their position.

Positions are named after the route: 'straight' selects output 1,
'diverging' selects output 2.`,
}

var turnoutSetCmd = &cobra.Command{
	Use:   "set <address> <straight|diverging>",
	Short: "Switch a turnout",
	Example: `  z21ctl turnout set 5 straight
  z21ctl turnout set 5 diverging`,
	Args: cobra.ExactArgs(2),
	RunE: runTurnoutSet,
}

var turnoutGetCmd = &cobra.Command{
	Use:     "get <address>",
	Short:   "Query a turnout position",
	Example: `  z21ctl turnout get 5`,
	Args:    cobra.ExactArgs(1),
	RunE:    runTurnoutGet,
}

func init() {
	turnoutSetCmd.Flags().BoolVar(&deactivate, "release", false, "Release the output coil instead of driving it")
	turnoutCmd.AddCommand(turnoutSetCmd)
	turnoutCmd.AddCommand(turnoutGetCmd)
}

func runTurnoutSet(cmd *cobra.Command, args []string) error {
	addr, err := parseTurnoutAddress(args[0])
	if err != nil {
		return err
	}

	var pos station.TurnoutPosition
	switch args[1] {
	case "straight":
		pos = station.TurnoutStraight
	case "diverging":
		pos = station.TurnoutDiverging
	default:
		return fmt.Errorf("invalid position %q (use straight or diverging)", args[1])
	}

	st, _, err := openStation()
	if err != nil {
		return err
	}
	defer st.Logout()

	if err := st.SetTurnout(context.Background(), addr, pos, !deactivate); err != nil {
		return fmt.Errorf("turnout command failed: %w", err)
	}
	fmt.Printf("✓ Turnout %d set to %s\n", addr, args[1])
	return nil
}

func runTurnoutGet(cmd *cobra.Command, args []string) error {
	addr, err := parseTurnoutAddress(args[0])
	if err != nil {
		return err
	}

	st, _, err := openStation()
	if err != nil {
		return err
	}
	defer st.Logout()

	state, err := st.TurnoutInfo(context.Background(), addr)
	if err != nil {
		return fmt.Errorf("turnout query failed: %w", err)
	}

	fmt.Printf("Turnout %d: %s\n", addr, turnoutStateName(state))
	return nil
}

func parseTurnoutAddress(arg string) (uint16, error) {
	addr, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid turnout address: %w", err)
	}
	return uint16(addr), nil
}

func turnoutStateName(state byte) string {
	switch state {
	case 0:
		return "not switched yet"
	case 1:
		return "straight"
	case 2:
		return "diverging"
	default:
		return fmt.Sprintf("invalid (0x%02x)", state)
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
