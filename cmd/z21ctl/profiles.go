package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/railctl/z21/internal/config"
)

// Profile command flags
var (
	addTimeout int
	addLoco    uint16
	addSteps   string
	addDefault bool
)

func init() {
	stationAddCmd.Flags().IntVar(&addTimeout, "timeout", 0, "Request timeout in milliseconds (0 = driver default)")
	stationAddCmd.Flags().Uint16Var(&addLoco, "loco", 0, "Default locomotive address for this profile")
	stationAddCmd.Flags().StringVar(&addSteps, "steps", "", "Default throttle stepping: 14, 28 or 128")
	stationAddCmd.Flags().BoolVar(&addDefault, "default", false, "Make this the default profile")

	stationCmd.AddCommand(stationAddCmd)
	stationCmd.AddCommand(stationListCmd)
	stationCmd.AddCommand(stationRemoveCmd)
	stationCmd.AddCommand(stationDefaultCmd)
	rootCmd.AddCommand(stationCmd)
}

// stationCmd groups profile registry management
var stationCmd = &cobra.Command{
	Use:   "station",
	Short: "Manage saved station profiles",
	Long: `Manage the registry of saved command station profiles.

Profiles are stored in a YAML file in the user config directory and
let every other command run without an --address flag. The first
profile added becomes the default.`,
}

var stationAddCmd = &cobra.Command{
	Use:   "add <name> <address>",
	Short: "Save a station profile",
	Example: `  # Save the home layout station and make it the default
  z21ctl station add home 192.168.0.111:21105

  # Save a club station with a default locomotive
  z21ctl station add club 10.0.0.2:21105 --loco 3 --steps 128`,
	Args: cobra.ExactArgs(2),
	RunE: runStationAdd,
}

func runStationAdd(cmd *cobra.Command, args []string) error {
	name, address := args[0], args[1]

	if addSteps != "" {
		if _, err := parseSteps(addSteps); err != nil {
			return err
		}
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load station registry: %w", err)
	}

	registry.SetStation(name, &config.Station{
		Address:     address,
		TimeoutMS:   addTimeout,
		DefaultLoco: addLoco,
		Steps:       addSteps,
	})
	if addDefault {
		registry.Default = name
	}

	if err := config.SaveRegistry(registry); err != nil {
		return fmt.Errorf("failed to save station registry: %w", err)
	}

	fmt.Printf("✓ Saved station profile %q (%s)\n", name, address)
	if registry.Default == name {
		fmt.Println("  This is now the default profile")
	}
	return nil
}

var stationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved station profiles",
	Args:  cobra.NoArgs,
	RunE:  runStationList,
}

func runStationList(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load station registry: %w", err)
	}

	if len(registry.Stations) == 0 {
		fmt.Println("No station profiles saved.")
		fmt.Println("Use 'z21ctl station add <name> <address>' to save one.")
		return nil
	}

	names := make([]string, 0, len(registry.Stations))
	for name := range registry.Stations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		profile := registry.Stations[name]
		marker := " "
		if name == registry.Default {
			marker = "*"
		}
		fmt.Printf("%s %-15s %s", marker, name, profile.Address)
		if profile.DefaultLoco != 0 {
			fmt.Printf("  (loco %s", strconv.Itoa(int(profile.DefaultLoco)))
			if profile.Steps != "" {
				fmt.Printf(", %s steps", profile.Steps)
			}
			fmt.Print(")")
		}
		fmt.Println()
	}
	return nil
}

var stationRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Short:   "Delete a station profile",
	Example: `  z21ctl station remove club`,
	Args:    cobra.ExactArgs(1),
	RunE:    runStationRemove,
}

func runStationRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load station registry: %w", err)
	}
	if registry.GetStation(name) == nil {
		return fmt.Errorf("unknown station profile %q", name)
	}

	registry.RemoveStation(name)
	if err := config.SaveRegistry(registry); err != nil {
		return fmt.Errorf("failed to save station registry: %w", err)
	}

	fmt.Printf("✓ Removed station profile %q\n", name)
	if registry.Default == "" && len(registry.Stations) > 0 {
		fmt.Println("  No default profile set; use 'z21ctl station default <name>'")
	}
	return nil
}

var stationDefaultCmd = &cobra.Command{
	Use:     "default <name>",
	Short:   "Set the default station profile",
	Example: `  z21ctl station default home`,
	Args:    cobra.ExactArgs(1),
	RunE:    runStationDefault,
}

func runStationDefault(cmd *cobra.Command, args []string) error {
	name := args[0]

	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load station registry: %w", err)
	}
	if registry.GetStation(name) == nil {
		return fmt.Errorf("unknown station profile %q", name)
	}

	registry.Default = name
	if err := config.SaveRegistry(registry); err != nil {
		return fmt.Errorf("failed to save station registry: %w", err)
	}

	fmt.Printf("✓ Default station profile is now %q\n", name)
	return nil
}
