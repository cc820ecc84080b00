// Package config provides user configuration management for the Z21 tools.
//
// This package manages a YAML-based configuration file that stores
// named command station profiles (address, timeout, default loco) and
// which profile is the default. The file location follows OS-specific
// conventions.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/z21/config.yaml or $HOME/.config/z21/config.yaml
//   - macOS: $HOME/.config/z21/config.yaml
//   - Windows: %LOCALAPPDATA%\z21\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetStation("layout", &config.Station{
//	    Address:     "192.168.0.111:21105",
//	    DefaultLoco: 3,
//	})
//
//	if err := config.SaveRegistry(registry); err != nil {
//	    log.Fatal(err)
//	}
package config
