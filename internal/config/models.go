package config

// Registry represents the entire user configuration file: named station
// profiles plus application preferences.
type Registry struct {
	Version  int                 `yaml:"version"`
	Stations map[string]*Station `yaml:"stations,omitempty"` // Keyed by profile name
	Default  string              `yaml:"default,omitempty"`  // Name of the default profile
}

// Station is one saved command station profile.
type Station struct {
	// Address is the UDP address of the station, e.g. "192.168.0.111:21105".
	Address string `yaml:"address"`
	// TimeoutMS overrides the request-response timeout in milliseconds.
	// Zero means the driver default.
	TimeoutMS int `yaml:"timeout_ms,omitempty"`
	// DefaultLoco is the loco address commands fall back to when none is
	// given on the command line.
	DefaultLoco uint16 `yaml:"default_loco,omitempty"`
	// Steps is the throttle stepping for the default loco: "14", "28" or
	// "128". Empty means 128.
	Steps string `yaml:"steps,omitempty"`
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:  1,
		Stations: make(map[string]*Station),
	}
}

// GetStation retrieves a profile by name. Returns nil if the profile
// doesn't exist.
func (r *Registry) GetStation(name string) *Station {
	return r.Stations[name]
}

// SetStation adds or replaces a profile. The first profile added
// becomes the default.
func (r *Registry) SetStation(name string, st *Station) {
	if r.Stations == nil {
		r.Stations = make(map[string]*Station)
	}
	r.Stations[name] = st
	if r.Default == "" {
		r.Default = name
	}
}

// RemoveStation deletes a profile, clearing the default if it pointed
// at the removed profile.
func (r *Registry) RemoveStation(name string) {
	delete(r.Stations, name)
	if r.Default == name {
		r.Default = ""
	}
}
