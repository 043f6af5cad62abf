package config

import "sort"

// Presets are tunings over DefaultConfig. Each function edits a fresh copy.
var Presets = map[string]func(*Config){
	// the bench rig as shipped
	"lab": func(c *Config) {},
	"aggressive": func(c *Config) {
		c.Control.Kp = 0.008
		c.Control.Kd = 0.0001
	},
	"sluggish": func(c *Config) {
		c.Control.Kp = 0.002
		c.Sim.Duration = 30
	},
	"high-gear": func(c *Config) {
		c.Encoder.GearRatio = 30
		c.Motor.GearRatio = 30
		c.Control.Kp = 0.007
		c.Sim.Setpoint = 80
	},
	"fast-loop": func(c *Config) {
		c.Control.Dt = 0.05
		c.Control.Kp = 0.002
		c.Sim.Substeps = 20
	},
	"loaded": func(c *Config) {
		c.Motor.Load = 0.004
		c.Control.Ki = 0.0005
	},
}

func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
