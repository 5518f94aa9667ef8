package telemetry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Profile shapes the synthetic heartbeats for one device. Chances are per
// tick and should sum to well under 1; the remainder reports HEALTHY.
type Profile struct {
	BaseCPUPercent    float64 `yaml:"base_cpu_percent"`
	BaseMemoryPercent float64 `yaml:"base_memory_percent"`
	BaseLatencyMs     float64 `yaml:"base_latency_ms"`
	DegradedChance    float64 `yaml:"degraded_chance"`
	UnhealthyChance   float64 `yaml:"unhealthy_chance"`
	CompromiseChance  float64 `yaml:"compromise_chance"`
}

// DefaultProfile returns the profile used when a device has no entry in the
// profile file.
func DefaultProfile() Profile {
	return Profile{
		BaseCPUPercent:    35,
		BaseMemoryPercent: 50,
		BaseLatencyMs:     20,
		DegradedChance:    0.08,
		UnhealthyChance:   0.04,
		CompromiseChance:  0.01,
	}
}

// profileFile is the YAML shape of the simulator profile file: a map of
// device key (or "default") to profile.
type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads simulator profiles from a YAML file. A missing path
// returns an empty map so the simulator falls back to defaults.
func LoadProfiles(path string) (map[string]Profile, error) {
	if path == "" {
		return map[string]Profile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Profile{}, nil
		}
		return nil, fmt.Errorf("failed to read profile file %s: %w", path, err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profile file %s: %w", path, err)
	}
	if file.Profiles == nil {
		file.Profiles = map[string]Profile{}
	}
	return file.Profiles, nil
}
