package workflow

import "clipper/internal/preflight"

// ComponentHealth summarizes the readiness of one dependency.
type ComponentHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Health runs the directory and tool checks.
func (m *Manager) Health() []ComponentHealth {
	results := preflight.RunAll(m.cfg)
	health := make([]ComponentHealth, 0, len(results))
	for _, r := range results {
		health = append(health, ComponentHealth{Name: r.Name, Ready: r.Passed, Detail: r.Detail})
	}
	return health
}

// Healthy reports whether every check passed.
func Healthy(checks []ComponentHealth) bool {
	for _, c := range checks {
		if !c.Ready {
			return false
		}
	}
	return true
}
