package config

import "time"

// AgentConfig holds runtime settings for the crashkeeper agent binary.
//
// Fields:
//   - DataDir: root directory for the staging queue, secret store and database.
//   - EndpointBase / EndpointPath: upload target, both required for upload.
//   - RetentionDays: age-based cleanup horizon; zero or less disables it.
//   - RetryBaseDelay: initial backoff when a worker signals retry.
//   - Debug: enables warning/debug log output.
type AgentConfig struct {
	DataDir        string
	EndpointBase   string
	EndpointPath   string
	RetentionDays  int
	RetryBaseDelay time.Duration
	Debug          bool
}

// LoadDefaults populates c with sensible defaults.
func (c *AgentConfig) LoadDefaults() {
	c.DataDir = "crashkeeper-data"
	c.RetentionDays = DefaultRetentionDays
	c.RetryBaseDelay = 5 * time.Second
}

// LoadAgentConfig constructs an AgentConfig, applies defaults, then overlays
// values from JSON (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadAgentConfig() *AgentConfig {
	cfg := &AgentConfig{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
