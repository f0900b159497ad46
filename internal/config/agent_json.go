package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/flagx"
	"github.com/dmitrijs2005/crashkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "5s"
// or as integer nanoseconds.
type JsonConfig struct {
	DataDir        string         `json:"data_dir"`
	EndpointBase   string         `json:"endpoint_base"`
	EndpointPath   string         `json:"endpoint_path"`
	RetentionDays  *int           `json:"retention_days"`
	RetryBaseDelay timex.Duration `json:"retry_base_delay"`
	Debug          bool           `json:"debug"`
}

// parseJson overlays cfg with values loaded from a JSON file resolved via
// the -c/-config flags. With no config flag it returns without touching
// cfg. Read or unmarshal errors panic; the agent cannot run on a config it
// cannot read.
func parseJson(cfg *AgentConfig) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.EndpointBase != "" {
		cfg.EndpointBase = jc.EndpointBase
	}
	if jc.EndpointPath != "" {
		cfg.EndpointPath = jc.EndpointPath
	}
	if jc.RetentionDays != nil {
		cfg.RetentionDays = *jc.RetentionDays
	}
	if jc.RetryBaseDelay.Duration != 0 {
		cfg.RetryBaseDelay = time.Duration(jc.RetryBaseDelay.Duration)
	}
	if jc.Debug {
		cfg.Debug = true
	}
}
