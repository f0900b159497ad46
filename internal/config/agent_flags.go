package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/crashkeeper/internal/flagx"
)

// parseFlags populates selected AgentConfig fields from command-line flags.
//
// Supported flags:
//
//	-d string   data directory
//	-b string   upload endpoint base URL
//	-p string   upload endpoint path
//	-r int      retention period in days (0 or less disables cleanup)
//	-debug      enable warning/debug logging
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *AgentConfig) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-b", "-p", "-r", "-debug"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.EndpointBase, "b", cfg.EndpointBase, "upload endpoint base URL")
	fs.StringVar(&cfg.EndpointPath, "p", cfg.EndpointPath, "upload endpoint path")
	fs.IntVar(&cfg.RetentionDays, "r", cfg.RetentionDays, "retention period in days")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
