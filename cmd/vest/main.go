// Command vest is the mandate-enforced trading gateway CLI.
package main

import (
	"fmt"
	"os"

	"github.com/jcgs2503/vestbridge/internal/cli"
	"github.com/jcgs2503/vestbridge/internal/config"
	"github.com/jcgs2503/vestbridge/internal/logging"
)

func main() {
	baseDir := flagValue(os.Args[1:], "--dir")
	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.File
	logCfg.FilePath = cfg.LogPath()
	logger := logging.NewLoggerWithConfig(logCfg)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flagValue extracts a persistent flag before cobra parsing so the config
// directory is known at wiring time.
func flagValue(args []string, name string) string {
	for i, arg := range args {
		if arg == name && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len(name)+1 && arg[:len(name)+1] == name+"=" {
			return arg[len(name)+1:]
		}
	}
	return ""
}
