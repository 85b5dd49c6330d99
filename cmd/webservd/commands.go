package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ybouane/webservd/internal/engine"
	"github.com/ybouane/webservd/internal/wsconfig"
	"github.com/ybouane/webservd/internal/wslog"
)

const (
	exitOK            = 0
	exitFailedStartup = 1
)

var (
	logLevel string
	logFile  string
)

// Main builds the root command, executes it, and returns the process
// exit code: 0 for a clean shutdown, 1 for a fatal startup error (bad
// config, failed bind).
func Main() int {
	root := &cobra.Command{
		Use:   "webservd",
		Short: "A single-threaded, poll-driven HTTP/1.1 origin server",
	}
	root.PersistentFlags().StringVarP(&logLevel, "loglevel", "v", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFile, "logfile", "", "rotate JSON logs to this file in addition to the console")
	root.AddCommand(newServerCmd())

	if err := root.Execute(); err != nil {
		return exitFailedStartup
	}
	return lastExitCode
}

// lastExitCode lets a subcommand's RunE communicate a specific exit code
// back to Main without cobra's own single boolean success/failure.
var lastExitCode = exitOK

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [config_path]",
		Short: "Run the server with the given configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := "config/default.conf"
			if len(args) == 1 {
				configPath = args[0]
			}
			return runServer(configPath)
		},
	}
}

func runServer(configPath string) error {
	log, err := wslog.New(logLevel, logFile)
	if err != nil {
		lastExitCode = exitFailedStartup
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	cfg, err := wsconfig.LoadFile(configPath)
	if err != nil {
		lastExitCode = exitFailedStartup
		log.Error("loading configuration", zap.Error(err))
		return err
	}

	eng, err := engine.New(cfg, wslog.Named(log, "engine"))
	if err != nil {
		lastExitCode = exitFailedStartup
		log.Error("starting engine", zap.Error(err))
		return err
	}

	log.Info("server started", zap.String("config", configPath))
	if err := eng.Run(); err != nil {
		eng.Shutdown()
		lastExitCode = exitFailedStartup
		log.Error("event loop exited", zap.Error(err))
		return err
	}

	eng.Shutdown()
	log.Info("server stopped cleanly")
	lastExitCode = exitOK
	return nil
}
