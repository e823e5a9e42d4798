// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"tuner/cmd"
	"tuner/internal/config"
	"tuner/internal/log"
	"tuner/pkg/build"
)

// main is the entry point for the tuner.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and load configuration
//   - Execute one-off commands (list, analyze)
//
// 2. Concurrent Phase (Hot Path):
//   - Start the capture producer writing into the ring
//   - Run the analysis tick (headless or under the terminal UI)
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or UI exit
//   - Stop the tick, the producer and every transport
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Fatal(err)
	}

	// One thread for the capture callback, one for the tick and UI.
	runtime.GOMAXPROCS(2)

	options, err := cmd.ParseArgs()
	if err != nil {
		log.Fatal(err)
	}
	if options == nil {
		// --help or --version
		return
	}
	configureLogging(options.Config)

	switch options.Command {
	case cmd.CommandList:
		if err := cmd.ListDevices(os.Stdout, options.Config); err != nil {
			log.Fatal(err)
		}
		return
	case cmd.CommandAnalyze:
		if err := cmd.Analyze(os.Stdout, options.Config, options.Args[0]); err != nil {
			log.Fatal(err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if options.Command == cmd.CommandServe {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := cmd.Serve(ctx, options.Config); err != nil {
			log.Errorf("serve: %v", err)
			stop()
			os.Exit(1)
		}
		// ==================== SHUTDOWN PHASE (Cold Path) ====================
		log.Infof("serve: shut down cleanly")
		return
	}

	// The alternate screen owns the terminal; send logs to a file.
	logFile, err := os.Create("tuner.log")
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(logFile)

	if err := cmd.RunTUI(options.Config); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal(err)
	}
}

func configureLogging(cfg *config.Config) {
	level, _ := log.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
	log.Debugf("startup: %s %s", build.GetBuildFlags().Name, build.GetBuildFlags())
}
