// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"

	"tuner/internal/config"
	"tuner/pkg/build"

	"github.com/spf13/cobra"
)

// Commands returned in Options.Command.
const (
	CommandTUI     = "tui"
	CommandList    = "list"
	CommandAnalyze = "analyze"
	CommandServe   = "serve"
)

// Options is the parsed command line: which command to run and the
// configuration it runs with.
type Options struct {
	Command string
	Args    []string
	Config  *config.Config
}

type flagValues struct {
	configPath   string
	deviceID     int
	backend      string
	input        string
	loop         bool
	note         string
	fft          string
	accumulation string
	sampleRate   float64
	channels     int
	lowLatency   bool
	gate         float64
	verbose      bool
}

// ParseArgs parses os.Args, loads the configuration file and applies any
// flags given explicitly on top of it.
func ParseArgs() (*Options, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{Command: CommandTUI}
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			options.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandTUI
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandList
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "analyze FILE.wav",
		Short: "Print the histogram window of a WAV file around the selected note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandAnalyze
			options.Args = args
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Capture and publish frames without the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandServe
			return nil
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML configuration file (default ./config.yaml if present)")

	// Audio Device Configuration
	pf.IntVarP(&flags.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.StringVar(&flags.backend, "backend", config.DefaultBackend,
		"Audio backend: portaudio, malgo or file")
	pf.StringVarP(&flags.input, "input", "i", "",
		"WAV file to replay instead of a capture device (selects the file backend)")
	pf.BoolVar(&flags.loop, "loop", false,
		"Replay the input file until stopped")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture, only the first is analysed")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	pf.Float64VarP(&flags.gate, "gate", "g", config.DefaultGateThreshold,
		"Skip analysis while the input peak is below this fraction of full scale (0 disables)")

	// Analysis Configuration
	pf.StringVarP(&flags.note, "note", "n", config.DefaultNote,
		"Note to centre the window on: E A D G B e, or any pitch class")
	pf.StringVar(&flags.fft, "fft", config.DefaultFFTBackend,
		"FFT implementation: gonum or godsp")
	pf.StringVar(&flags.accumulation, "accumulation", config.DefaultAccumulation,
		"Histogram accumulation: exact or truncate")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	if args == nil {
		// cobra reads os.Args when given nil.
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if options.Config == nil {
		// --help and --version return before any command runs.
		return nil, nil
	}
	return options, nil
}

// apply copies explicitly set flags into cfg and validates the result.
func (f *flagValues) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.InputDevice = f.deviceID
	}
	if changed("backend") {
		cfg.Audio.Backend = f.backend
	}
	if changed("input") {
		cfg.Audio.InputFile = f.input
		cfg.Audio.Backend = "file"
	}
	if changed("loop") {
		cfg.Audio.Loop = f.loop
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("channels") {
		cfg.Audio.Channels = f.channels
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("gate") {
		cfg.Audio.GateThreshold = f.gate
	}
	if changed("note") {
		cfg.Display.Note = f.note
	}
	if changed("fft") {
		cfg.Analysis.FFTBackend = f.fft
	}
	if changed("accumulation") {
		cfg.Analysis.Accumulation = f.accumulation
	}
	if f.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
