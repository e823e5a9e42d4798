// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tuner/internal/log"
	"tuner/internal/pitch"
	"tuner/internal/spectrum"
	"tuner/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Audio backends accepted by audio.backend.
var Backends = []string{"portaudio", "malgo", "file"}

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Pitch     PitchConfig     `yaml:"pitch"`
	Display   DisplayConfig   `yaml:"display"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig selects and shapes the capture producer.
type AudioConfig struct {
	Backend         string  `yaml:"backend"`           // portaudio, malgo or file
	InputDevice     int     `yaml:"input_device"`      // device index, -1 for the system default
	InputFile       string  `yaml:"input_file"`        // WAV path for the file backend
	Loop            bool    `yaml:"loop"`              // replay input_file until stopped
	SampleRate      float64 `yaml:"sample_rate"`       // Hz
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // frames per producer callback
	Channels        int     `yaml:"channels"`          // captured channels, the first is analysed
	LowLatency      bool    `yaml:"low_latency"`
	GateThreshold   float64 `yaml:"gate_threshold"` // 0..1 of full scale, 0 disables the gate
}

// AnalysisConfig holds the spectrum and tick settings.
type AnalysisConfig struct {
	Capacity     int           `yaml:"capacity"`     // ring size and transform length, power of two
	FFTBackend   string        `yaml:"fft_backend"`  // gonum or godsp
	Attenuation  float64       `yaml:"attenuation"`  // magnitude divisor
	TickInterval time.Duration `yaml:"tick_interval"`
	Accumulation string        `yaml:"accumulation"` // exact or truncate
}

// PitchConfig is the histogram layout.
type PitchConfig struct {
	ReferencePitch float64 `yaml:"reference_pitch"` // Hz of bin 0
	BinCount       int     `yaml:"bin_count"`
	Octaves        int     `yaml:"octaves"`
}

// DisplayConfig controls the window around the selected note and the
// text renderer.
type DisplayConfig struct {
	Note        string `yaml:"note"`  // starting string: E A D G B e
	Below       int    `yaml:"below"` // bins left of the anchor
	Above       int    `yaml:"above"` // bins right of the anchor
	Rows        int    `yaml:"rows"`
	Sensitivity int    `yaml:"sensitivity"` // energy per row
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"`  // listen address, e.g. ":8080"
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090"
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty it looks for "config.yaml" in the working directory and falls back
// to built-in defaults. Environment overrides are applied after the file, then
// the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func invalid(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, v...))
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return invalid("log_level '%s' is not a known level", c.LogLevel)
	}

	a := c.Audio
	if !knownBackend(a.Backend) {
		return invalid("audio.backend '%s' must be one of %s", a.Backend, strings.Join(Backends, ", "))
	}
	if a.Backend == "file" && a.InputFile == "" {
		return invalid("audio.input_file must be set for the file backend")
	}
	if a.InputDevice < MinDeviceID {
		return invalid("audio.input_device %d is below %d", a.InputDevice, MinDeviceID)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return invalid("audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.Channels < 1 {
		return invalid("audio.channels must be at least 1, got %d", a.Channels)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return invalid("audio.gate_threshold %g outside [0, 1]", a.GateThreshold)
	}

	n := c.Analysis
	if n.Capacity < 2 || !bitint.IsPowerOfTwo(n.Capacity) {
		return invalid("analysis.capacity %d must be a power of two >= 2", n.Capacity)
	}
	if _, err := spectrum.ParseBackend(n.FFTBackend); err != nil {
		return invalid("analysis.fft_backend: %v", err)
	}
	if n.Attenuation <= 0 {
		return invalid("analysis.attenuation must be positive, got %g", n.Attenuation)
	}
	if n.TickInterval <= 0 {
		return invalid("analysis.tick_interval must be positive, got %s", n.TickInterval)
	}
	if _, err := pitch.ParseAccumulation(n.Accumulation); err != nil {
		return invalid("analysis.accumulation: %v", err)
	}

	p := c.Pitch
	if p.ReferencePitch <= 0 {
		return invalid("pitch.reference_pitch must be positive, got %g", p.ReferencePitch)
	}
	if p.BinCount <= 0 {
		return invalid("pitch.bin_count must be positive, got %d", p.BinCount)
	}
	if p.Octaves < 1 || p.Octaves > MaxOctaves {
		return invalid("pitch.octaves %d outside [1, %d]", p.Octaves, MaxOctaves)
	}

	d := c.Display
	if _, err := pitch.ParseNote(d.Note, p.BinCount); err != nil {
		return invalid("display.note: %v", err)
	}
	if d.Below < 0 || d.Above < 0 {
		return invalid("display.below and display.above must not be negative")
	}
	if d.Rows < 1 || d.Sensitivity < 1 {
		return invalid("display.rows and display.sensitivity must be positive")
	}

	t := c.Transport
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return invalid("transport.websocket_address must be set when the websocket is enabled")
	}
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return invalid("transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	return nil
}

func knownBackend(name string) bool {
	for _, b := range Backends {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparsable values are ignored.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
			log.Infof("configuration: overriding debug from env: %v", b)
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		log.Infof("configuration: overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}
	if val, ok := os.LookupEnv("ENV_AUDIO_BACKEND"); ok {
		c.Audio.Backend = val
		log.Infof("configuration: overriding audio.backend from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_AUDIO_INPUT_DEVICE"); ok {
		if i, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = i
			log.Infof("configuration: overriding audio.input_device from env: %d", i)
		}
	}
	if val, ok := os.LookupEnv("ENV_AUDIO_INPUT_FILE"); ok {
		c.Audio.InputFile = val
		log.Infof("configuration: overriding audio.input_file from env: %s", val)
	}

	// ENV_ANALYSIS_{...}
	if val, ok := os.LookupEnv("ENV_ANALYSIS_FFT_BACKEND"); ok {
		c.Analysis.FFTBackend = val
		log.Infof("configuration: overriding analysis.fft_backend from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_ANALYSIS_TICK_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Analysis.TickInterval = dur
			log.Infof("configuration: overriding analysis.tick_interval from env: %s", dur)
		}
	}

	// ENV_WS_{...}
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = b
			log.Infof("configuration: overriding transport.websocket_enabled from env: %v", b)
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		log.Infof("configuration: overriding transport.websocket_address from env: %s", val)
	}

	// ENV_UDP_{...}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
			log.Infof("configuration: overriding transport.udp_enabled from env: %v", b)
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		log.Infof("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			log.Infof("configuration: overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}
