// SPDX-License-Identifier: MIT
package cmd

import (
	"testing"

	"tuner/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DefaultsToTUI(t *testing.T) {
	opts, err := parse(nil)
	require.NoError(t, err)
	require.NotNil(t, opts)

	assert.Equal(t, CommandTUI, opts.Command)
	assert.Equal(t, config.DefaultBackend, opts.Config.Audio.Backend)
	assert.Equal(t, config.DefaultNote, opts.Config.Display.Note)
}

func TestParse_Commands(t *testing.T) {
	tests := []struct {
		args    []string
		command string
	}{
		{[]string{"list"}, CommandList},
		{[]string{"serve"}, CommandServe},
		{[]string{"analyze", "take.wav"}, CommandAnalyze},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			opts, err := parse(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.command, opts.Command)
		})
	}

	opts, err := parse([]string{"analyze", "take.wav"})
	require.NoError(t, err)
	assert.Equal(t, []string{"take.wav"}, opts.Args)
}

func TestParse_FlagsOverrideConfig(t *testing.T) {
	opts, err := parse([]string{"serve",
		"--device", "3",
		"--backend", "malgo",
		"--note", "Bb",
		"--fft", "godsp",
		"--accumulation", "truncate",
		"--gate", "0.05",
		"-c", "2",
		"-v",
	})
	require.NoError(t, err)

	cfg := opts.Config
	assert.Equal(t, 3, cfg.Audio.InputDevice)
	assert.Equal(t, "malgo", cfg.Audio.Backend)
	assert.Equal(t, "Bb", cfg.Display.Note)
	assert.Equal(t, "godsp", cfg.Analysis.FFTBackend)
	assert.Equal(t, "truncate", cfg.Analysis.Accumulation)
	assert.InDelta(t, 0.05, cfg.Audio.GateThreshold, 1e-12)
	assert.Equal(t, 2, cfg.Audio.Channels)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_InputSelectsFileBackend(t *testing.T) {
	opts, err := parse([]string{"serve", "-i", "take.wav", "--loop"})
	require.NoError(t, err)
	assert.Equal(t, "file", opts.Config.Audio.Backend)
	assert.Equal(t, "take.wav", opts.Config.Audio.InputFile)
	assert.True(t, opts.Config.Audio.Loop)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown note", []string{"--note", "H"}},
		{"unknown fft", []string{"--fft", "kiss"}},
		{"gate above one", []string{"--gate", "2"}},
		{"file backend without input", []string{"--backend", "file"}},
		{"analyze without file", []string{"analyze"}},
		{"list with argument", []string{"list", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParse_MissingConfigFile(t *testing.T) {
	_, err := parse([]string{"--config", "does-not-exist.yaml"})
	assert.Error(t, err)
}
