// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tuner/internal/config"
	"tuner/internal/pitch"
	"tuner/pkg/tone"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 44100

func writeWAV(t *testing.T, samples []int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, testSampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: testSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Analysis.Capacity = 8192
	cfg.Display.Rows = 4
	cfg.Display.Sensitivity = 1
	return cfg
}

func TestNewPipeline_Wiring(t *testing.T) {
	cfg := testConfig()
	cfg.Display.Note = "D"

	ring, err := NewRing(cfg)
	require.NoError(t, err)
	p, err := NewPipeline(cfg, ring, testSampleRate)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 8192, p.Analyzer.Len())
	assert.Equal(t, pitch.DefaultBinCount, p.Mapper.BinCount())
	assert.Equal(t, pitch.Anchor(143), p.Tuner.Anchor())
	assert.False(t, p.Gate.Enabled())
	assert.Empty(t, p.sinks)
	assert.Nil(t, p.publisher)
}

func TestNewPipeline_Transports(t *testing.T) {
	cfg := testConfig()
	cfg.Debug = true
	cfg.Transport.WebSocketEnabled = true
	cfg.Transport.WebSocketAddress = "127.0.0.1:0"
	cfg.Transport.UDPEnabled = true
	cfg.Transport.UDPTargetAddress = "127.0.0.1:9"

	ring, err := NewRing(cfg)
	require.NoError(t, err)
	p, err := NewPipeline(cfg, ring, testSampleRate)
	require.NoError(t, err)

	assert.Len(t, p.sinks, 2)
	assert.NotNil(t, p.publisher)

	require.NoError(t, p.Start())
	assert.True(t, p.Tuner.Running())
	assert.NoError(t, p.Close())
	assert.False(t, p.Tuner.Running())
}

func TestAnalyze_PrintsWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Display.Note = "A"
	path := writeWAV(t, tone.Sine(8192, testSampleRate, 110, 0.5))

	var out bytes.Buffer
	require.NoError(t, Analyze(&out, cfg, path))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2+1+cfg.Display.Rows)
	assert.Contains(t, lines[0], "44100 Hz, 16-bit, 1 channel(s), 8192 samples")
	assert.Contains(t, lines[1], "note A (bin 0), window 0..16")
	assert.Equal(t, "A", strings.TrimSpace(lines[2]), "axis over bins 0..16")
	assert.Len(t, lines[2], 17)
	assert.Contains(t, out.String(), "#", "a 110 Hz tone should light bars near A")
}

func TestAnalyze_MissingFile(t *testing.T) {
	var out bytes.Buffer
	err := Analyze(&out, testConfig(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestOpenSource_FileUsesFileRate(t *testing.T) {
	cfg := testConfig()
	cfg.Audio.Backend = "file"
	cfg.Audio.InputFile = writeWAV(t, tone.Sine(4096, testSampleRate, 220, 0.5))
	cfg.Audio.SampleRate = 48000

	source, p, err := OpenSource(cfg)
	require.NoError(t, err)
	defer p.Close()
	defer source.Stop()

	assert.InDelta(t, float64(testSampleRate), p.Mapper.Config().SampleRate, 0)
}
