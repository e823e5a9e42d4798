// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"tuner/internal/audio"
	"tuner/internal/config"
	"tuner/internal/display"
	"tuner/internal/log"
	"tuner/internal/pitch"
	"tuner/internal/tui"
)

// ListDevices prints the capture devices of the configured backend. The
// file backend lists PortAudio devices.
func ListDevices(w io.Writer, cfg *config.Config) error {
	backend, err := audio.ParseBackend(cfg.Audio.Backend)
	if err != nil {
		return err
	}
	if backend == audio.File {
		backend = audio.PortAudio
	}
	return audio.ListDevices(w, backend)
}

// Analyze decodes a WAV file into the ring, runs one tick and prints the
// window around the configured note. When the file is shorter than the ring
// the missing history is silence.
func Analyze(w io.Writer, cfg *config.Config, path string) error {
	ring, err := NewRing(cfg)
	if err != nil {
		return err
	}
	info, err := audio.LoadFile(path, ring)
	if err != nil {
		return err
	}

	p, err := NewPipeline(cfg, ring, float64(info.SampleRate))
	if err != nil {
		return err
	}
	defer p.Close()

	frame, err := p.Tuner.Tick()
	if err != nil {
		return err
	}

	bins := p.Mapper.BinCount()
	fmt.Fprintf(w, "%s: %d Hz, %d-bit, %d channel(s), %d samples\n",
		path, info.SampleRate, info.BitDepth, info.Channels, ring.Written())
	fmt.Fprintf(w, "note %s (bin %d), window %d..%d, peak bin %d near %s\n",
		pitch.NoteName(frame.Anchor, bins), frame.Anchor, frame.Start, frame.End,
		frame.Peak, pitch.NoteName(pitch.Anchor(frame.Peak), bins))

	return p.Renderer.Render(w, display.Window{Start: frame.Start, End: frame.End, Bins: frame.Bins})
}

// OpenSource builds the configured producer writing into a fresh ring and
// reports the rate the pipeline must be built for.
func OpenSource(cfg *config.Config) (audio.Source, *Pipeline, error) {
	ring, err := NewRing(cfg)
	if err != nil {
		return nil, nil, err
	}
	source, err := audio.NewSource(cfg.Audio, ring)
	if err != nil {
		return nil, nil, err
	}

	sampleRate := cfg.Audio.SampleRate
	if fs, ok := source.(*audio.FileSource); ok {
		sampleRate = float64(fs.Info().SampleRate)
		log.Infof("audio: replaying %s at %.0f Hz", cfg.Audio.InputFile, sampleRate)
	}

	p, err := NewPipeline(cfg, ring, sampleRate)
	if err != nil {
		source.Stop()
		return nil, nil, err
	}
	return source, p, nil
}

// Serve runs capture, the tick loop and the configured transports until ctx
// is cancelled or the tick fails.
func Serve(ctx context.Context, cfg *config.Config) error {
	source, p, err := OpenSource(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := source.Start(); err != nil {
		return err
	}
	defer source.Stop()

	if err := p.Start(); err != nil {
		return err
	}
	log.Infof("serve: tuning %s every %s", cfg.Display.Note, p.Tuner.Interval())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return p.Tuner.Err()
		case <-ticker.C:
			if err := p.Tuner.Err(); err != nil {
				return fmt.Errorf("tuner stopped: %w", err)
			}
		}
	}
}

// RunTUI runs capture under the interactive note and tuning pages. The
// pages start and stop the tick; capture runs for the whole session.
func RunTUI(cfg *config.Config) error {
	source, p, err := OpenSource(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := source.Start(); err != nil {
		return err
	}
	defer source.Stop()

	if p.publisher != nil {
		p.publisher.Start()
	}
	return tui.Run(p.Tuner, p.Mapper.BinCount(), p.Renderer)
}
