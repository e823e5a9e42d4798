// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"tuner/internal/audio"
	"tuner/internal/capture"
	"tuner/internal/config"
	"tuner/internal/display"
	"tuner/internal/log"
	"tuner/internal/pitch"
	"tuner/internal/spectrum"
	"tuner/internal/transport"
	"tuner/internal/transport/udp"
	"tuner/internal/tuner"
)

// Pipeline is every stage built from one configuration. The producer writes
// to Ring; Tuner reads it.
type Pipeline struct {
	Ring     *capture.Ring
	Analyzer *spectrum.Analyzer
	Mapper   *pitch.Mapper
	Gate     *audio.Gate
	Tuner    *tuner.Tuner
	Renderer *display.ASCII

	sinks     []transport.Transport
	publisher *udp.UDPPublisher
	sender    *udp.UDPSender
}

// NewRing allocates the capture buffer described by cfg.
func NewRing(cfg *config.Config) (*capture.Ring, error) {
	return capture.NewRing(cfg.Analysis.Capacity)
}

// NewPipeline builds the analysis stages around ring. sampleRate is the rate
// of the audio the producer writes, which for a WAV file is the file's own.
func NewPipeline(cfg *config.Config, ring *capture.Ring, sampleRate float64) (*Pipeline, error) {
	backend, err := spectrum.ParseBackend(cfg.Analysis.FFTBackend)
	if err != nil {
		return nil, err
	}
	analyzer, err := spectrum.NewAnalyzer(ring.Capacity(), backend, cfg.Analysis.Attenuation)
	if err != nil {
		return nil, err
	}

	accumulation, err := pitch.ParseAccumulation(cfg.Analysis.Accumulation)
	if err != nil {
		return nil, err
	}
	mapper, err := pitch.NewMapper(pitch.Config{
		SampleRate:   sampleRate,
		Length:       ring.Capacity(),
		BinCount:     cfg.Pitch.BinCount,
		Reference:    cfg.Pitch.ReferencePitch,
		Octaves:      cfg.Pitch.Octaves,
		Accumulation: accumulation,
	})
	if err != nil {
		return nil, err
	}

	anchor, err := pitch.ParseNote(cfg.Display.Note, cfg.Pitch.BinCount)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Ring:     ring,
		Analyzer: analyzer,
		Mapper:   mapper,
		Gate:     audio.NewGate(cfg.Audio.GateThreshold),
		Renderer: display.NewASCII(cfg.Pitch.BinCount, cfg.Display.Rows, pitch.Energy(cfg.Display.Sensitivity)),
	}

	if err := p.openSinks(cfg.Transport, cfg.Debug); err != nil {
		return nil, err
	}

	p.Tuner, err = tuner.New(tuner.Config{
		Interval: cfg.Analysis.TickInterval,
		Selector: display.Selector{Below: cfg.Display.Below, Above: cfg.Display.Above},
		Anchor:   anchor,
	}, ring, analyzer, mapper, p.Gate, p.sinks...)
	if err != nil {
		p.Close()
		return nil, err
	}

	if cfg.Transport.UDPEnabled {
		if err := p.openUDP(cfg.Transport); err != nil {
			p.Close()
			return nil, err
		}
	}

	log.Debugf("pipeline: N=%d rate=%.0f bins=%d octaves=%d fft=%s accumulation=%s",
		ring.Capacity(), sampleRate, mapper.BinCount(), cfg.Pitch.Octaves, backend, accumulation)
	return p, nil
}

func (p *Pipeline) openSinks(cfg config.TransportConfig, debug bool) error {
	if debug {
		p.sinks = append(p.sinks, transport.NewLoggingTransport())
	}
	if cfg.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.WebSocketAddress, 0)
		if err != nil {
			return err
		}
		p.sinks = append(p.sinks, ws)
	}
	return nil
}

func (p *Pipeline) openUDP(cfg config.TransportConfig) error {
	sender, err := udp.NewUDPSender(cfg.UDPTargetAddress)
	if err != nil {
		return err
	}
	publisher, err := udp.NewUDPPublisher(cfg.UDPSendInterval, sender, p.Tuner)
	if err != nil {
		sender.Close()
		return err
	}
	p.sender, p.publisher = sender, publisher
	return nil
}

// Start launches the tick loop and the UDP publisher, if any.
func (p *Pipeline) Start() error {
	if err := p.Tuner.Start(); err != nil {
		return fmt.Errorf("failed to start tuner: %w", err)
	}
	if p.publisher != nil {
		p.publisher.Start()
	}
	return nil
}

// Close stops the tick and releases every transport. It is safe to call on a
// partially built pipeline.
func (p *Pipeline) Close() error {
	if p.Tuner != nil {
		p.Tuner.Stop()
	}

	var errs []error
	if p.publisher != nil {
		errs = append(errs, p.publisher.Stop())
	}
	if p.sender != nil {
		errs = append(errs, p.sender.Close())
	}
	for _, s := range p.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
