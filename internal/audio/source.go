// SPDX-License-Identifier: MIT
/*
Package audio contains the producers that feed the capture ring:

  - Engine: PortAudio input stream
  - MalgoSource: miniaudio capture device
  - FileSource: WAV file replayed at its own sample rate

Every producer delivers mono 16-bit samples to a Writer from its own
callback context. Only the first channel of multi-channel input is kept.
The package also carries the noise gate applied to snapshots before
analysis.
*/
package audio

import (
	"errors"
	"fmt"
	"strings"

	"tuner/internal/capture"
	"tuner/internal/config"
)

var (
	ErrUnknownBackend = errors.New("unknown audio backend")
	ErrAlreadyRunning = errors.New("audio source already running")
)

// Writer receives captured mono samples. It must copy what it keeps;
// producers reuse their buffers. *capture.Ring satisfies it.
type Writer interface {
	Write(samples []capture.Sample)
}

// Source is a running producer.
type Source interface {
	Start() error
	Stop() error
}

var (
	_ Writer = (*capture.Ring)(nil)
	_ Source = (*Engine)(nil)
	_ Source = (*MalgoSource)(nil)
	_ Source = (*FileSource)(nil)
)

type Backend int

const (
	PortAudio Backend = iota
	Malgo
	File
)

func (b Backend) String() string {
	switch b {
	case PortAudio:
		return "portaudio"
	case Malgo:
		return "malgo"
	case File:
		return "file"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "", "portaudio":
		return PortAudio, nil
	case "malgo", "miniaudio":
		return Malgo, nil
	case "file", "wav":
		return File, nil
	default:
		return PortAudio, fmt.Errorf("%w: '%s'", ErrUnknownBackend, name)
	}
}

// NewSource builds the producer selected by cfg.Backend. Nothing is opened
// until Start, except for the file backend which reads the WAV header so
// callers can use its sample rate.
func NewSource(cfg config.AudioConfig, out Writer) (Source, error) {
	backend, err := ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	switch backend {
	case Malgo:
		return NewMalgoSource(cfg, out), nil
	case File:
		return NewFileSource(cfg, out)
	default:
		return NewEngine(cfg, out), nil
	}
}

// firstChannel copies channel 0 of interleaved frames into dst, growing it
// only when the callback delivers more frames than before.
func firstChannel(dst []capture.Sample, in []int16, channels int) []capture.Sample {
	frames := len(in) / channels
	if cap(dst) < frames {
		dst = make([]capture.Sample, frames)
	}
	dst = dst[:frames]
	for i := range dst {
		dst[i] = in[i*channels]
	}
	return dst
}
