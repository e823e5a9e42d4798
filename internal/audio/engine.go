// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"tuner/internal/capture"
	"tuner/internal/config"
	"tuner/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Engine captures from a PortAudio input device.
//
// Thread Safety:
//   - Start and Stop are serialised by mu
//   - processInputStream runs on the PortAudio callback thread and only
//     touches pre-allocated buffers
type Engine struct {
	config config.AudioConfig
	out    Writer

	mu           sync.Mutex
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Mono buffer for multi-channel input.
	monoBuffer []capture.Sample
}

func NewEngine(cfg config.AudioConfig, out Writer) *Engine {
	return &Engine{
		config:     cfg,
		out:        out,
		monoBuffer: make([]capture.Sample, cfg.FramesPerBuffer),
	}
}

// Start initialises PortAudio, opens the configured input device and begins
// streaming into the writer.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inputStream != nil {
		return ErrAlreadyRunning
	}
	if err := Initialize(); err != nil {
		return err
	}

	inputDevice, err := InputDevice(e.config.InputDevice)
	if err != nil {
		Terminate()
		return err
	}
	e.inputDevice = inputDevice

	if e.config.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // capture only
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		Terminate()
		return fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		Terminate()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	e.inputStream = stream

	log.Infof("audio: capturing from '%s' at %.0f Hz, %d frames per buffer (latency %s)",
		inputDevice.Name, e.config.SampleRate, e.config.FramesPerBuffer, e.inputLatency)
	return nil
}

// Stop halts the stream and releases PortAudio. Stopping an idle engine is
// a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inputStream == nil {
		return nil
	}
	stream := e.inputStream
	e.inputStream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		Terminate()
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		Terminate()
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	return Terminate()
}

// processInputStream is the PortAudio callback.
// Performance Critical:
//   - Runs on the audio thread (LockOSThread)
//   - Uses pre-allocated buffers only
//   - The writer copies, so in is never retained
func (e *Engine) processInputStream(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if e.config.Channels <= 1 {
		e.out.Write(in)
		return
	}
	e.monoBuffer = firstChannel(e.monoBuffer, in, e.config.Channels)
	e.out.Write(e.monoBuffer)
}
