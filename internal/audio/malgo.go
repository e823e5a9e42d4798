// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"tuner/internal/capture"
	"tuner/internal/config"
	"tuner/internal/log"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures signed 16-bit samples through miniaudio. It needs no
// system PortAudio installation.
type MalgoSource struct {
	config config.AudioConfig
	out    Writer

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	monoBuffer []capture.Sample
}

func NewMalgoSource(cfg config.AudioConfig, out Writer) *MalgoSource {
	return &MalgoSource{
		config:     cfg,
		out:        out,
		monoBuffer: make([]capture.Sample, cfg.FramesPerBuffer),
	}
}

func (m *MalgoSource) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return ErrAlreadyRunning
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debugf("malgo: %s", message)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(m.config.Channels)
	deviceConfig.SampleRate = uint32(m.config.SampleRate)
	deviceConfig.Periods = 2

	name := "default"
	if m.config.InputDevice != config.MinDeviceID {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			releaseContext(ctx)
			return fmt.Errorf("failed to enumerate capture devices: %w", err)
		}
		if m.config.InputDevice >= len(infos) {
			releaseContext(ctx)
			return fmt.Errorf("invalid device ID: %d", m.config.InputDevice)
		}
		info := infos[m.config.InputDevice]
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
		name = info.Name()
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.onData,
	})
	if err != nil {
		releaseContext(ctx)
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.ctx = ctx
	m.device = device
	log.Infof("audio: capturing from '%s' via miniaudio at %.0f Hz", name, m.config.SampleRate)
	return nil
}

func (m *MalgoSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return nil
	}
	err := m.device.Stop()
	m.device.Uninit()
	m.device = nil

	releaseContext(m.ctx)
	m.ctx = nil

	if err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

// onData runs on the miniaudio thread.
func (m *MalgoSource) onData(_, input []byte, _ uint32) {
	if len(input) == 0 {
		return
	}
	m.monoBuffer = decodeS16(m.monoBuffer, input, max(m.config.Channels, 1))
	m.out.Write(m.monoBuffer)
}

// decodeS16 extracts channel 0 from interleaved little-endian 16-bit frames.
func decodeS16(dst []capture.Sample, in []byte, channels int) []capture.Sample {
	stride := 2 * channels
	frames := len(in) / stride
	if cap(dst) < frames {
		dst = make([]capture.Sample, frames)
	}
	dst = dst[:frames]
	for i := range dst {
		dst[i] = capture.Sample(binary.LittleEndian.Uint16(in[i*stride:]))
	}
	return dst
}

func releaseContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		log.Warnf("audio: failed to release audio context: %v", err)
	}
	ctx.Free()
}
