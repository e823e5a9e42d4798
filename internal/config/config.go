// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the tuner. The pitch layout is 343 bins per octave
// above A1, folded over eight octaves, refreshed every 50 ms.
const (
	DefaultBackend         = "portaudio"
	DefaultDeviceID        = MinDeviceID
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 1024
	DefaultChannels        = 1
	DefaultGateThreshold   = 0.0 // gate off

	DefaultCapacity     = 65536
	DefaultFFTBackend   = "gonum"
	DefaultAttenuation  = 200.0
	DefaultTickInterval = 50 * time.Millisecond
	DefaultAccumulation = "exact"

	DefaultReferencePitch = 55.0
	DefaultBinCount       = 343
	DefaultOctaves        = 8

	DefaultNote        = "E"
	DefaultBelow       = 15
	DefaultAbove       = 16
	DefaultRows        = 30
	DefaultSensitivity = 200

	DefaultWebSocketAddress = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 50 * time.Millisecond

	MinDeviceID     = -1 // system default device
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
	MaxOctaves      = 16
)

// Default returns the built-in configuration used when no file is found.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			Channels:        DefaultChannels,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			Capacity:     DefaultCapacity,
			FFTBackend:   DefaultFFTBackend,
			Attenuation:  DefaultAttenuation,
			TickInterval: DefaultTickInterval,
			Accumulation: DefaultAccumulation,
		},
		Pitch: PitchConfig{
			ReferencePitch: DefaultReferencePitch,
			BinCount:       DefaultBinCount,
			Octaves:        DefaultOctaves,
		},
		Display: DisplayConfig{
			Note:        DefaultNote,
			Below:       DefaultBelow,
			Above:       DefaultAbove,
			Rows:        DefaultRows,
			Sensitivity: DefaultSensitivity,
		},
		Transport: TransportConfig{
			WebSocketAddress: DefaultWebSocketAddress,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}
