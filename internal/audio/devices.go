// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"

	"tuner/internal/config"

	"github.com/gen2brain/malgo"
	"github.com/gordonklaus/portaudio"
)

// Device describes one host audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefault         bool
}

// Initialize sets up the PortAudio subsystem. Calls nest; each must be
// paired with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// paDevicesFunc is replaced in tests.
var paDevicesFunc = portaudio.Devices

// HostDevices returns all PortAudio devices. PortAudio must be initialised.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = def.Name
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			IsDefault:         info.Name == defaultName && info.MaxInputChannels > 0,
		}
	}
	return devices, nil
}

// InputDevice retrieves the PortAudio input device for deviceID, or the
// system default for MinDeviceID (-1).
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w", err)
		}
		return device, nil
	}

	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d ('%s') has no input channels", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// CaptureDevices lists miniaudio capture devices in the order MalgoSource
// indexes them.
func CaptureDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer releaseContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	devices := make([]Device, len(infos))
	for i := range infos {
		devices[i] = Device{
			ID:               i,
			Name:             infos[i].Name(),
			MaxInputChannels: 1,
			IsDefault:        infos[i].IsDefault != 0,
		}
	}
	return devices, nil
}

// ListDevices prints the capture devices of the chosen backend.
func ListDevices(w io.Writer, backend Backend) error {
	var (
		devices []Device
		err     error
	)
	switch backend {
	case Malgo:
		devices, err = CaptureDevices()
	case PortAudio:
		if err = Initialize(); err != nil {
			return err
		}
		defer Terminate()
		devices, err = HostDevices()
	default:
		return fmt.Errorf("%w: %s has no devices", ErrUnknownBackend, backend)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Capture Devices (%s)\n\n", backend)
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		marker := ""
		if d.IsDefault {
			marker = " *default*"
		}
		fmt.Fprintf(w, "[%d] %s%s\n", d.ID, d.Name, marker)
		if d.DefaultSampleRate > 0 {
			fmt.Fprintf(w, "    Input channels: %d, Default sample rate: %.0f Hz\n",
				d.MaxInputChannels, d.DefaultSampleRate)
		}
	}
	fmt.Fprintln(w)
	return nil
}
