package audio

import "errors"

var (
	// ErrDeviceNotFound is returned when a requested or default device does not exist.
	ErrDeviceNotFound = errors.New("audio device not found")
	// ErrMalformedDeviceSpec is returned when a device spec string is not in canonical form.
	ErrMalformedDeviceSpec = errors.New("malformed audio device spec")
	// ErrCapture wraps unrecoverable failures opening or reading a capture stream.
	ErrCapture = errors.New("audio capture failed")
)

// Catalog enumerates the capturable endpoints of the host audio subsystem
type Catalog interface {
	EnumerateDevices() ([]DeviceSpec, error)
	DefaultInputDevice() (DeviceSpec, error)
	DefaultOutputDevice() (DeviceSpec, error)
}

// Source opens capture streams for a device
type Source interface {
	Open(spec DeviceSpec, cfg StreamConfig) (Stream, error)
}

// StreamConfig configures a capture stream.
// A zero SampleRate uses the device default.
type StreamConfig struct {
	SampleRate      float64
	FramesPerBuffer int
}

// Stream is an open capture stream. Read blocks until the next mono frame is available.
type Stream interface {
	Read() ([]float32, error)
	SampleRate() int
	Close() error
}
