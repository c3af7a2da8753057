package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// DefaultFramesPerBuffer is 100 ms at 48 kHz
const DefaultFramesPerBuffer = 4800

// PortAudio implements Catalog and Source on top of PortAudio
type PortAudio struct {
	log zerolog.Logger
	mu  sync.Mutex
}

// NewPortAudio initializes PortAudio. Close must be called to terminate it.
func NewPortAudio(log zerolog.Logger) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudio{log: log.With().Str("component", "portaudio").Logger()}, nil
}

func (p *PortAudio) EnumerateDevices() ([]DeviceSpec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]DeviceSpec, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, DeviceSpec{Name: d.Name, Direction: Input})
		}
		if d.MaxOutputChannels > 0 {
			result = append(result, DeviceSpec{Name: d.Name, Direction: Output})
		}
	}
	return result, nil
}

func (p *PortAudio) DefaultInputDevice() (DeviceSpec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, err := portaudio.DefaultInputDevice()
	if err != nil || d == nil {
		return DeviceSpec{}, fmt.Errorf("%w: no default input device", ErrDeviceNotFound)
	}
	return DeviceSpec{Name: d.Name, Direction: Input}, nil
}

func (p *PortAudio) DefaultOutputDevice() (DeviceSpec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, err := portaudio.DefaultOutputDevice()
	if err != nil || d == nil {
		return DeviceSpec{}, fmt.Errorf("%w: no default output device", ErrDeviceNotFound)
	}
	return DeviceSpec{Name: d.Name, Direction: Output}, nil
}

// Open starts a capture stream for spec. Output devices are captured through
// an input-capable loopback endpoint of the same name or "Monitor of <name>".
func (p *PortAudio) Open(spec DeviceSpec, cfg StreamConfig) (Stream, error) {
	p.mu.Lock()
	device, err := p.captureDevice(spec)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = device.DefaultSampleRate
	}
	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = DefaultFramesPerBuffer
	}
	channels := device.MaxInputChannels
	if channels > 2 {
		channels = 2
	}

	buffer := make([]float32, frames*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: frames,
	}, buffer)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open stream on %s: %v", ErrCapture, spec, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: failed to start stream on %s: %v", ErrCapture, spec, err)
	}

	p.log.Debug().
		Str("device", spec.String()).
		Float64("sample_rate", sampleRate).
		Int("channels", channels).
		Int("frames_per_buffer", frames).
		Msg("Capture stream started")

	return &paStream{
		stream:     stream,
		buffer:     buffer,
		channels:   channels,
		frames:     frames,
		sampleRate: int(sampleRate),
		log:        p.log,
	}, nil
}

func (p *PortAudio) captureDevice(spec DeviceSpec) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to enumerate devices: %v", ErrCapture, err)
	}

	var found bool
	for _, d := range devices {
		if d.Name != spec.Name {
			continue
		}
		found = true
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}

	if spec.Direction == Output {
		monitor := "Monitor of " + spec.Name
		for _, d := range devices {
			if d.Name == monitor && d.MaxInputChannels > 0 {
				return d, nil
			}
		}
		if found {
			return nil, fmt.Errorf("%w: no loopback capture endpoint for %s", ErrCapture, spec)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, spec)
}

// Close terminates PortAudio
func (p *PortAudio) Close() error {
	return portaudio.Terminate()
}

type paStream struct {
	stream     *portaudio.Stream
	buffer     []float32
	channels   int
	frames     int
	sampleRate int
	log        zerolog.Logger
	closeOnce  sync.Once
}

func (s *paStream) Read() ([]float32, error) {
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("%w: %v", ErrCapture, err)
		}
		s.log.Warn().Msg("Input overflowed, samples dropped")
	}
	return downmixInterleaved(s.buffer, s.channels, s.frames), nil
}

func (s *paStream) SampleRate() int {
	return s.sampleRate
}

func (s *paStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stream.Stop()
		err = s.stream.Close()
	})
	return err
}

// downmixInterleaved averages interleaved channels into a newly allocated mono slice
func downmixInterleaved(buffer []float32, channels, frames int) []float32 {
	mono := make([]float32, frames)
	if channels <= 1 {
		copy(mono, buffer)
		return mono
	}
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += buffer[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
