package audio

import (
	"fmt"
	"strings"
)

// Direction tags an endpoint as a capture or playback device
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

func (d Direction) valid() bool {
	return d == Input || d == Output
}

// DeviceSpec identifies an audio endpoint by display name and direction.
// Its canonical text form is "<name> (<direction>)".
type DeviceSpec struct {
	Name      string
	Direction Direction
}

// NewDeviceSpec builds a spec, rejecting empty names and unknown directions
func NewDeviceSpec(name string, dir Direction) (DeviceSpec, error) {
	if name == "" || !dir.valid() {
		return DeviceSpec{}, fmt.Errorf("%w: name %q direction %q", ErrMalformedDeviceSpec, name, dir)
	}
	return DeviceSpec{Name: name, Direction: dir}, nil
}

func (s DeviceSpec) String() string {
	return s.Name + " (" + string(s.Direction) + ")"
}

// IsZero reports whether the spec is unset
func (s DeviceSpec) IsZero() bool {
	return s.Name == "" && s.Direction == ""
}

// ParseDeviceSpec parses the canonical form. The name may itself contain
// parentheses; the direction is taken from the last " (" group.
func ParseDeviceSpec(text string) (DeviceSpec, error) {
	if !strings.HasSuffix(text, ")") {
		return DeviceSpec{}, fmt.Errorf("%w: %q", ErrMalformedDeviceSpec, text)
	}
	i := strings.LastIndex(text, " (")
	if i <= 0 {
		return DeviceSpec{}, fmt.Errorf("%w: %q", ErrMalformedDeviceSpec, text)
	}
	dir := Direction(text[i+2 : len(text)-1])
	if !dir.valid() {
		return DeviceSpec{}, fmt.Errorf("%w: unknown direction in %q", ErrMalformedDeviceSpec, text)
	}
	return DeviceSpec{Name: text[:i], Direction: dir}, nil
}

// MarshalText implements encoding.TextMarshaler
func (s DeviceSpec) MarshalText() ([]byte, error) {
	if s.IsZero() {
		return []byte{}, nil
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text yields the zero spec.
func (s *DeviceSpec) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = DeviceSpec{}
		return nil
	}
	spec, err := ParseDeviceSpec(string(text))
	if err != nil {
		return err
	}
	*s = spec
	return nil
}
