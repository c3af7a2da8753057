package audio

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDeviceSpecRoundTrip(t *testing.T) {
	tests := []string{
		"Test Device (input)",
		"Built-in Output (output)",
		"USB Audio (2) (input)",
		"Monitor of Speakers (output)",
		"x (input)",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			spec, err := ParseDeviceSpec(text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := spec.String(); got != text {
				t.Errorf("expected %q, got %q", text, got)
			}
		})
	}
}

func TestParseDeviceSpecFields(t *testing.T) {
	spec, err := ParseDeviceSpec("USB Audio (2) (input)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Name != "USB Audio (2)" {
		t.Errorf("expected name 'USB Audio (2)', got %q", spec.Name)
	}
	if spec.Direction != Input {
		t.Errorf("expected direction input, got %q", spec.Direction)
	}
}

func TestParseDeviceSpecMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no direction", "Test Device"},
		{"unknown direction", "Test Device (loopback)"},
		{"empty name", " (input)"},
		{"missing space", "Test Device(input)"},
		{"trailing text", "Test Device (input) "},
		{"upper case direction", "Test Device (Input)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDeviceSpec(tt.text)
			if !errors.Is(err, ErrMalformedDeviceSpec) {
				t.Errorf("expected ErrMalformedDeviceSpec, got %v", err)
			}
		})
	}
}

func TestNewDeviceSpec(t *testing.T) {
	if _, err := NewDeviceSpec("", Input); !errors.Is(err, ErrMalformedDeviceSpec) {
		t.Errorf("expected error for empty name, got %v", err)
	}
	if _, err := NewDeviceSpec("Mic", Direction("both")); !errors.Is(err, ErrMalformedDeviceSpec) {
		t.Errorf("expected error for unknown direction, got %v", err)
	}
	spec, err := NewDeviceSpec("Mic", Output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.String() != "Mic (output)" {
		t.Errorf("unexpected string %q", spec.String())
	}
}

func TestDeviceSpecJSON(t *testing.T) {
	type holder struct {
		Device DeviceSpec `json:"device"`
	}

	data, err := json.Marshal(holder{Device: DeviceSpec{Name: "Mic", Direction: Input}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"device":"Mic (input)"}` {
		t.Errorf("unexpected JSON %s", data)
	}

	var h holder
	if err := json.Unmarshal([]byte(`{"device":""}`), &h); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !h.Device.IsZero() {
		t.Errorf("expected zero spec, got %v", h.Device)
	}

	if err := json.Unmarshal([]byte(`{"device":"Mic"}`), &h); !errors.Is(err, ErrMalformedDeviceSpec) {
		t.Errorf("expected ErrMalformedDeviceSpec, got %v", err)
	}
}
