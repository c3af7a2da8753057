package audio

import (
	"math"
	"testing"
)

func TestResampleLength(t *testing.T) {
	tests := []struct {
		from, to int
		in, out  int
	}{
		{48000, 16000, 4800, 1600},
		{44100, 16000, 44100, 16000},
		{16000, 48000, 160, 480},
		{16000, 16000, 512, 512},
	}

	for _, tt := range tests {
		got := Resample(make([]float32, tt.in), tt.from, tt.to)
		if len(got) != tt.out {
			t.Errorf("%d->%d: expected %d samples, got %d", tt.from, tt.to, tt.out, len(got))
		}
	}
}

func TestResamplePreservesConstant(t *testing.T) {
	in := make([]float32, 4800)
	for i := range in {
		in[i] = 0.25
	}
	for i, v := range Resample(in, 48000, 16000) {
		if v != 0.25 {
			t.Fatalf("sample %d: expected 0.25, got %f", i, v)
		}
	}
}

func TestResamplerStreamMatchesWhole(t *testing.T) {
	const n = 4800
	in := make([]float32, n*3)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 20))
	}

	r := NewResampler(48000, 16000)
	var streamed []float32
	for i := 0; i < len(in); i += n {
		streamed = append(streamed, r.Process(in[i:i+n])...)
	}

	whole := Resample(in, 48000, 16000)
	if diff := len(whole) - len(streamed); diff < 0 || diff > 1 {
		t.Fatalf("expected streamed length close to %d, got %d", len(whole), len(streamed))
	}
	for i := range streamed {
		if math.Abs(float64(streamed[i]-whole[i])) > 1e-5 {
			t.Fatalf("sample %d: streamed %f, whole %f", i, streamed[i], whole[i])
		}
	}
}

func TestResamplerPassThrough(t *testing.T) {
	r := NewResampler(16000, 16000)
	in := []float32{0.1, 0.2}
	got := r.Process(in)
	if len(got) != 2 || got[0] != 0.1 {
		t.Fatalf("expected pass-through, got %v", got)
	}
}
