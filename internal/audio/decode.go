package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Container MIME types accepted by DecodeFile
const (
	MIMEMPEG = "audio/mpeg"
	MIMEWAV  = "audio/wav"
)

var (
	// ErrUnsupportedFormat is returned for containers other than MPEG audio and WAV.
	ErrUnsupportedFormat = errors.New("unsupported audio container")
	// ErrCorruptAudio is returned when a supported container cannot be decoded.
	ErrCorruptAudio = errors.New("corrupt audio data")
)

// DetectFormat sniffs the container of the file at path and returns its
// canonical MIME type
func DetectFormat(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	switch {
	case mt.Is(MIMEMPEG):
		return MIMEMPEG, nil
	case mt.Is(MIMEWAV):
		return MIMEWAV, nil
	default:
		return mt.String(), fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}
}

// DecodeFile decodes an MPEG audio or WAV file into mono float32 samples
// at the file's native sample rate.
func DecodeFile(path string) ([]float32, int, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	if format == MIMEMPEG {
		return decodeMP3(f)
	}
	return decodeWAV(f)
}

// LoadForASR decodes path and resamples it to WhisperSampleRate
func LoadForASR(path string) ([]float32, error) {
	samples, rate, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return Resample(samples, rate, WhisperSampleRate), nil
}

// decodeMP3 reads go-mp3 output, which is always 16-bit little-endian stereo
func decodeMP3(r io.Reader) ([]float32, int, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptAudio, err)
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptAudio, err)
	}

	frames := len(pcm) / 4
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		r := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		out[i] = (float32(l) + float32(r)) / 2 / 32768
	}
	return out, d.SampleRate(), nil
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() || d.BitDepth == 0 {
		return nil, 0, fmt.Errorf("%w: invalid WAV header", ErrCorruptAudio)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptAudio, err)
	}

	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}
	scale := float32(int64(1) << (d.BitDepth - 1))
	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c])
		}
		out[i] = sum / float32(channels) / scale
	}
	return out, int(d.SampleRate), nil
}
