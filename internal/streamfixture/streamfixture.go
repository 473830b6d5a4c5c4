// Package streamfixture loads WAV files into fingersum.StreamCtx for
// tests, the same way make-spectorgram.go reads test fixtures for the
// teacher's spectrogram tool: github.com/go-audio/wav's decoder plus an
// audio.IntBuffer, adapted here to produce the stereo Frame slice
// Fingersum expects (spec §6's "16-bit signed little-endian stereo
// samples at 44.1kHz") instead of a mono float64 slice.
package streamfixture

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/accurasound/sndchk/pkg/sndchk/fingersum"
)

// source adapts a decoded WAV's frames to fingersum.StreamSource.
type source struct {
	frames []fingersum.Frame
}

func (s source) Frames() []fingersum.Frame { return s.frames }

// Load decodes a 16-bit PCM WAV file at path into a fingersum.StreamCtx.
// Mono input is duplicated onto both channels; anything else (8/24/32-bit,
// >2 channels, non-PCM) is an error, since the engine's only input
// contract is 16-bit stereo (spec §6).
func Load(path string, fp fingersum.Fingerprinter) (*fingersum.StreamCtx, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("streamfixture: open %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("streamfixture: %s is not a valid WAV file", path)
	}

	duration, err := decoder.Duration()
	if err != nil {
		return nil, fmt.Errorf("streamfixture: reading duration of %s: %w", path, err)
	}

	totalSamples := int(duration.Seconds()*float64(decoder.SampleRate)) * int(decoder.NumChans)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(decoder.NumChans),
			SampleRate:  int(decoder.SampleRate),
		},
		Data:           make([]int, totalSamples),
		SourceBitDepth: int(decoder.BitDepth),
	}
	if _, err := decoder.PCMBuffer(buf); err != nil {
		return nil, fmt.Errorf("streamfixture: reading PCM from %s: %w", path, err)
	}
	if decoder.BitDepth != 16 {
		return nil, fmt.Errorf("streamfixture: %s is %d-bit, only 16-bit PCM is supported", path, decoder.BitDepth)
	}

	frames, err := toFrames(buf.Data, int(decoder.NumChans))
	if err != nil {
		return nil, fmt.Errorf("streamfixture: %s: %w", path, err)
	}

	return fingersum.New(source{frames: frames}, int(decoder.SampleRate), fp), nil
}

func toFrames(samples []int, numChannels int) ([]fingersum.Frame, error) {
	switch numChannels {
	case 1:
		out := make([]fingersum.Frame, len(samples))
		for i, s := range samples {
			v := int16(s)
			out[i] = fingersum.Frame{Left: v, Right: v}
		}
		return out, nil
	case 2:
		n := len(samples) / 2
		out := make([]fingersum.Frame, n)
		for i := 0; i < n; i++ {
			out[i] = fingersum.Frame{Left: int16(samples[2*i]), Right: int16(samples[2*i+1])}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d: only mono/stereo supported", numChannels)
	}
}
