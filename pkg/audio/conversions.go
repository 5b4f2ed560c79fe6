// Package audio converts device capture audio into the 16 kHz mono linear
// PCM the transcription wire contract expects.
package audio

import (
	"encoding/binary"
	"math"
)

func float32ToInt16(sample float32) int16 {
	if sample > 1.0 {
		return 32767
	}
	if sample < -1.0 {
		return -32768
	}
	return int16(sample * 32767)
}

// Float64SliceToInt16 converts normalized samples to PCM16.
func Float64SliceToInt16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, sample := range samples {
		out[i] = float32ToInt16(float32(sample))
	}
	return out
}

// Int16SliceToFloat32 converts PCM16 samples to normalized float32.
func Int16SliceToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, sample := range samples {
		out[i] = float32(sample) / float32(math.MaxInt16)
	}
	return out
}

// Float32SliceToInt16 converts normalized float32 samples to PCM16.
func Float32SliceToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, sample := range samples {
		out[i] = float32ToInt16(sample)
	}
	return out
}

// PCM16ToBytes packs samples as little-endian bytes.
func PCM16ToBytes(pcm []int16) []byte {
	if len(pcm) == 0 {
		return nil
	}
	out := make([]byte, len(pcm)*2)
	for i, sample := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// BytesToPCM16 unpacks little-endian bytes as samples. A trailing odd byte is
// discarded.
func BytesToPCM16(data []byte) []int16 {
	n := len(data) / 2
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// DownmixToMono averages interleaved channels into one.
func DownmixToMono(pcm []int16, channels int) []int16 {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(pcm[i*channels+ch])
		}
		out[i] = int16(sum / channels)
	}
	return out
}
