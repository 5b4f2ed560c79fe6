package audio

import (
	resampler "github.com/godeps/go-audio-soxr"
)

// StreamResampler keeps resampling state across frames so chunk boundaries do
// not click. One instance per capture stream; not safe for concurrent use.
type StreamResampler struct {
	inRate  int
	outRate int
	engine  *resampler.SimpleResamplerFloat32
	outBuf  []float32
}

// NewStreamResampler creates a streaming resampler for continuous audio.
func NewStreamResampler(inRate, outRate int) (*StreamResampler, error) {
	engine, err := resampler.NewEngineFloat32(float64(inRate), float64(outRate), resampler.QualityHigh)
	if err != nil {
		return nil, err
	}
	return &StreamResampler{inRate: inRate, outRate: outRate, engine: engine}, nil
}

// Close releases the underlying resampler.
func (s *StreamResampler) Close() {
	if s == nil {
		return
	}
	s.engine = nil
	s.outBuf = nil
}

// AppendPCM appends PCM16 samples for resampling.
func (s *StreamResampler) AppendPCM(pcm []int16) error {
	if s == nil || s.engine == nil || len(pcm) == 0 {
		return nil
	}
	out, err := s.engine.Process(Int16SliceToFloat32(pcm))
	if err != nil {
		return err
	}
	if len(out) > 0 {
		s.outBuf = append(s.outBuf, out...)
	}
	return nil
}

// Flush pushes any samples still buffered inside the engine.
func (s *StreamResampler) Flush() error {
	if s == nil || s.engine == nil {
		return nil
	}
	out, err := s.engine.Flush()
	if err != nil {
		return err
	}
	if len(out) > 0 {
		s.outBuf = append(s.outBuf, out...)
	}
	return nil
}

// Drain returns every resampled PCM16 sample accumulated so far.
func (s *StreamResampler) Drain() []int16 {
	if s == nil || len(s.outBuf) == 0 {
		return nil
	}
	out := Float32SliceToInt16(s.outBuf)
	s.outBuf = s.outBuf[:0]
	return out
}
