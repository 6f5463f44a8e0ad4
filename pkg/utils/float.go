package utils

import (
	"encoding/binary"
	"math"
)

// ClampFloat32 limits v to [min, max].
func ClampFloat32(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Float32ToInt16 converts a normalized [-1, 1] sample to LINEAR16 with
// clipping.
func Float32ToInt16(sample float32) int16 {
	s := ClampFloat32(sample, -1.0, 1.0)
	return int16(s * math.MaxInt16)
}

// Int16ToFloat32 converts a LINEAR16 sample to the normalized [-1, 1] range.
func Int16ToFloat32(sample int16) float32 {
	return float32(sample) / float32(math.MaxInt16)
}

// Float32ToPCM16Bytes renders normalized samples as little-endian LINEAR16,
// the wire format of every telephony and WAV path in this codebase.
func Float32ToPCM16Bytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(Float32ToInt16(s)))
	}
	return out
}

// PCM16BytesToFloat32 parses little-endian LINEAR16 into normalized samples.
// A trailing odd byte is ignored.
func PCM16BytesToFloat32(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = Int16ToFloat32(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return out
}

// Float32ToPCM32FloatBytes renders samples as little-endian IEEE float32,
// used by the WAV float output path.
func Float32ToPCM32FloatBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
