package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// RMS returns the root-mean-square energy of a 16-bit signed little-endian PCM
// buffer. Returns 0 for buffers shorter than one sample. The result is in the
// same units as PCM sample values (0–32 767).
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// BytesPerMs returns the number of PCM bytes covering one millisecond in
// format f. Returns 0 for an invalid format.
func (f Format) BytesPerMs() int {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return f.SampleRate * f.Channels * (BitsPerSample / 8) / 1000
}

// Duration returns the playback length of n PCM bytes in format f.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	bytesPerSec := f.SampleRate * f.Channels * (BitsPerSample / 8)
	return time.Duration(n) * time.Second / time.Duration(bytesPerSec)
}

// Bytes returns the number of PCM bytes covering d in format f, aligned to a
// whole sample frame.
func (f Format) Bytes(d time.Duration) int {
	if f.SampleRate <= 0 || f.Channels <= 0 || d <= 0 {
		return 0
	}
	frame := f.Channels * (BitsPerSample / 8)
	samples := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return samples * frame
}
