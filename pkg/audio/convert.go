package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String renders f as e.g. "16000Hz mono" or "48000Hz 2ch".
func (f Format) String() string {
	if f.Channels == 1 {
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	}
	return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
}

// FormatConverter normalises frames from one stream to Target. Only mono
// targets are supported; any input channel count is averaged down. The zero
// value needs Target set before use and must not be shared between streams.
type FormatConverter struct {
	Target Format

	once     sync.Once
	badFrame sync.Once
}

// Convert returns frame in the Target format. Frames already in that format
// are returned as is. A frame whose byte count is not a whole number of
// samples yields an empty frame.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	out := AudioFrame{SampleRate: c.Target.SampleRate, Channels: c.Target.Channels, Timestamp: frame.Timestamp}
	if len(frame.Data)%2 != 0 {
		c.badFrame.Do(func() {
			slog.Warn("audio: dropping frame with odd byte count", "bytes", len(frame.Data), "format", frame.Format())
		})
		return out
	}
	if frame.Format() == c.Target {
		return frame
	}
	c.once.Do(func() {
		slog.Info("audio: converting stream", "from", frame.Format(), "to", c.Target)
	})

	samples := Downmix(PCMToInt16(frame.Data), frame.Channels)
	out.Data = Int16ToPCM(resample(samples, frame.SampleRate, c.Target.SampleRate))
	return out
}

// ConvertStream converts every frame read from in and forwards it on the
// returned channel, which closes after in does. Empty results are skipped.
func ConvertStream(in <-chan AudioFrame, target Format) <-chan AudioFrame {
	out := make(chan AudioFrame, cap(in))
	conv := &FormatConverter{Target: target}
	go func() {
		defer close(out)
		for f := range in {
			if f = conv.Convert(f); len(f.Data) > 0 {
				out <- f
			}
		}
	}()
	return out
}

// Downmix averages interleaved samples of the given channel count into one
// channel. A trailing partial frame is dropped.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += int32(s)
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// StereoToMono is [Downmix] over two-channel PCM bytes.
func StereoToMono(pcm []byte) []byte {
	return Int16ToPCM(Downmix(PCMToInt16(pcm), 2))
}

// ResampleMono16 converts mono 16-bit PCM from srcRate to dstRate by linear
// interpolation. Equal or non-positive rates return pcm unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	out := resample(PCMToInt16(pcm), srcRate, dstRate)
	if len(out) == 0 {
		return nil
	}
	return Int16ToPCM(out)
}

func resample(in []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	out := make([]int16, n)
	step := float64(srcRate) / float64(dstRate)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		next := min(j+1, last)
		w := pos - float64(j)
		out[i] = int16(float64(in[j])*(1-w) + float64(in[next])*w)
	}
	return out
}

// PCMToFloat32 converts 16-bit PCM to samples in [-1, 1], averaging channels
// when there is more than one.
func PCMToFloat32(pcm []byte, channels int) []float32 {
	samples := PCMToInt16(pcm)
	if channels < 1 {
		channels = 1
	}
	out := make([]float32, len(samples)/channels)
	for i := range out {
		var sum float32
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += float32(s) / 32768
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Int16ToPCM encodes samples as little-endian bytes.
func Int16ToPCM(samples []int16) []byte {
	b := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		b = binary.LittleEndian.AppendUint16(b, uint16(s))
	}
	return b
}

// PCMToInt16 decodes little-endian bytes into samples. An odd trailing byte
// is ignored.
func PCMToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples
}
