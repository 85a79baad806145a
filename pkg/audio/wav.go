package audio

import (
	"fmt"
	"io"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// wavFormatPCM is the WAVE format tag for uncompressed integer PCM.
const wavFormatPCM = 1

// EncodeWAV writes pcm as a 16-bit PCM WAVE stream to w.
func EncodeWAV(w io.WriteSeeker, pcm []byte, format Format) error {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("audio: encode wav: invalid format %s", format)
	}
	samples := PCMToInt16(pcm)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(w, format.SampleRate, BitsPerSample, format.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return nil
}

// WAVBytes returns pcm encoded as an in-memory WAVE file.
func WAVBytes(pcm []byte, format Format) ([]byte, error) {
	fs := afero.NewMemMapFs()
	f, err := fs.Create("utterance.wav")
	if err != nil {
		return nil, fmt.Errorf("audio: create wav buffer: %w", err)
	}
	defer f.Close()

	if err := EncodeWAV(f, pcm, format); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("audio: rewind wav buffer: %w", err)
	}
	return io.ReadAll(f)
}

// WriteWAVFile encodes pcm into a new file at path on fs, creating parent
// directories as needed.
func WriteWAVFile(fs afero.Fs, path string, pcm []byte, format Format) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("audio: create wav dir: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create wav file: %w", err)
	}
	if err := EncodeWAV(f, pcm, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecodeWAV reads a 16-bit PCM WAVE stream and returns its samples as PCM
// bytes together with the stream format.
func DecodeWAV(r io.ReadSeeker) ([]byte, Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, Format{}, fmt.Errorf("audio: decode wav: not a valid WAVE file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	format := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	return Int16ToPCM(samples), format, nil
}
