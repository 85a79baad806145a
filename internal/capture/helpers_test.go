package capture_test

import (
	"context"

	"github.com/MrWong99/voicenav/pkg/audio"
	"github.com/MrWong99/voicenav/pkg/audio/mock"
)

var format = audio.Format{SampleRate: 16000, Channels: 1}

// frameBytes is the size of one 30ms frame at 16kHz mono.
const frameBytes = 960

func frame(loud bool) audio.AudioFrame {
	samples := make([]int16, frameBytes/2)
	if loud {
		for i := range samples {
			if i%2 == 0 {
				samples[i] = 5000
			} else {
				samples[i] = -5000
			}
		}
	}
	return audio.AudioFrame{Data: audio.Int16ToPCM(samples), SampleRate: 16000, Channels: 1}
}

func push(src *mock.Source, n int, loud bool) {
	for range n {
		src.Push(frame(loud))
	}
}

func newSource() (*mock.Source, <-chan audio.AudioFrame) {
	src := mock.NewSource(format)
	ch, _ := src.Start(context.Background())
	return src, ch
}
