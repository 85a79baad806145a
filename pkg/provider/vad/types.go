package vad

// VADEventType is the classification of one frame relative to the frames
// before it.
type VADEventType int

const (
	VADSpeechStart VADEventType = iota
	VADSpeechContinue
	VADSpeechEnd
	VADSilence
)

var eventNames = [...]string{
	VADSpeechStart:    "speech_start",
	VADSpeechContinue: "speech_continue",
	VADSpeechEnd:      "speech_end",
	VADSilence:        "silence",
}

func (t VADEventType) String() string {
	if t < 0 || int(t) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[t]
}

// VADEvent is a session's verdict on one frame.
type VADEvent struct {
	Type VADEventType

	// Probability is the speech score in [0, 1].
	Probability float64
}

// IsSpeech reports whether the frame is inside a speech segment.
func (e VADEvent) IsSpeech() bool {
	return e.Type == VADSpeechStart || e.Type == VADSpeechContinue
}
