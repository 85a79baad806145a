package orchestrator

// SessionState is the phase of the interaction cycle the orchestrator is in.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateWakeDetected
	StateCapturing
	StateTranscribing
	StateParsing
	StateDispatching
	StateFeedback
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateWakeDetected: "wake-detected",
	StateCapturing:    "capturing",
	StateTranscribing: "transcribing",
	StateParsing:      "parsing",
	StateDispatching:  "dispatching",
	StateFeedback:     "feedback",
}

// String returns the lower-case name of s.
func (s SessionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler so the state reads well in
// /stats.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
