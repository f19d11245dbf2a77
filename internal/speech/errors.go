package speech

import "fmt"

// TranscriptionError reports a failed transcription, either rejected before
// the upstream call (Invalid true) or failed remotely.
type TranscriptionError struct {
	Reason  string
	Invalid bool // request was malformed; never sent upstream
	Err     error
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcription: %s: %v", e.Reason, e.Err)
	}
	return "transcription: " + e.Reason
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// SynthesisError reports a failed speech synthesis.
type SynthesisError struct {
	Reason  string
	Invalid bool
	Err     error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("synthesis: %s: %v", e.Reason, e.Err)
	}
	return "synthesis: " + e.Reason
}

func (e *SynthesisError) Unwrap() error { return e.Err }
