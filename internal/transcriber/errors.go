package transcriber

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transcriber state transition")
	ErrTooManyFailures   = errors.New("too many consecutive recognition failures")
)

// RecognitionError marks a failed recognition round-trip for one chunk.
// It is tolerated until the failure threshold is reached.
type RecognitionError struct {
	Seq uint64
	Err error
}

func (e *RecognitionError) Error() string {
	if e == nil || e.Err == nil {
		return "recognition failed"
	}
	if e.Seq == 0 {
		return fmt.Sprintf("recognition failed: %v", e.Err)
	}
	return fmt.Sprintf("recognition of chunk %d failed: %v", e.Seq, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewRecognitionError(seq uint64, err error) error {
	if err == nil {
		return nil
	}
	return &RecognitionError{Seq: seq, Err: err}
}

func IsRecognitionError(err error) bool {
	var re *RecognitionError
	return errors.As(err, &re)
}
