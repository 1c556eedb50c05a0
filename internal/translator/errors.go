package translator

import (
	"errors"
	"fmt"
)

// TranslationError marks a failed translation request. It is scoped to one
// segment and never ends the session.
type TranslationError struct {
	Src string
	Dst string
	Err error
}

func (e *TranslationError) Error() string {
	if e == nil || e.Err == nil {
		return "translation failed"
	}
	return fmt.Sprintf("translation %s->%s failed: %v", orAuto(e.Src), e.Dst, e.Err)
}

func (e *TranslationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewTranslationError(src, dst string, err error) error {
	if err == nil {
		return nil
	}
	return &TranslationError{Src: src, Dst: dst, Err: err}
}

func IsTranslationError(err error) bool {
	var te *TranslationError
	return errors.As(err, &te)
}

func orAuto(code string) string {
	if code == "" {
		return "auto"
	}
	return code
}
