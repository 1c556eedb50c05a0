package language

import "sync"

// Mode selects how the source language is determined.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeFixed Mode = "fixed"
)

const (
	Chinese = "zh"
	English = "en"
)

// DeriveTarget is the automatic target policy: Chinese speech is translated
// to English, anything else to Chinese.
func DeriveTarget(detected string) string {
	if Normalize(detected) == Chinese {
		return English
	}
	return Chinese
}

// AutoSwitch tracks the detected source language and the current
// translation target.
type AutoSwitch struct {
	mu       sync.RWMutex
	mode     Mode
	source   string
	detected string
	target   string
}

// NewAutoSwitch builds a switch in Auto mode when source is empty or "auto",
// otherwise pinned to source.
func NewAutoSwitch(source, target string) *AutoSwitch {
	a := &AutoSwitch{target: Normalize(target)}
	if a.target == "" {
		a.target = Chinese
	}
	source = Normalize(source)
	if source == "" || source == Auto.Code {
		a.mode = ModeAuto
	} else {
		a.mode = ModeFixed
		a.source = source
	}
	return a
}

// Observe records a detected language. In Auto mode it returns the target
// and whether the target changed. Re-detecting the current language is a
// no-op.
func (a *AutoSwitch) Observe(code string) (string, bool) {
	code = Normalize(code)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mode != ModeAuto || code == "" {
		return a.target, false
	}
	if code == a.detected {
		return a.target, false
	}
	a.detected = code

	next := DeriveTarget(code)
	if next == a.target {
		return a.target, false
	}
	a.target = next
	return a.target, true
}

// SetTarget pins the target explicitly. In Auto mode the next detection
// change may override it again.
func (a *AutoSwitch) SetTarget(code string) {
	a.mu.Lock()
	a.target = Normalize(code)
	a.mu.Unlock()
}

// SetFixed switches to Fixed mode with the given source language.
func (a *AutoSwitch) SetFixed(source string) {
	a.mu.Lock()
	a.mode = ModeFixed
	a.source = Normalize(source)
	a.mu.Unlock()
}

// SetAuto switches back to auto detection.
func (a *AutoSwitch) SetAuto() {
	a.mu.Lock()
	a.mode = ModeAuto
	a.source = ""
	a.detected = ""
	a.mu.Unlock()
}

func (a *AutoSwitch) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *AutoSwitch) Target() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.target
}

// Detected returns the last detected language, empty if none.
func (a *AutoSwitch) Detected() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detected
}

// RecognitionLanguage is the hint passed to the recognizer: the pinned
// source in Fixed mode, empty (auto-detect) otherwise.
func (a *AutoSwitch) RecognitionLanguage() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.mode == ModeFixed {
		return a.source
	}
	return ""
}

// EffectiveSource picks the source language for a translation request.
func (a *AutoSwitch) EffectiveSource(segment string) string {
	if code := Normalize(segment); code != "" {
		return code
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.mode == ModeFixed {
		return a.source
	}
	return a.detected
}
