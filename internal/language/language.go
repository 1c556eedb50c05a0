package language

import "strings"

// Language is one of the meeting languages the interpreter targets.
type Language struct {
	Code       string // ISO 639-1 code (e.g., "en", "zh")
	Name       string // English name
	NativeName string // Native name
}

// Auto represents source auto-detection.
var Auto = Language{Code: "auto", Name: "Auto Detect", NativeName: ""}

var languages = []Language{
	{Code: "en", Name: "English", NativeName: "English"},
	{Code: "zh", Name: "Chinese", NativeName: "中文"},
	{Code: "ko", Name: "Korean", NativeName: "한국어"},
	{Code: "ja", Name: "Japanese", NativeName: "日本語"},
}

var codeIndex map[string]Language

func init() {
	codeIndex = make(map[string]Language, len(languages))
	for _, lang := range languages {
		codeIndex[lang.Code] = lang
	}
}

// Normalize lowercases a code and strips any region suffix ("zh-CN" -> "zh").
// Whisper-style english names ("chinese") are mapped to their code.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	for _, lang := range languages {
		if code == strings.ToLower(lang.Name) {
			return lang.Code
		}
	}
	return code
}

// FromCode returns the Language for code, or a bare Language carrying the
// code when it is not one of the meeting languages.
func FromCode(code string) Language {
	code = Normalize(code)
	if code == Auto.Code {
		return Auto
	}
	if lang, ok := codeIndex[code]; ok {
		return lang
	}
	return Language{Code: code, Name: code}
}

// IsSupported reports whether code is one of the meeting languages.
func IsSupported(code string) bool {
	_, ok := codeIndex[Normalize(code)]
	return ok
}

// List returns the meeting languages (excluding Auto).
func List() []Language {
	result := make([]Language, len(languages))
	copy(result, languages)
	return result
}

func Codes() []string {
	codes := make([]string, len(languages))
	for i, lang := range languages {
		codes[i] = lang.Code
	}
	return codes
}
