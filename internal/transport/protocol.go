package transport

import "encoding/json"

// Event names on the realtime channel.
const (
	EventStreamAudio   = "stream-audio"
	EventTranscription = "transcription"
	EventTranslation   = "translation"
	EventError         = "error"
)

// Envelope frames every message as {"event": ..., "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// StreamAudio carries one base64 encoded chunk from client to server.
type StreamAudio struct {
	Audio          string `json:"audio"`
	Language       string `json:"language"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Seq            uint64 `json:"seq,omitempty"`
}

type Transcription struct {
	Transcript   string   `json:"transcript"`
	LanguageCode string   `json:"languageCode,omitempty"`
	Confidence   float64  `json:"confidence,omitempty"`
	IsFinal      *bool    `json:"isFinal,omitempty"`
	Segments     []string `json:"segments,omitempty"`
}

// Final reports whether the transcription commits. Absent means final.
func (t Transcription) Final() bool {
	return t.IsFinal == nil || *t.IsFinal
}

type Translation struct {
	TranslatedText string `json:"translatedText"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// Encode wraps payload in an envelope.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
