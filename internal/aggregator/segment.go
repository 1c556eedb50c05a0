package aggregator

import "fmt"

// Status is the translation state of a segment.
type Status int

const (
	Pending Status = iota
	Applied
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Segment is one committed unit of recognized text.
type Segment struct {
	Seq         uint64  `json:"seq"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	IsFinal     bool    `json:"is_final"`
	Language    string  `json:"language"`
	Status      Status  `json:"status"`
	Translation string  `json:"translation,omitempty"`
	Target      string  `json:"target,omitempty"`
}

// TranslationResult is the outcome of one translation request.
type TranslationResult struct {
	Seq    uint64
	Text   string
	Target string
}
