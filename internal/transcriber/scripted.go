package transcriber

import (
	"context"

	"github.com/leonardotrapani/interpret/internal/capture"
)

var phrases = map[string][]string{
	"en": {
		"Hello, can you hear me?",
		"I'm testing the real-time translation system.",
		"This is a demonstration of multilingual capabilities.",
		"The weather today is quite nice.",
		"Let me share my screen to show you the presentation.",
		"Could everyone please mute their microphones?",
		"I'll be interpreting this meeting for our international colleagues.",
	},
	"zh": {
		"你好，你能听到我说话吗？",
		"我正在测试实时翻译系统。",
		"这是多语言功能的演示。",
		"今天的天气很好。",
		"让我分享我的屏幕来展示演示文稿。",
		"请大家将麦克风静音好吗？",
		"我将为我们的国际同事翻译这次会议。",
	},
	"ko": {
		"안녕하세요, 내 말이 들리나요?",
		"실시간 번역 시스템을 테스트하고 있습니다.",
		"이것은 다국어 기능의 데모입니다.",
		"오늘 날씨가 꽤 좋네요.",
		"화면을 공유해서 프레젠테이션을 보여 드리겠습니다.",
		"모든 분들이 마이크를 음소거해 주시겠어요?",
		"저는 우리 국제 동료들을 위해 이 회의를 통역할 것입니다.",
	},
	"ja": {
		"こんにちは、聞こえますか？",
		"リアルタイム翻訳システムをテストしています。",
		"これは多言語機能のデモンストレーションです。",
		"今日の天気はとても良いです。",
		"画面を共有してプレゼンテーションをお見せします。",
		"皆さん、マイクをミュートにしていただけますか？",
		"国際的な同僚のためにこの会議を通訳します。",
	},
}

// speakers is the language rotation used when no language is forced.
var speakers = []string{"en", "zh", "ko", "ja"}

// ScriptedRecognizer answers every chunk from a fixed phrase table. The
// answer depends only on the chunk sequence, so results are reproducible
// regardless of completion order.
type ScriptedRecognizer struct {
	script []Recognition
}

// NewScriptedRecognizer returns a recognizer cycling through the built-in
// meeting phrases. In auto mode the speaker language rotates after each full
// pass over the phrase list.
func NewScriptedRecognizer() *ScriptedRecognizer {
	return &ScriptedRecognizer{}
}

// NewScriptedRecognizerFrom replays script, indexed by chunk sequence.
func NewScriptedRecognizerFrom(script ...Recognition) *ScriptedRecognizer {
	return &ScriptedRecognizer{script: script}
}

func (r *ScriptedRecognizer) Transcribe(ctx context.Context, chunk capture.Chunk, lang string) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, NewRecognitionError(chunk.Seq, err)
	}
	if chunk.Seq == 0 {
		return Recognition{IsFinal: true}, nil
	}
	i := int(chunk.Seq - 1)

	if len(r.script) > 0 {
		return r.script[i%len(r.script)], nil
	}

	if _, ok := phrases[lang]; !ok {
		lang = speakers[(i/len(phrases["en"]))%len(speakers)]
	}
	table := phrases[lang]
	return Recognition{
		Text:       table[i%len(table)],
		Confidence: 0.95,
		Language:   lang,
		IsFinal:    true,
	}, nil
}
