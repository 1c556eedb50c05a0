package translator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var dictionary = map[string]map[string]string{
	"en-zh": {
		"This is a simulated English transcription.":                          "这是一个模拟的英语转录。",
		"Hello, can you hear me?":                                             "你好，你能听到我说话吗？",
		"I'm testing the real-time translation system.":                       "我正在测试实时翻译系统。",
		"This is a demonstration of multilingual capabilities.":               "这是多语言功能的演示。",
		"The weather today is quite nice.":                                    "今天的天气很好。",
		"Let me share my screen to show you the presentation.":                "让我分享我的屏幕来展示演示文稿。",
		"Could everyone please mute their microphones?":                       "请大家将麦克风静音好吗？",
		"I'll be interpreting this meeting for our international colleagues.": "我将为我们的国际同事翻译这次会议。",
		"Hello": "你好",
	},
	"en-ko": {
		"This is a simulated English transcription.":                          "이것은 시뮬레이션된 영어 필사입니다.",
		"Hello, can you hear me?":                                             "안녕하세요, 내 말이 들리나요?",
		"I'm testing the real-time translation system.":                       "실시간 번역 시스템을 테스트하고 있습니다.",
		"This is a demonstration of multilingual capabilities.":               "이것은 다국어 기능의 데모입니다.",
		"The weather today is quite nice.":                                    "오늘 날씨가 꽤 좋네요.",
		"Let me share my screen to show you the presentation.":                "화면을 공유해서 프레젠테이션을 보여 드리겠습니다.",
		"Could everyone please mute their microphones?":                       "모든 분들이 마이크를 음소거해 주시겠어요?",
		"I'll be interpreting this meeting for our international colleagues.": "저는 우리 국제 동료들을 위해 이 회의를 통역할 것입니다.",
	},
	"en-ja": {
		"This is a simulated English transcription.":                          "これはシミュレートされた英語の文字起こしです。",
		"Hello, can you hear me?":                                             "こんにちは、聞こえますか？",
		"I'm testing the real-time translation system.":                       "リアルタイム翻訳システムをテストしています。",
		"This is a demonstration of multilingual capabilities.":               "これは多言語機能のデモンストレーションです。",
		"The weather today is quite nice.":                                    "今日の天気はとても良いです。",
		"Let me share my screen to show you the presentation.":                "画面を共有してプレゼンテーションをお見せします。",
		"Could everyone please mute their microphones?":                       "皆さん、マイクをミュートにしていただけますか？",
		"I'll be interpreting this meeting for our international colleagues.": "国際的な同僚のためにこの会議を通訳します。",
	},
	"zh-en": {
		"这是一个模拟的中文转录。":  "This is a simulated Chinese transcription.",
		"你好，你能听到我说话吗？":  "Hello, can you hear me?",
		"我正在测试实时翻译系统。":  "I'm testing the real-time translation system.",
		"这是多语言功能的演示。":   "This is a demonstration of multilingual capabilities.",
		"今天的天气很好。":      "The weather today is quite nice.",
		"你好":            "Hello",
	},
	"ko-en": {
		"이것은 시뮬레이션된 한국어 필사입니다.": "This is a simulated Korean transcription.",
		"안녕하세요, 내 말이 들리나요?":     "Hello, can you hear me?",
		"실시간 번역 시스템을 테스트하고 있습니다.": "I'm testing the real-time translation system.",
		"이것은 다국어 기능의 데모입니다.":    "This is a demonstration of multilingual capabilities.",
		"오늘 날씨가 꽤 좋네요.":         "The weather today is quite nice.",
	},
	"ja-en": {
		"これはシミュレートされた日本語の文字起こしです。": "This is a simulated Japanese transcription.",
		"こんにちは、聞こえますか？":            "Hello, can you hear me?",
		"リアルタイム翻訳システムをテストしています。":   "I'm testing the real-time translation system.",
		"これは多言語機能のデモンストレーションです。":   "This is a demonstration of multilingual capabilities.",
		"今日の天気はとても良いです。":           "The weather today is quite nice.",
	},
}

var errInjected = errors.New("injected translation failure")

// ScriptedTranslator answers from a built-in meeting phrase dictionary and
// falls back to tagging the text with the target language.
type ScriptedTranslator struct {
	// Delay simulates service latency per request.
	Delay time.Duration

	mu       sync.Mutex
	failures map[string]int
	calls    int
}

func NewScriptedTranslator() *ScriptedTranslator {
	return &ScriptedTranslator{failures: make(map[string]int)}
}

// FailNext makes the next n requests for text fail.
func (t *ScriptedTranslator) FailNext(text string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[text] += n
}

// Calls returns the number of Translate calls made so far.
func (t *ScriptedTranslator) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *ScriptedTranslator) Translate(ctx context.Context, text, src, dst string) (string, error) {
	t.mu.Lock()
	t.calls++
	fail := t.failures[text] > 0
	if fail {
		t.failures[text]--
	}
	t.mu.Unlock()

	if t.Delay > 0 {
		select {
		case <-time.After(t.Delay):
		case <-ctx.Done():
			return "", NewTranslationError(src, dst, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return "", NewTranslationError(src, dst, err)
	}
	if fail {
		return "", NewTranslationError(src, dst, errInjected)
	}

	if src != "" && src == dst {
		return text, nil
	}
	if out, ok := lookup(text, src, dst); ok {
		return out, nil
	}
	return fmt.Sprintf("[%s] %s", dst, text), nil
}

func lookup(text, src, dst string) (string, bool) {
	if src != "" {
		out, ok := dictionary[src+"-"+dst][text]
		return out, ok
	}
	for _, from := range []string{"en", "zh", "ko", "ja"} {
		if out, ok := dictionary[from+"-"+dst][text]; ok {
			return out, true
		}
	}
	return "", false
}
