// Package coach implements the conversational diet-coaching pipeline: intent
// classification, context assembly, prompt building, tool execution, and
// response orchestration.
package coach

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/DietCoach/internal/genai"
	"github.com/BTreeMap/DietCoach/internal/models"
)

// Classification call parameters. The classifier needs a single lowercase
// word, so the token budget is tiny and sampling is disabled.
const (
	classifierTemperature = 0.0
	classifierMaxTokens   = 10
)

// classifierPrompt instructs the model to emit exactly one intent word.
const classifierPrompt = `사용자 메시지를 6가지 중 하나로 분류. 영어 소문자 한 단어만 응답.

[분류 기준]
- log: 음식을 먹었다는 보고 ("~먹었어", "~먹음", "~섭취")
- query: 구체적 식단 조회 ("뭐 먹었지?", "아침에 뭐 먹었어?", "오늘 식단")
- stats: 칼로리/체중 수치 질문 ("칼로리 얼마?", "체중 어때?", "얼마나 먹었어?", "몇 칼로리?")
- modify: 기록 수정/삭제 ("삭제", "지워", "바꿔", "대신", "수정")
- analyze: 식단 평가/추천 요청 ("잘 먹었어?", "뭐 먹을까?", "어때?", "평가해줘")
- chat: 인사, 감정, 일반 대화 ("안녕", "힘들어", "고마워")

[핵심 구분 - 중요!]
- "뭐 먹었어?" → query (음식 목록 조회)
- "얼마나 먹었어?", "칼로리 얼마?" → stats (수치/통계)
- "체중 어때?", "체중 변화" → stats (수치/통계)
- "잘 먹었어?", "평가해줘" → analyze (평가/피드백)

예시:
"치킨 먹었어" → log
"오늘 뭐 먹었지?" → query
"아침에 뭐 먹었어?" → query
"최근 칼로리는?" → stats
"오늘 몇 칼로리야?" → stats
"체중 변화 어때?" → stats
"이번주 얼마나 먹었어?" → stats
"점심 삭제해줘" → modify
"오늘 잘 먹었어?" → analyze
"안녕" → chat`

// Classifier decides which intent a user message belongs to.
type Classifier struct {
	ai genai.ClientInterface
}

// NewClassifier creates a classifier backed by the given GenAI client.
func NewClassifier(ai genai.ClientInterface) *Classifier {
	return &Classifier{ai: ai}
}

// Classify returns the intent for a user message. Classification never fails
// the request: transport errors and unrecognized outputs fall back to chat.
func (c *Classifier) Classify(ctx context.Context, message string) models.Intent {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classifierPrompt),
		openai.UserMessage(message),
	}
	resp, err := c.ai.GenerateWithOptions(ctx, messages, genai.Options{
		Temperature: genai.Float(classifierTemperature),
		MaxTokens:   genai.Int(classifierMaxTokens),
	})
	if err != nil {
		slog.Warn("Classifier.Classify: classification call failed, defaulting to chat", "error", err)
		return models.IntentChat
	}

	intent := models.Intent(normalizeIntentWord(resp.Content))
	if !models.IsValidIntent(intent) {
		slog.Warn("Classifier.Classify: unrecognized intent output, defaulting to chat", "output", resp.Content)
		return models.IntentChat
	}
	return intent
}

// normalizeIntentWord reduces model output to a bare lowercase word.
func normalizeIntentWord(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, "\"'`.,! ")
}
