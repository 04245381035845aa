package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/DietCoach/internal/genai"
	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/store"
)

const (
	// chatMaxTokens keeps small-talk replies short; tool-bearing intents get
	// the larger primary budget.
	chatMaxTokens     = 150
	primaryMaxTokens  = 500
	followUpMaxTokens = 300

	pipelineTemperature = 0.7

	// duplicateCallResult is handed to the model when it repeats a tool call
	// with identical arguments inside one turn.
	duplicateCallResult = "(중복 호출 - 스킵됨)"

	// emptyToolResult substitutes for blank tool output so the follow-up
	// request never carries an empty tool message.
	emptyToolResult = "completed"

	// fallbackMessage is returned when no model output survives the pipeline.
	fallbackMessage = "응답을 생성할 수 없습니다."
)

// Service runs the conversational diet-coaching pipeline: classify the
// message, assemble user context, prompt the model with intent-scoped tools,
// execute requested actions, and persist both turns of the exchange.
type Service struct {
	ai         genai.ClientInterface
	store      store.Store
	classifier *Classifier
	assembler  *Assembler
	executor   *Executor
	now        func() time.Time
}

// NewService wires the pipeline stages over the given AI client and store.
func NewService(ai genai.ClientInterface, st store.Store) *Service {
	return &Service{
		ai:         ai,
		store:      st,
		classifier: NewClassifier(ai),
		assembler:  NewAssembler(st),
		executor:   NewExecutor(st),
		now:        time.Now,
	}
}

// ProcessMessage handles one user message end to end and returns the
// assistant reply. The user turn is persisted before any model work so a
// degraded pipeline never loses what the user said; a failed persist of the
// assistant turn is logged but does not void the reply.
func (s *Service) ProcessMessage(ctx context.Context, userID, content string, persona models.CoachPersona) (*models.ChatReply, error) {
	if err := s.store.SaveChatMessage(models.ChatMessage{
		UserID:  userID,
		Role:    models.ChatRoleUser,
		Content: content,
		Channel: models.ChannelDiet,
	}); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	now := s.now()
	intent := s.classifier.Classify(ctx, content)
	slog.Info("Service.ProcessMessage: intent classified", "userID", userID, "intent", intent)

	// Small talk skips the context lookups; the prompt only needs the date.
	var uc models.UserContext
	if intent == models.IntentChat {
		uc = models.UserContext{Today: now.Format(models.DateLayout)}
	} else {
		uc = s.assembler.Assemble(userID, now)
	}

	opts := genai.Options{
		Temperature: genai.Float(pipelineTemperature),
		MaxTokens:   genai.Int(primaryMaxTokens),
		Tools:       ToolsFor(intent),
	}
	if intent == models.IntentChat {
		opts.MaxTokens = genai.Int(chatMaxTokens)
	}
	if intent == models.IntentQuery {
		// Lookups must hit the store rather than let the model guess.
		opts.ToolChoice = models.ToolGetMeals
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(BuildSystemPrompt(persona, intent, uc)),
		openai.UserMessage(content),
	}

	assistant, actions := s.respond(ctx, userID, messages, opts, now)
	if assistant == "" {
		assistant = fallbackMessage
	}

	if err := s.store.SaveChatMessage(models.ChatMessage{
		UserID:  userID,
		Role:    models.ChatRoleAssistant,
		Content: assistant,
		Channel: models.ChannelDiet,
	}); err != nil {
		slog.Error("Service.ProcessMessage: failed to save assistant message", "userID", userID, "error", err)
	}

	return &models.ChatReply{
		Message:       assistant,
		Intent:        intent,
		ActionResults: actions,
	}, nil
}

// respond runs the primary completion, executes any tool calls, and
// synthesizes a follow-up when the primary turn carried no text. Returns the
// assistant text and the tool result messages in call order.
func (s *Service) respond(ctx context.Context, userID string, messages []openai.ChatCompletionMessageParamUnion, opts genai.Options, now time.Time) (string, []string) {
	resp, err := s.ai.GenerateWithOptions(ctx, messages, opts)
	if err != nil {
		slog.Error("Service.respond: primary completion failed", "userID", userID, "error", err)
		return "", nil
	}
	if len(resp.ToolCalls) == 0 {
		return resp.Content, nil
	}

	results, err := s.executeToolCalls(userID, resp.ToolCalls, now)
	if err != nil {
		slog.Error("Service.respond: tool execution failed", "userID", userID, "error", err)
		return "", nil
	}

	actions := make([]string, 0, len(results))
	for _, r := range results {
		actions = append(actions, r.Message)
	}

	assistant := resp.Content
	if assistant == "" {
		assistant = s.synthesizeFollowUp(ctx, messages, resp.ToolCalls, results)
	}
	if assistant == "" {
		// Last resort: surface the raw action outcomes.
		assistant = strings.Join(actions, "\n")
	}
	return assistant, actions
}

// executeToolCalls runs each call once, skipping exact repeats within the
// turn. A store transport error aborts the whole batch.
func (s *Service) executeToolCalls(userID string, calls []models.ToolCall, now time.Time) ([]models.ToolResult, error) {
	results := make([]models.ToolResult, 0, len(calls))
	processed := make(map[string]bool, len(calls))

	for _, call := range calls {
		key := call.Function.Name + ":" + string(call.Function.Arguments)
		if processed[key] {
			slog.Debug("Service.executeToolCalls: skipping duplicate call", "userID", userID, "tool", call.Function.Name)
			results = append(results, models.ToolResult{
				ToolCallID: call.ID,
				Success:    true,
				Message:    duplicateCallResult,
			})
			continue
		}
		processed[key] = true

		res, err := s.executor.Execute(userID, call, now)
		if err != nil {
			return nil, err
		}
		if res.Message == "" {
			res.Message = emptyToolResult
		}
		results = append(results, res)
	}
	return results, nil
}

// synthesizeFollowUp asks the model to narrate the tool outcomes. The
// assistant tool-call turn and one tool message per result are appended to
// the original exchange; no tools are offered on this pass.
func (s *Service) synthesizeFollowUp(ctx context.Context, base []openai.ChatCompletionMessageParamUnion, calls []models.ToolCall, results []models.ToolResult) string {
	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(calls))
	for i, tc := range calls {
		toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: string(tc.Function.Arguments),
			},
		}
	}
	assistantTurn := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(base)+1+len(results))
	messages = append(messages, base...)
	messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantTurn})
	for _, r := range results {
		messages = append(messages, openai.ToolMessage(r.Message, r.ToolCallID))
	}

	resp, err := s.ai.GenerateWithOptions(ctx, messages, genai.Options{
		Temperature: genai.Float(pipelineTemperature),
		MaxTokens:   genai.Int(followUpMaxTokens),
	})
	if err != nil {
		slog.Warn("Service.synthesizeFollowUp: completion failed", "error", err)
		return ""
	}
	return resp.Content
}

// History returns the diet-channel conversation in chronological order.
// limit falls back to the default page size and is capped at the maximum.
func (s *Service) History(userID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = models.DefaultHistoryLimit
	}
	if limit > models.MaxHistoryLimit {
		limit = models.MaxHistoryLimit
	}
	return s.store.ListChatMessages(userID, models.ChannelDiet, limit)
}

// ClearHistory deletes the user's diet-channel conversation.
func (s *Service) ClearHistory(userID string) error {
	return s.store.DeleteChatMessages(userID, models.ChannelDiet)
}
