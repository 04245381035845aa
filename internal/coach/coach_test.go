package coach

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/DietCoach/internal/genai"
	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/store"
)

// testNow is the fixed clock for pipeline tests. 12:30 falls in the lunch
// window, so undated tool calls land on 2025-06-15 lunch.
var testNow = time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)

// scriptedGenAI replays queued completion responses in call order and records
// every request so tests can assert on messages and options.
type scriptedGenAI struct {
	responses []*genai.ToolCallResponse
	errs      []error
	calls     []recordedCall
}

type recordedCall struct {
	messages []openai.ChatCompletionMessageParamUnion
	opts     genai.Options
}

func (s *scriptedGenAI) GeneratePrompt(systemPrompt, userPrompt string) (string, error) {
	return "", nil
}

func (s *scriptedGenAI) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", nil
}

func (s *scriptedGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := s.GenerateWithOptions(ctx, messages, genai.Options{})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (s *scriptedGenAI) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	return s.GenerateWithOptions(ctx, messages, genai.Options{Tools: tools})
}

func (s *scriptedGenAI) GenerateWithOptions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts genai.Options) (*genai.ToolCallResponse, error) {
	idx := len(s.calls)
	s.calls = append(s.calls, recordedCall{messages: messages, opts: opts})
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx < len(s.responses) && s.responses[idx] != nil {
		return s.responses[idx], nil
	}
	return &genai.ToolCallResponse{Content: "ok"}, nil
}

// spyStore counts meal list lookups so tests can tell whether context
// assembly ran.
type spyStore struct {
	store.Store
	listMealsCalls int
}

func (s *spyStore) ListMeals(userID, date string) ([]models.Meal, error) {
	s.listMealsCalls++
	return s.Store.ListMeals(userID, date)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(filepath.Join(t.TempDir(), "coach.db")))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestService(ai genai.ClientInterface, st store.Store) *Service {
	svc := NewService(ai, st)
	svc.now = func() time.Time { return testNow }
	return svc
}

func testToolCall(id, name, args string) models.ToolCall {
	return models.ToolCall{
		ID:   id,
		Type: "function",
		Function: models.FunctionCall{
			Name:      name,
			Arguments: json.RawMessage(args),
		},
	}
}

func messagesJSON(t *testing.T, msgs []openai.ChatCompletionMessageParamUnion) string {
	t.Helper()
	data, err := json.Marshal(msgs)
	if err != nil {
		t.Fatalf("failed to marshal messages: %v", err)
	}
	return string(data)
}

func TestProcessMessageChatIntent(t *testing.T) {
	spy := &spyStore{Store: newTestStore(t)}
	ai := &scriptedGenAI{
		responses: []*genai.ToolCallResponse{
			{Content: "chat"},
			{Content: "안녕하세요! 오늘도 화이팅이에요!"},
		},
	}
	svc := newTestService(ai, spy)

	reply, err := svc.ProcessMessage(context.Background(), "user1", "안녕!", models.PersonaBright)
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if reply.Message != "안녕하세요! 오늘도 화이팅이에요!" {
		t.Errorf("Expected primary response, got %q", reply.Message)
	}
	if reply.Intent != models.IntentChat {
		t.Errorf("Expected chat intent, got %q", reply.Intent)
	}
	if len(reply.ActionResults) != 0 {
		t.Errorf("Expected no action results, got %v", reply.ActionResults)
	}

	if len(ai.calls) != 2 {
		t.Fatalf("Expected 2 AI calls (classify, primary), got %d", len(ai.calls))
	}
	primary := ai.calls[1]
	if primary.opts.MaxTokens == nil || *primary.opts.MaxTokens != chatMaxTokens {
		t.Errorf("Expected chat token budget %d, got %v", chatMaxTokens, primary.opts.MaxTokens)
	}
	if len(primary.opts.Tools) != 0 {
		t.Errorf("Expected no tools for chat intent, got %d", len(primary.opts.Tools))
	}
	if primary.opts.ToolChoice != "" {
		t.Errorf("Expected no forced tool choice, got %q", primary.opts.ToolChoice)
	}
	if !strings.Contains(messagesJSON(t, primary.messages), "너는 밝은 다이어트 코치야") {
		t.Error("Expected bright persona voice in the system prompt")
	}

	// Small talk must not trigger context lookups.
	if spy.listMealsCalls != 0 {
		t.Errorf("Expected no meal lookups for chat intent, got %d", spy.listMealsCalls)
	}

	history, err := svc.History("user1", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected both turns persisted, got %d messages", len(history))
	}
	if history[0].Role != models.ChatRoleUser || history[0].Content != "안녕!" {
		t.Errorf("Unexpected user turn: %+v", history[0])
	}
	if history[1].Role != models.ChatRoleAssistant || history[1].Content != reply.Message {
		t.Errorf("Unexpected assistant turn: %+v", history[1])
	}
}

func TestProcessMessageStatsIntentUsesContextOnly(t *testing.T) {
	spy := &spyStore{Store: newTestStore(t)}
	ai := &scriptedGenAI{
		responses: []*genai.ToolCallResponse{
			{Content: "stats"},
			{Content: "오늘 750kcal 먹었어!"},
		},
	}
	svc := newTestService(ai, spy)

	reply, err := svc.ProcessMessage(context.Background(), "user1", "오늘 몇 칼로리야?", models.PersonaBright)
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if reply.Intent != models.IntentStats {
		t.Errorf("Expected stats intent, got %q", reply.Intent)
	}

	primary := ai.calls[1]
	if len(primary.opts.Tools) != 0 {
		t.Errorf("Expected no tools for stats intent, got %d", len(primary.opts.Tools))
	}
	if primary.opts.MaxTokens == nil || *primary.opts.MaxTokens != primaryMaxTokens {
		t.Errorf("Expected primary token budget %d, got %v", primaryMaxTokens, primary.opts.MaxTokens)
	}
	if spy.listMealsCalls == 0 {
		t.Error("Expected context assembly to query meals for stats intent")
	}
}

func TestProcessMessageLogIntentExecutesToolCall(t *testing.T) {
	st := newTestStore(t)
	args := `{"meal_type":"lunch","foods":[{"name":"김치찌개","calories":450,"protein":20,"carbs":30,"fat":15}]}`
	ai := &scriptedGenAI{
		responses: []*genai.ToolCallResponse{
			{Content: "log"},
			{ToolCalls: []models.ToolCall{testToolCall("call_1", models.ToolLogMeal, args)}},
			{Content: "김치찌개 450kcal 기록했어요! 맛있게 드셨죠?"},
		},
	}
	svc := newTestService(ai, st)

	reply, err := svc.ProcessMessage(context.Background(), "user1", "김치찌개 먹었어", models.PersonaBright)
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if reply.Intent != models.IntentLog {
		t.Errorf("Expected log intent, got %q", reply.Intent)
	}
	if reply.Message != "김치찌개 450kcal 기록했어요! 맛있게 드셨죠?" {
		t.Errorf("Expected follow-up response, got %q", reply.Message)
	}
	want := []string{"김치찌개 (450kcal) 기록 완료"}
	if !reflect.DeepEqual(reply.ActionResults, want) {
		t.Errorf("Expected action results %v, got %v", want, reply.ActionResults)
	}

	if len(ai.calls) != 3 {
		t.Fatalf("Expected 3 AI calls (classify, primary, follow-up), got %d", len(ai.calls))
	}
	primary := ai.calls[1]
	if len(primary.opts.Tools) != 1 {
		t.Errorf("Expected only log_meal for log intent, got %d tools", len(primary.opts.Tools))
	}
	followUp := ai.calls[2]
	if len(followUp.opts.Tools) != 0 {
		t.Errorf("Expected no tools on the follow-up pass, got %d", len(followUp.opts.Tools))
	}
	if followUp.opts.MaxTokens == nil || *followUp.opts.MaxTokens != followUpMaxTokens {
		t.Errorf("Expected follow-up token budget %d, got %v", followUpMaxTokens, followUp.opts.MaxTokens)
	}
	// system + user + assistant tool-call turn + one tool result.
	if len(followUp.messages) != 4 {
		t.Errorf("Expected 4 follow-up messages, got %d", len(followUp.messages))
	}

	meal, err := st.GetMeal("user1", "2025-06-15", models.MealTypeLunch)
	if err != nil {
		t.Fatalf("GetMeal failed: %v", err)
	}
	if meal == nil {
		t.Fatal("Expected the meal to be persisted")
	}
	if meal.TotalCalories != 450 || len(meal.Items) != 1 || meal.Items[0].Name != "김치찌개" {
		t.Errorf("Unexpected persisted meal: %+v", meal)
	}
	if meal.Items[0].Quantity != 1 {
		t.Errorf("Expected default quantity 1, got %g", meal.Items[0].Quantity)
	}
}

func TestProcessMessageSkipsDuplicateToolCalls(t *testing.T) {
	st := newTestStore(t)
	apple := `{"meal_type":"lunch","foods":[{"name":"사과","calories":95}]}`
	banana := `{"meal_type":"lunch","foods":[{"name":"바나나","calories":105}]}`
	ai := &scriptedGenAI{
		responses: []*genai.ToolCallResponse{
			{Content: "log"},
			{ToolCalls: []models.ToolCall{
				testToolCall("call_1", models.ToolLogMeal, apple),
				testToolCall("call_2", models.ToolLogMeal, apple),
				testToolCall("call_3", models.ToolLogMeal, banana),
			}},
			{Content: "둘 다 기록했어요!"},
		},
	}
	svc := newTestService(ai, st)

	reply, err := svc.ProcessMessage(context.Background(), "user1", "사과랑 바나나 먹었어", models.PersonaBright)
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	want := []string{
		"사과 (95kcal) 기록 완료",
		duplicateCallResult,
		"바나나 (105kcal) 기록 완료",
	}
	if !reflect.DeepEqual(reply.ActionResults, want) {
		t.Errorf("Expected action results %v, got %v", want, reply.ActionResults)
	}

	meal, err := st.GetMeal("user1", "2025-06-15", models.MealTypeLunch)
	if err != nil {
		t.Fatalf("GetMeal failed: %v", err)
	}
	if meal == nil || len(meal.Items) != 2 || meal.TotalCalories != 200 {
		t.Errorf("Expected two items totaling 200kcal, got %+v", meal)
	}
}

func TestProcessMessageQueryForcesGetMeals(t *testing.T) {
	st := newTestStore(t)
	if err := st.SaveMeal(models.Meal{
		UserID:        "user1",
		Date:          "2025-06-15",
		MealType:      models.MealTypeLunch,
		Items:         []models.FoodItem{{Name: "김치찌개", Quantity: 1, Calories: 450}},
		TotalCalories: 450,
	}); err != nil {
		t.Fatalf("SaveMeal failed: %v", err)
	}

	ai := &scriptedGenAI{
		responses: []*genai.ToolCallResponse{
			{Content: "query"},
			{ToolCalls: []models.ToolCall{testToolCall("call_1", models.ToolGetMeals, `{}`)}},
			{Content: "오늘 점심은 김치찌개였네요!"},
		},
	}
	svc := newTestService(ai, st)

	reply, err := svc.ProcessMessage(context.Background(), "user1", "오늘 뭐 먹었지?", models.PersonaBright)
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if reply.Message != "오늘 점심은 김치찌개였네요!" {
		t.Errorf("Expected follow-up response, got %q", reply.Message)
	}

	primary := ai.calls[1]
	if primary.opts.ToolChoice != models.ToolGetMeals {
		t.Errorf("Expected forced get_meals tool choice, got %q", primary.opts.ToolChoice)
	}
	if len(primary.opts.Tools) != 1 {
		t.Errorf("Expected only get_meals for query intent, got %d tools", len(primary.opts.Tools))
	}

	wantResult := "2025-06-15 식단:\n점심: 김치찌개 (450kcal)\n총 450kcal"
	if len(reply.ActionResults) != 1 || reply.ActionResults[0] != wantResult {
		t.Errorf("Expected action result %q, got %v", wantResult, reply.ActionResults)
	}
}

func TestProcessMessageFallbackOnModelFailure(t *testing.T) {
	st := newTestStore(t)
	ai := &scriptedGenAI{
		responses: []*genai.ToolCallResponse{{Content: "chat"}, nil},
		errs:      []error{nil, errors.New("api down")},
	}
	svc := newTestService(ai, st)

	reply, err := svc.ProcessMessage(context.Background(), "user1", "안녕", models.PersonaBright)
	if err != nil {
		t.Fatalf("ProcessMessage should degrade, not fail: %v", err)
	}
	if reply.Message != fallbackMessage {
		t.Errorf("Expected fallback message %q, got %q", fallbackMessage, reply.Message)
	}

	history, err := svc.History("user1", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected both turns persisted despite failure, got %d", len(history))
	}
	if history[1].Content != fallbackMessage {
		t.Errorf("Expected fallback persisted as assistant turn, got %q", history[1].Content)
	}
}

func TestProcessMessageJoinsResultsWhenFollowUpEmpty(t *testing.T) {
	st := newTestStore(t)
	args := `{"meal_type":"lunch","foods":[{"name":"사과","calories":95}]}`
	ai := &scriptedGenAI{
		responses: []*genai.ToolCallResponse{
			{Content: "log"},
			{ToolCalls: []models.ToolCall{testToolCall("call_1", models.ToolLogMeal, args)}},
			{Content: ""},
		},
	}
	svc := newTestService(ai, st)

	reply, err := svc.ProcessMessage(context.Background(), "user1", "사과 먹었어", models.PersonaBright)
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if reply.Message != "사과 (95kcal) 기록 완료" {
		t.Errorf("Expected joined tool results as reply, got %q", reply.Message)
	}
	if len(ai.calls) != 3 {
		t.Errorf("Expected the follow-up to be attempted, got %d AI calls", len(ai.calls))
	}
}

func TestProcessMessageFailsWhenUserTurnNotSaved(t *testing.T) {
	st := newTestStore(t)
	st.Close()
	ai := &scriptedGenAI{}
	svc := newTestService(ai, st)

	_, err := svc.ProcessMessage(context.Background(), "user1", "안녕", models.PersonaBright)
	if err == nil {
		t.Fatal("Expected error when the user turn cannot be persisted")
	}
	if len(ai.calls) != 0 {
		t.Errorf("Expected no AI calls after persistence failure, got %d", len(ai.calls))
	}
}

func TestHistoryAndClearHistory(t *testing.T) {
	st := newTestStore(t)
	svc := newTestService(&scriptedGenAI{}, st)

	base := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	for i, content := range []string{"첫 번째", "두 번째", "세 번째"} {
		if err := st.SaveChatMessage(models.ChatMessage{
			UserID:    "user1",
			Role:      models.ChatRoleUser,
			Content:   content,
			Channel:   models.ChannelDiet,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("SaveChatMessage failed: %v", err)
		}
	}
	if err := st.SaveChatMessage(models.ChatMessage{
		UserID:  "user1",
		Role:    models.ChatRoleUser,
		Content: "약 질문",
		Channel: models.ChannelMedication,
	}); err != nil {
		t.Fatalf("SaveChatMessage failed: %v", err)
	}

	history, err := svc.History("user1", 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history))
	}
	if history[0].Content != "두 번째" || history[1].Content != "세 번째" {
		t.Errorf("Expected newest two in chronological order, got %q then %q", history[0].Content, history[1].Content)
	}

	if err := svc.ClearHistory("user1"); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	history, err = svc.History("user1", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected diet history cleared, got %d messages", len(history))
	}

	// The medication channel is untouched.
	medHistory, err := st.ListChatMessages("user1", models.ChannelMedication, 10)
	if err != nil {
		t.Fatalf("ListChatMessages failed: %v", err)
	}
	if len(medHistory) != 1 {
		t.Errorf("Expected medication history preserved, got %d messages", len(medHistory))
	}
}
