package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp openai.ChatCompletion
	err  error

	// lastParams records the most recent request for assertions.
	lastParams openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.lastParams = params
	return m.resp, m.err
}

func textResponse(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGeneratePrompt_Success(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: textResponse("Hello World")}, model: "test-model"}
	out, err := client.GeneratePrompt("system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}, model: "test-model"}
	_, err := client.GeneratePrompt("sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}, model: "test-model"}
	_, err := client.GeneratePrompt("sys", "usr")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("expected ErrAPIKeyNotSet when API key not provided, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance, got nil")
	}
	if cli.model != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, cli.model)
	}
}

func TestNewClient_WithModel(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cli.model != "gpt-4o" {
		t.Errorf("expected model 'gpt-4o', got %q", cli.model)
	}
}

func TestGenerateWithMessages_Success(t *testing.T) {
	mock := &mockChatService{resp: textResponse("ok")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.7, maxTokens: 100}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("sys"),
		openai.UserMessage("hello"),
	}
	out, err := client.GenerateWithMessages(context.Background(), messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected 'ok', got %q", out)
	}
	if len(mock.lastParams.Messages) != 2 {
		t.Errorf("expected 2 messages sent, got %d", len(mock.lastParams.Messages))
	}
}

func TestGenerateWithTools_MapsToolCalls(t *testing.T) {
	mock := &mockChatService{resp: openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Content: "logging your meal",
				ToolCalls: []openai.ChatCompletionMessageToolCall{
					{
						ID:   "call_1",
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      "log_meal",
							Arguments: `{"meal_type":"lunch"}`,
						},
					},
				},
			}},
		},
	}}
	client := &Client{chat: mock, model: "test-model", temperature: 0.7, maxTokens: 100}

	resp, err := client.GenerateWithTools(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")}, []openai.ChatCompletionToolParam{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "logging your meal" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Type != "function" {
		t.Errorf("unexpected tool call identity: %+v", tc)
	}
	if tc.Function.Name != "log_meal" {
		t.Errorf("expected function name 'log_meal', got %q", tc.Function.Name)
	}
	if string(tc.Function.Arguments) != `{"meal_type":"lunch"}` {
		t.Errorf("expected raw arguments preserved, got %s", tc.Function.Arguments)
	}
}

func TestGenerateWithOptions_Overrides(t *testing.T) {
	mock := &mockChatService{resp: textResponse("query")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.7, maxTokens: 500}

	opts := Options{Temperature: Float(0), MaxTokens: Int(10)}
	if _, err := client.GenerateWithOptions(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")}, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mock.lastParams.Temperature.Valid() || mock.lastParams.Temperature.Value != 0 {
		t.Errorf("expected temperature override 0, got %+v", mock.lastParams.Temperature)
	}
	if !mock.lastParams.MaxTokens.Valid() || mock.lastParams.MaxTokens.Value != 10 {
		t.Errorf("expected max tokens override 10, got %+v", mock.lastParams.MaxTokens)
	}
}

func TestGenerateWithOptions_ForcedToolChoice(t *testing.T) {
	mock := &mockChatService{resp: textResponse("")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.7, maxTokens: 500}

	tools := []openai.ChatCompletionToolParam{{Type: "function"}}
	opts := Options{Tools: tools, ToolChoice: "get_meals"}
	if _, err := client.GenerateWithOptions(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")}, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	named := mock.lastParams.ToolChoice.OfChatCompletionNamedToolChoice
	if named == nil {
		t.Fatal("expected named tool choice to be set")
	}
	if named.Function.Name != "get_meals" {
		t.Errorf("expected forced tool 'get_meals', got %q", named.Function.Name)
	}
	if len(mock.lastParams.Tools) != 1 {
		t.Errorf("expected tools forwarded, got %d", len(mock.lastParams.Tools))
	}
}

func TestGenerateWithOptions_NoToolChoiceWithoutTools(t *testing.T) {
	mock := &mockChatService{resp: textResponse("chat")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.7, maxTokens: 500}

	if _, err := client.GenerateWithOptions(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")}, Options{ToolChoice: "get_meals"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.lastParams.ToolChoice.OfChatCompletionNamedToolChoice != nil {
		t.Error("tool choice must not be set when no tools are offered")
	}
	if len(mock.lastParams.Tools) != 0 {
		t.Errorf("expected no tools, got %d", len(mock.lastParams.Tools))
	}
}
