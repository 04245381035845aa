// Package genai provides GenAI-enhanced operations using the OpenAI API.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/DietCoach/internal/models"
)

// Errors returned by the GenAI client.
var (
	// ErrAPIKeyNotSet indicates no API key was provided via options or environment.
	ErrAPIKeyNotSet = errors.New("OPENAI_API_KEY not set")
	// ErrNoChoicesReturned indicates the API returned an empty choice list.
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// Default generation parameters used when a request does not override them.
const (
	// DefaultModel is the chat model used unless WithModel overrides it.
	DefaultModel = "gpt-4o-mini"

	defaultTemperature = 0.7
	defaultMaxTokens   = 500
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openAIChatService adapts the OpenAI SDK completion service to chatService.
type openAIChatService struct {
	client openai.Client
}

func (s openAIChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Options control a single completion request. Nil fields fall back to the
// client defaults, so callers only set what they need to pin down.
type Options struct {
	Temperature *float64
	MaxTokens   *int64
	Tools       []openai.ChatCompletionToolParam
	// ToolChoice forces the model to call the named function. Empty leaves
	// the choice to the model.
	ToolChoice string
}

// Float returns a pointer to f for use in Options.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to n for use in Options.
func Int(n int64) *int64 { return &n }

// ToolCallResponse carries the assistant content and any tool calls produced
// by a single completion.
type ToolCallResponse struct {
	Content   string
	ToolCalls []models.ToolCall
}

// ClientInterface abstracts the GenAI client so flows can be tested with mocks.
type ClientInterface interface {
	GeneratePrompt(systemPrompt, userPrompt string) (string, error)
	GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error)
	GenerateWithOptions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts Options) (*ToolCallResponse, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int64
	debugMode   bool
	stateDir    string
}

// Option configures the client during construction.
type Option func(*clientConfig)

type clientConfig struct {
	apiKey    string
	model     string
	debugMode bool
	stateDir  string
}

// WithAPIKey sets the OpenAI API key, overriding the OPENAI_API_KEY
// environment variable.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// WithModel sets the chat model used for all requests.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithDebugLogging enables request/response dumps under stateDir/debug.
func WithDebugLogging(stateDir string) Option {
	return func(c *clientConfig) {
		c.debugMode = true
		c.stateDir = stateDir
	}
}

// NewClient initializes a GenAI client. The API key comes from WithAPIKey or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := clientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.model == "" {
		cfg.model = DefaultModel
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.apiKey))
	slog.Debug("Client.NewClient: initialized GenAI client", "model", cfg.model, "debugMode", cfg.debugMode)
	return &Client{
		chat:        openAIChatService{client: cli},
		model:       cfg.model,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		debugMode:   cfg.debugMode,
		stateDir:    cfg.stateDir,
	}, nil
}

// GeneratePrompt generates a response from a system and user prompt pair.
func (c *Client) GeneratePrompt(systemPrompt, userPrompt string) (string, error) {
	return c.GeneratePromptWithContext(context.Background(), systemPrompt, userPrompt)
}

// GeneratePromptWithContext generates a response from a system and user prompt
// pair, honoring the provided context.
func (c *Client) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	params := c.baseParams(messages)
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	c.logDebug("GeneratePromptWithContext", params, resp)
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateWithMessages generates a response for a full message history.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := c.baseParams(messages)
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	c.logDebug("GenerateWithMessages", params, resp)
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateWithTools generates a response that may include tool calls.
func (c *Client) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error) {
	return c.GenerateWithOptions(ctx, messages, Options{Tools: tools})
}

// GenerateWithOptions generates a response with per-request overrides for
// temperature, token limit, tool availability, and forced tool choice.
func (c *Client) GenerateWithOptions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts Options) (*ToolCallResponse, error) {
	params := c.baseParams(messages)
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = openai.Int(*opts.MaxTokens)
	}
	if len(opts.Tools) > 0 {
		params.Tools = opts.Tools
		if opts.ToolChoice != "" {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
					Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
						Name: opts.ToolChoice,
					},
				},
			}
		}
	}

	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	c.logDebug("GenerateWithOptions", params, resp)
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesReturned
	}

	msg := resp.Choices[0].Message
	result := &ToolCallResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: models.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			},
		})
	}
	slog.Debug("Client.GenerateWithOptions: completion received", "toolCalls", len(result.ToolCalls), "contentLen", len(result.Content))
	return result, nil
}

func (c *Client) baseParams(messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	}
}

// logDebug writes the request and response to a timestamped JSON file under
// stateDir/debug when debug mode is enabled. Writes happen asynchronously so
// API latency is unaffected.
func (c *Client) logDebug(method string, params openai.ChatCompletionNewParams, resp openai.ChatCompletion) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"method":    method,
		"model":     c.model,
		"params":    params,
		"response":  resp,
	}
	go func() {
		debugDir := filepath.Join(c.stateDir, "debug")
		if err := os.MkdirAll(debugDir, 0755); err != nil {
			slog.Warn("Client.logDebug: failed to create debug directory", "dir", debugDir, "error", err)
			return
		}
		data, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			slog.Warn("Client.logDebug: failed to marshal debug entry", "method", method, "error", err)
			return
		}
		name := fmt.Sprintf("%s_%s.json", time.Now().UTC().Format("20060102_150405.000000000"), method)
		if err := os.WriteFile(filepath.Join(debugDir, name), data, 0644); err != nil {
			slog.Warn("Client.logDebug: failed to write debug file", "file", name, "error", err)
		}
	}()
}
