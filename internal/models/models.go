// Package models defines the core data structures for DietCoach.
//
// It includes types for chat messages, intents, personas, and the API
// response envelope, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Intent is the discrete category a user message is classified into.
// It determines which system prompt is built and which tools are exposed.
type Intent string

const (
	// IntentLog records food the user reports having eaten.
	IntentLog Intent = "log"
	// IntentQuery retrieves logged meals for a date.
	IntentQuery Intent = "query"
	// IntentStats answers numeric calorie/weight questions.
	IntentStats Intent = "stats"
	// IntentModify edits or deletes existing meal records.
	IntentModify Intent = "modify"
	// IntentAnalyze evaluates the user's intake and gives feedback.
	IntentAnalyze Intent = "analyze"
	// IntentChat covers greetings and general conversation.
	IntentChat Intent = "chat"
)

// IsValidIntent checks if the given intent is supported.
func IsValidIntent(i Intent) bool {
	switch i {
	case IntentLog, IntentQuery, IntentStats, IntentModify, IntentAnalyze, IntentChat:
		return true
	default:
		return false
	}
}

// CoachPersona identifies the voice style applied to generated responses.
type CoachPersona string

const (
	// PersonaCold is the factual, no-frills coach voice.
	PersonaCold CoachPersona = "cold"
	// PersonaBright is the upbeat, supportive coach voice.
	PersonaBright CoachPersona = "bright"
	// PersonaStrict is the direct, demanding coach voice.
	PersonaStrict CoachPersona = "strict"
)

// DefaultPersona is used when a request omits the persona or names an unknown one.
const DefaultPersona = PersonaBright

// IsValidPersona checks if the given coach persona is supported.
func IsValidPersona(p CoachPersona) bool {
	switch p {
	case PersonaCold, PersonaBright, PersonaStrict:
		return true
	default:
		return false
	}
}

// TrendDirection classifies the movement of a weight series.
type TrendDirection string

const (
	// TrendUp means weight increased beyond the noise threshold.
	TrendUp TrendDirection = "up"
	// TrendDown means weight decreased beyond the noise threshold.
	TrendDown TrendDirection = "down"
	// TrendStable means weight stayed within the noise threshold.
	TrendStable TrendDirection = "stable"
	// TrendUnknown means there were not enough samples to tell.
	TrendUnknown TrendDirection = "unknown"
)

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	// ChatRoleUser marks a message written by the user.
	ChatRoleUser ChatRole = "user"
	// ChatRoleAssistant marks a message produced by the coach.
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatChannel partitions independent conversation histories.
type ChatChannel string

const (
	// ChannelDiet is the diet-coaching conversation surface.
	ChannelDiet ChatChannel = "diet"
	// ChannelMedication is the medication Q&A conversation surface.
	ChannelMedication ChatChannel = "medication"
)

// IsValidChannel checks if the given chat channel is supported.
func IsValidChannel(c ChatChannel) bool {
	switch c {
	case ChannelDiet, ChannelMedication:
		return true
	default:
		return false
	}
}

// Validation constants for input validation
const (
	// MaxChatContentLength defines the maximum allowed length for a chat message body
	MaxChatContentLength = 4096
	// DefaultHistoryLimit defines how many messages a history request returns by default
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps how many messages a history request may return
	MaxHistoryLimit = 200
)

// Error variables for better error handling and testability
var (
	ErrEmptyContent       = errors.New("content cannot be empty")
	ErrContentTooLong     = errors.New("content exceeds maximum length")
	ErrInvalidPersona     = errors.New("invalid coach persona")
	ErrInvalidIntent      = errors.New("invalid intent")
	ErrInvalidChannel     = errors.New("invalid chat channel")
	ErrEmptyUserID        = errors.New("user id cannot be empty")
	ErrEmptyQuery         = errors.New("query cannot be empty")
	ErrInvalidMealType    = errors.New("invalid meal type")
	ErrEmptyFoods         = errors.New("foods cannot be empty")
	ErrEmptyFoodName      = errors.New("food name cannot be empty")
	ErrMissingOldFoodName = errors.New("old_food_name is required")
	ErrMissingNewFood     = errors.New("new_food is required")
)

// ChatMessage is one persisted conversational turn.
type ChatMessage struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Role      ChatRole    `json:"role"`
	Content   string      `json:"content"`
	Channel   ChatChannel `json:"chat_type"` // conversation surface this turn belongs to
	CreatedAt time.Time   `json:"created_at"`
}

// ChatMessageRequest is the payload for sending a diet chat message.
type ChatMessageRequest struct {
	Content string       `json:"content"`
	Persona CoachPersona `json:"persona,omitempty"` // defaults to bright
}

// Validate checks a chat message request before processing.
func (r *ChatMessageRequest) Validate() error {
	if r.Content == "" {
		return ErrEmptyContent
	}
	if len(r.Content) > MaxChatContentLength {
		return ErrContentTooLong
	}
	if r.Persona != "" && !IsValidPersona(r.Persona) {
		return ErrInvalidPersona
	}
	return nil
}

// ChatReply is the orchestrator's result for one processed message.
type ChatReply struct {
	Message       string   `json:"message"`
	Intent        Intent   `json:"intent"`
	ActionResults []string `json:"action_results,omitempty"` // tool result messages, in call order
}

// MedicationAskRequest is the payload for a medication question.
type MedicationAskRequest struct {
	Query                string `json:"query"`
	IncludeHealthContext bool   `json:"include_health_context"`
}

// Validate checks a medication question request before processing.
func (r *MedicationAskRequest) Validate() error {
	if r.Query == "" {
		return ErrEmptyQuery
	}
	if len(r.Query) > MaxChatContentLength {
		return ErrContentTooLong
	}
	return nil
}

// MedicationAnswer is the medication module's result for one question.
type MedicationAnswer struct {
	Response    string   `json:"response"`
	IsEmergency bool     `json:"is_emergency"`
	Sources     []string `json:"sources"`
}

// ChatHistory wraps a page of chat messages for API responses.
type ChatHistory struct {
	Messages []ChatMessage `json:"messages"`
	Total    int           `json:"total"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Convenience functions for common response patterns

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
