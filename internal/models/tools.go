// Package models defines tool structures for LLM function calling.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tool names exposed to the LLM.
const (
	// ToolLogMeal records food items into a meal slot.
	ToolLogMeal = "log_meal"
	// ToolGetMeals retrieves logged meals for a date.
	ToolGetMeals = "get_meals"
	// ToolDeleteMeal removes a meal or a single food item.
	ToolDeleteMeal = "delete_meal"
	// ToolUpdateMeal replaces one food item with another.
	ToolUpdateMeal = "update_meal"
)

// MealTypeAll selects every meal type in a query.
const MealTypeAll = "all"

// FoodItemParams describes one food entry as the LLM reports it.
// Calories and macros are per serving; quantity scales them on execution.
type FoodItemParams struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity,omitempty"` // servings, defaults to 1
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// LogMealParams defines the parameters for the log_meal tool call.
type LogMealParams struct {
	MealType MealType         `json:"meal_type"`
	Foods    []FoodItemParams `json:"foods"`
	Date     string           `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
}

// Validate ensures the log_meal parameters are valid.
func (p *LogMealParams) Validate() error {
	if !IsValidMealType(p.MealType) {
		return fmt.Errorf("%w: %s", ErrInvalidMealType, p.MealType)
	}
	if len(p.Foods) == 0 {
		return ErrEmptyFoods
	}
	for _, f := range p.Foods {
		if f.Name == "" {
			return ErrEmptyFoodName
		}
	}
	if p.Date != "" {
		if err := validateDateFormat(p.Date); err != nil {
			return err
		}
	}
	return nil
}

// GetMealsParams defines the parameters for the get_meals tool call.
type GetMealsParams struct {
	Date     string `json:"date,omitempty"`      // YYYY-MM-DD, defaults to today
	MealType string `json:"meal_type,omitempty"` // meal type or "all", defaults to "all"
}

// Validate ensures the get_meals parameters are valid.
func (p *GetMealsParams) Validate() error {
	if p.MealType != "" && p.MealType != MealTypeAll && !IsValidMealType(MealType(p.MealType)) {
		return fmt.Errorf("%w: %s", ErrInvalidMealType, p.MealType)
	}
	if p.Date != "" {
		if err := validateDateFormat(p.Date); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMealParams defines the parameters for the delete_meal tool call.
type DeleteMealParams struct {
	Date     string   `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	MealType MealType `json:"meal_type"`
	FoodName string   `json:"food_name,omitempty"` // empty deletes the whole meal
}

// Validate ensures the delete_meal parameters are valid.
func (p *DeleteMealParams) Validate() error {
	if !IsValidMealType(p.MealType) {
		return fmt.Errorf("%w: %s", ErrInvalidMealType, p.MealType)
	}
	if p.Date != "" {
		if err := validateDateFormat(p.Date); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMealParams defines the parameters for the update_meal tool call.
type UpdateMealParams struct {
	Date        string          `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	MealType    MealType        `json:"meal_type"`
	OldFoodName string          `json:"old_food_name"`
	NewFood     *FoodItemParams `json:"new_food"`
}

// Validate ensures the update_meal parameters are valid.
func (p *UpdateMealParams) Validate() error {
	if !IsValidMealType(p.MealType) {
		return fmt.Errorf("%w: %s", ErrInvalidMealType, p.MealType)
	}
	if p.OldFoodName == "" {
		return ErrMissingOldFoodName
	}
	if p.NewFood == nil || p.NewFood.Name == "" {
		return ErrMissingNewFood
	}
	if p.Date != "" {
		if err := validateDateFormat(p.Date); err != nil {
			return err
		}
	}
	return nil
}

// validateDateFormat validates that a date string is in YYYY-MM-DD format.
func validateDateFormat(dateStr string) error {
	if _, err := time.Parse(DateLayout, dateStr); err != nil {
		return fmt.Errorf("date must be in YYYY-MM-DD format: %w", err)
	}
	return nil
}

// ToolCall represents an LLM tool function call.
type ToolCall struct {
	ID       string       `json:"id"`       // Tool call ID from OpenAI
	Type     string       `json:"type"`     // Always "function" for OpenAI
	Function FunctionCall `json:"function"` // Function details
}

// FunctionCall represents the function details within a tool call.
type FunctionCall struct {
	Name      string          `json:"name"`      // Function name (e.g., "log_meal")
	Arguments json.RawMessage `json:"arguments"` // JSON arguments as raw message
}

// ParseLogMealParams parses the arguments as LogMealParams.
func (fc *FunctionCall) ParseLogMealParams() (*LogMealParams, error) {
	if fc.Name != ToolLogMeal {
		return nil, fmt.Errorf("function name %s is not a log_meal function", fc.Name)
	}

	var params LogMealParams
	if err := json.Unmarshal(fc.Arguments, &params); err != nil {
		return nil, fmt.Errorf("failed to parse log_meal parameters: %w", err)
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid log_meal parameters: %w", err)
	}

	return &params, nil
}

// ParseGetMealsParams parses the arguments as GetMealsParams.
func (fc *FunctionCall) ParseGetMealsParams() (*GetMealsParams, error) {
	if fc.Name != ToolGetMeals {
		return nil, fmt.Errorf("function name %s is not a get_meals function", fc.Name)
	}

	var params GetMealsParams
	if err := json.Unmarshal(fc.Arguments, &params); err != nil {
		return nil, fmt.Errorf("failed to parse get_meals parameters: %w", err)
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid get_meals parameters: %w", err)
	}

	return &params, nil
}

// ParseDeleteMealParams parses the arguments as DeleteMealParams.
func (fc *FunctionCall) ParseDeleteMealParams() (*DeleteMealParams, error) {
	if fc.Name != ToolDeleteMeal {
		return nil, fmt.Errorf("function name %s is not a delete_meal function", fc.Name)
	}

	var params DeleteMealParams
	if err := json.Unmarshal(fc.Arguments, &params); err != nil {
		return nil, fmt.Errorf("failed to parse delete_meal parameters: %w", err)
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid delete_meal parameters: %w", err)
	}

	return &params, nil
}

// ParseUpdateMealParams parses the arguments as UpdateMealParams.
func (fc *FunctionCall) ParseUpdateMealParams() (*UpdateMealParams, error) {
	if fc.Name != ToolUpdateMeal {
		return nil, fmt.Errorf("function name %s is not an update_meal function", fc.Name)
	}

	var params UpdateMealParams
	if err := json.Unmarshal(fc.Arguments, &params); err != nil {
		return nil, fmt.Errorf("failed to parse update_meal parameters: %w", err)
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid update_meal parameters: %w", err)
	}

	return &params, nil
}

// ToolResult represents the result of executing a tool.
type ToolResult struct {
	ToolCallID string      `json:"tool_call_id"`    // ID of the tool call this responds to
	Success    bool        `json:"success"`         // Whether the tool execution succeeded
	Message    string      `json:"message"`         // Human-readable result message
	Error      string      `json:"error,omitempty"` // Error message if success is false
	Data       interface{} `json:"data,omitempty"`  // Additional data (e.g., retrieved meals)
}
