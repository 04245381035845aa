package coach

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/store"
)

// Executor runs validated tool calls against the store. Domain failures
// (malformed arguments, missing records) come back as failure ToolResults so
// the model can relay them; only store transport errors are returned as
// errors, which the orchestrator treats as fatal for the request.
type Executor struct {
	store store.Store
}

// NewExecutor creates an executor over the given store.
func NewExecutor(st store.Store) *Executor {
	return &Executor{store: st}
}

// Execute dispatches one tool call by name. now anchors date defaulting.
func (e *Executor) Execute(userID string, call models.ToolCall, now time.Time) (models.ToolResult, error) {
	switch call.Function.Name {
	case models.ToolLogMeal:
		params, err := call.Function.ParseLogMealParams()
		if err != nil {
			return malformedResult(call.ID, err), nil
		}
		return e.logMeal(userID, call.ID, params, now)
	case models.ToolGetMeals:
		params, err := call.Function.ParseGetMealsParams()
		if err != nil {
			return malformedResult(call.ID, err), nil
		}
		return e.getMeals(userID, call.ID, params, now)
	case models.ToolDeleteMeal:
		params, err := call.Function.ParseDeleteMealParams()
		if err != nil {
			return malformedResult(call.ID, err), nil
		}
		return e.deleteMeal(userID, call.ID, params, now)
	case models.ToolUpdateMeal:
		params, err := call.Function.ParseUpdateMealParams()
		if err != nil {
			return malformedResult(call.ID, err), nil
		}
		return e.updateMeal(userID, call.ID, params, now)
	default:
		return models.ToolResult{
			ToolCallID: call.ID,
			Success:    false,
			Message:    fmt.Sprintf("알 수 없는 도구: %s", call.Function.Name),
			Error:      fmt.Sprintf("unknown tool %q", call.Function.Name),
		}, nil
	}
}

// logMeal records foods into the (user, date, type) slot, appending to an
// existing meal. Foods whose names already appear in the slot are skipped.
func (e *Executor) logMeal(userID, callID string, p *models.LogMealParams, now time.Time) (models.ToolResult, error) {
	date := p.Date
	if date == "" {
		date = now.Format(models.DateLayout)
	}
	mealType := p.MealType
	if mealType == "" {
		mealType = models.InferMealType(now)
	}

	processed := scaleFoods(p.Foods)

	meal, err := e.store.GetMeal(userID, date, mealType)
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("log_meal lookup failed: %w", err)
	}

	if meal != nil {
		existing := make(map[string]bool, len(meal.Items))
		for _, item := range meal.Items {
			existing[strings.ToLower(item.Name)] = true
		}
		var newFoods []models.FoodItem
		for _, f := range processed {
			if !existing[strings.ToLower(f.Name)] {
				newFoods = append(newFoods, f)
			}
		}
		if len(newFoods) == 0 {
			return successResult(callID, fmt.Sprintf("%s은(는) 이미 기록되어 있어요!", foodNames(processed))), nil
		}

		newCalories := sumCalories(newFoods)
		meal.Items = append(meal.Items, newFoods...)
		meal.TotalCalories += newCalories
		if err := e.store.SaveMeal(*meal); err != nil {
			return models.ToolResult{}, fmt.Errorf("log_meal save failed: %w", err)
		}
		slog.Debug("Executor.logMeal: appended to existing meal", "userID", userID, "date", date, "mealType", mealType, "added", len(newFoods))
		return successResult(callID, fmt.Sprintf("%s (%dkcal) 기록 완료", foodNames(newFoods), newCalories)), nil
	}

	total := sumCalories(processed)
	newMeal := models.Meal{
		UserID:        userID,
		Date:          date,
		MealType:      mealType,
		Items:         processed,
		TotalCalories: total,
	}
	if err := e.store.SaveMeal(newMeal); err != nil {
		return models.ToolResult{}, fmt.Errorf("log_meal save failed: %w", err)
	}
	slog.Debug("Executor.logMeal: created meal", "userID", userID, "date", date, "mealType", mealType, "items", len(processed))
	return successResult(callID, fmt.Sprintf("%s (%dkcal) 기록 완료", foodNames(processed), total)), nil
}

// getMeals summarizes the meals for a date, optionally filtered by type.
func (e *Executor) getMeals(userID, callID string, p *models.GetMealsParams, now time.Time) (models.ToolResult, error) {
	date := p.Date
	if date == "" {
		date = now.Format(models.DateLayout)
	}
	mealType := p.MealType
	if mealType == "" {
		mealType = models.MealTypeAll
	}

	var meals []models.Meal
	if mealType == models.MealTypeAll {
		var err error
		meals, err = e.store.ListMeals(userID, date)
		if err != nil {
			return models.ToolResult{}, fmt.Errorf("get_meals query failed: %w", err)
		}
	} else {
		meal, err := e.store.GetMeal(userID, date, models.MealType(mealType))
		if err != nil {
			return models.ToolResult{}, fmt.Errorf("get_meals query failed: %w", err)
		}
		if meal != nil {
			meals = []models.Meal{*meal}
		}
	}

	if len(meals) == 0 {
		return successResult(callID, fmt.Sprintf("%s 식단 기록이 없습니다.", date)), nil
	}

	lines := make([]string, 0, len(meals))
	total := 0
	for _, meal := range meals {
		names := make([]string, 0, len(meal.Items))
		for _, item := range meal.Items {
			names = append(names, item.Name)
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%dkcal)", models.MealTypeLabel(meal.MealType), strings.Join(names, ", "), meal.TotalCalories))
		total += meal.TotalCalories
	}

	result := successResult(callID, fmt.Sprintf("%s 식단:\n%s\n총 %dkcal", date, strings.Join(lines, "\n"), total))
	result.Data = meals
	return result, nil
}

// deleteMeal removes a whole meal or one matched food item from it.
func (e *Executor) deleteMeal(userID, callID string, p *models.DeleteMealParams, now time.Time) (models.ToolResult, error) {
	date := p.Date
	if date == "" {
		date = now.Format(models.DateLayout)
	}

	meal, err := e.store.GetMeal(userID, date, p.MealType)
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("delete_meal lookup failed: %w", err)
	}
	if meal == nil {
		return failureResult(callID, fmt.Sprintf("%s %s 기록이 없습니다.", date, models.MealTypeLabel(p.MealType))), nil
	}

	if p.FoodName != "" {
		idx := findFoodIndex(meal.Items, p.FoodName)
		if idx < 0 {
			return failureResult(callID, fmt.Sprintf("%q을(를) 찾을 수 없습니다.", p.FoodName)), nil
		}
		removed := meal.Items[idx]

		// Removing the last item removes the meal record itself.
		if len(meal.Items) == 1 {
			if err := e.store.DeleteMeal(meal.ID); err != nil {
				return models.ToolResult{}, fmt.Errorf("delete_meal failed: %w", err)
			}
			slog.Debug("Executor.deleteMeal: removed last item and meal", "userID", userID, "date", date, "mealType", p.MealType)
			return successResult(callID, fmt.Sprintf("%q 삭제 완료", removed.Name)), nil
		}

		meal.Items = append(meal.Items[:idx], meal.Items[idx+1:]...)
		meal.TotalCalories = floorZero(meal.TotalCalories - removed.Calories)
		if err := e.store.SaveMeal(*meal); err != nil {
			return models.ToolResult{}, fmt.Errorf("delete_meal save failed: %w", err)
		}
		slog.Debug("Executor.deleteMeal: removed item", "userID", userID, "date", date, "mealType", p.MealType, "item", removed.Name)
		return successResult(callID, fmt.Sprintf("%q 삭제 완료", removed.Name)), nil
	}

	if err := e.store.DeleteMeal(meal.ID); err != nil {
		return models.ToolResult{}, fmt.Errorf("delete_meal failed: %w", err)
	}
	slog.Debug("Executor.deleteMeal: removed meal", "userID", userID, "date", date, "mealType", p.MealType)
	return successResult(callID, fmt.Sprintf("%s 전체 삭제 완료", models.MealTypeLabel(p.MealType))), nil
}

// updateMeal replaces one matched food item and adjusts the meal total by the
// calorie delta.
func (e *Executor) updateMeal(userID, callID string, p *models.UpdateMealParams, now time.Time) (models.ToolResult, error) {
	date := p.Date
	if date == "" {
		date = now.Format(models.DateLayout)
	}

	meal, err := e.store.GetMeal(userID, date, p.MealType)
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("update_meal lookup failed: %w", err)
	}
	if meal == nil {
		return failureResult(callID, fmt.Sprintf("%s %s 기록이 없습니다.", date, models.MealTypeLabel(p.MealType))), nil
	}

	idx := findFoodIndex(meal.Items, p.OldFoodName)
	if idx < 0 {
		return failureResult(callID, fmt.Sprintf("%q을(를) 찾을 수 없습니다.", p.OldFoodName)), nil
	}

	old := meal.Items[idx]
	replacement := models.FoodItem{
		Name:     p.NewFood.Name,
		Quantity: old.Quantity,
		Calories: int(math.Round(p.NewFood.Calories)),
		Protein:  p.NewFood.Protein,
		Carbs:    p.NewFood.Carbs,
		Fat:      p.NewFood.Fat,
	}
	meal.Items[idx] = replacement
	meal.TotalCalories = floorZero(meal.TotalCalories + replacement.Calories - old.Calories)

	if err := e.store.SaveMeal(*meal); err != nil {
		return models.ToolResult{}, fmt.Errorf("update_meal save failed: %w", err)
	}
	slog.Debug("Executor.updateMeal: replaced item", "userID", userID, "date", date, "mealType", p.MealType, "old", old.Name, "new", replacement.Name)
	return successResult(callID, fmt.Sprintf("%q → %q 수정 완료", old.Name, replacement.Name)), nil
}

// scaleFoods converts reported foods to stored items, scaling calories and
// macros by the serving quantity. Missing quantities default to one serving.
func scaleFoods(foods []models.FoodItemParams) []models.FoodItem {
	items := make([]models.FoodItem, 0, len(foods))
	for _, f := range foods {
		q := f.Quantity
		if q <= 0 {
			q = 1
		}
		items = append(items, models.FoodItem{
			Name:     f.Name,
			Quantity: q,
			Calories: int(math.Round(f.Calories * q)),
			Protein:  math.Round(f.Protein*q*10) / 10,
			Carbs:    math.Round(f.Carbs*q*10) / 10,
			Fat:      math.Round(f.Fat*q*10) / 10,
		})
	}
	return items
}

// findFoodIndex returns the first item whose name contains the query,
// case-insensitively, or -1.
func findFoodIndex(items []models.FoodItem, name string) int {
	needle := strings.ToLower(name)
	for i, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) {
			return i
		}
	}
	return -1
}

func foodNames(items []models.FoodItem) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return strings.Join(names, ", ")
}

func sumCalories(items []models.FoodItem) int {
	total := 0
	for _, item := range items {
		total += item.Calories
	}
	return total
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func successResult(callID, message string) models.ToolResult {
	return models.ToolResult{ToolCallID: callID, Success: true, Message: message}
}

func failureResult(callID, message string) models.ToolResult {
	return models.ToolResult{ToolCallID: callID, Success: false, Message: message}
}

func malformedResult(callID string, err error) models.ToolResult {
	return models.ToolResult{
		ToolCallID: callID,
		Success:    false,
		Message:    "요청 형식이 올바르지 않아 처리하지 못했어요.",
		Error:      err.Error(),
	}
}
