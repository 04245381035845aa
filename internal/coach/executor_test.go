package coach

import (
	"strings"
	"testing"

	"github.com/BTreeMap/DietCoach/internal/models"
)

func TestExecuteLogMealCreatesAndAppends(t *testing.T) {
	st := newTestStore(t)
	ex := NewExecutor(st)

	res, err := ex.Execute("user1", testToolCall("c1", models.ToolLogMeal,
		`{"meal_type":"lunch","date":"2025-06-15","foods":[{"name":"김치찌개","quantity":1,"calories":450,"protein":20,"carbs":30,"fat":15}]}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Expected success, got %+v", res)
	}
	if res.Message != "김치찌개 (450kcal) 기록 완료" {
		t.Errorf("Unexpected message: %q", res.Message)
	}

	// Appending to the same slot keeps the existing items.
	res, err = ex.Execute("user1", testToolCall("c2", models.ToolLogMeal,
		`{"meal_type":"lunch","date":"2025-06-15","foods":[{"name":"공기밥","calories":300}]}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Message != "공기밥 (300kcal) 기록 완료" {
		t.Errorf("Unexpected message: %q", res.Message)
	}

	meal, err := st.GetMeal("user1", "2025-06-15", models.MealTypeLunch)
	if err != nil {
		t.Fatalf("GetMeal failed: %v", err)
	}
	if meal == nil || len(meal.Items) != 2 || meal.TotalCalories != 750 {
		t.Fatalf("Expected 2 items totaling 750kcal, got %+v", meal)
	}

	// Re-reporting an already logged food is skipped, case-insensitively.
	res, err = ex.Execute("user1", testToolCall("c3", models.ToolLogMeal,
		`{"meal_type":"lunch","date":"2025-06-15","foods":[{"name":"김치찌개","calories":450}]}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Success || res.Message != "김치찌개은(는) 이미 기록되어 있어요!" {
		t.Errorf("Expected duplicate-food skip, got %+v", res)
	}
	meal, _ = st.GetMeal("user1", "2025-06-15", models.MealTypeLunch)
	if len(meal.Items) != 2 || meal.TotalCalories != 750 {
		t.Errorf("Duplicate food must not change the meal, got %+v", meal)
	}
}

func TestExecuteLogMealScalesByQuantity(t *testing.T) {
	st := newTestStore(t)
	ex := NewExecutor(st)

	res, err := ex.Execute("user1", testToolCall("c1", models.ToolLogMeal,
		`{"meal_type":"snack","date":"2025-06-15","foods":[{"name":"사과","quantity":2,"calories":95,"protein":0.5,"carbs":25,"fat":0.3}]}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Message != "사과 (190kcal) 기록 완료" {
		t.Errorf("Expected quantity-scaled calories, got %q", res.Message)
	}

	meal, err := st.GetMeal("user1", "2025-06-15", models.MealTypeSnack)
	if err != nil {
		t.Fatalf("GetMeal failed: %v", err)
	}
	item := meal.Items[0]
	if item.Quantity != 2 || item.Calories != 190 {
		t.Errorf("Expected 2 servings at 190kcal, got %+v", item)
	}
	if item.Protein != 1.0 || item.Carbs != 50.0 || item.Fat != 0.6 {
		t.Errorf("Expected scaled macros, got %+v", item)
	}
}

func TestExecuteLogMealDefaultsDate(t *testing.T) {
	st := newTestStore(t)
	ex := NewExecutor(st)

	_, err := ex.Execute("user1", testToolCall("c1", models.ToolLogMeal,
		`{"meal_type":"dinner","foods":[{"name":"샐러드","calories":200}]}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	meal, err := st.GetMeal("user1", "2025-06-15", models.MealTypeDinner)
	if err != nil {
		t.Fatalf("GetMeal failed: %v", err)
	}
	if meal == nil {
		t.Fatal("Expected the meal recorded under today's date")
	}
}

func TestExecuteGetMeals(t *testing.T) {
	st := newTestStore(t)
	ex := NewExecutor(st)

	seedMeal(t, st, "user1", "2025-06-15", models.MealTypeBreakfast, "토스트", 300)
	seedMeal(t, st, "user1", "2025-06-15", models.MealTypeLunch, "김치찌개", 450)

	res, err := ex.Execute("user1", testToolCall("c1", models.ToolGetMeals, `{}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	want := "2025-06-15 식단:\n아침: 토스트 (300kcal)\n점심: 김치찌개 (450kcal)\n총 750kcal"
	if res.Message != want {
		t.Errorf("Expected %q, got %q", want, res.Message)
	}
	meals, ok := res.Data.([]models.Meal)
	if !ok || len(meals) != 2 {
		t.Errorf("Expected meal data attached, got %T", res.Data)
	}

	res, err = ex.Execute("user1", testToolCall("c2", models.ToolGetMeals, `{"meal_type":"breakfast"}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(res.Message, "아침: 토스트 (300kcal)") || strings.Contains(res.Message, "점심") {
		t.Errorf("Expected breakfast only, got %q", res.Message)
	}

	res, err = ex.Execute("user1", testToolCall("c3", models.ToolGetMeals, `{"date":"2025-01-01"}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Success || res.Message != "2025-01-01 식단 기록이 없습니다." {
		t.Errorf("Expected empty-day message, got %+v", res)
	}
}

func TestExecuteDeleteMeal(t *testing.T) {
	st := newTestStore(t)
	ex := NewExecutor(st)

	res, err := ex.Execute("user1", testToolCall("c1", models.ToolDeleteMeal, `{"meal_type":"lunch"}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Success || res.Message != "2025-06-15 점심 기록이 없습니다." {
		t.Errorf("Expected missing-record failure, got %+v", res)
	}

	if err := st.SaveMeal(models.Meal{
		UserID:   "user1",
		Date:     "2025-06-15",
		MealType: models.MealTypeLunch,
		Items: []models.FoodItem{
			{Name: "김치찌개", Quantity: 1, Calories: 450},
			{Name: "공기밥", Quantity: 1, Calories: 300},
		},
		TotalCalories: 750,
	}); err != nil {
		t.Fatalf("SaveMeal failed: %v", err)
	}

	// Substring match removes a single item.
	res, err = ex.Execute("user1", testToolCall("c2", models.ToolDeleteMeal, `{"meal_type":"lunch","food_name":"김치"}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Success || res.Message != `"김치찌개" 삭제 완료` {
		t.Errorf("Expected item deletion, got %+v", res)
	}
	meal, _ := st.GetMeal("user1", "2025-06-15", models.MealTypeLunch)
	if meal == nil || len(meal.Items) != 1 || meal.TotalCalories != 300 {
		t.Errorf("Expected one remaining item at 300kcal, got %+v", meal)
	}

	res, err = ex.Execute("user1", testToolCall("c3", models.ToolDeleteMeal, `{"meal_type":"lunch","food_name":"피자"}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Success || res.Message != `"피자"을(를) 찾을 수 없습니다.` {
		t.Errorf("Expected not-found failure, got %+v", res)
	}

	// Deleting the last item removes the meal row.
	res, err = ex.Execute("user1", testToolCall("c4", models.ToolDeleteMeal, `{"meal_type":"lunch","food_name":"공기밥"}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Expected success, got %+v", res)
	}
	meal, err = st.GetMeal("user1", "2025-06-15", models.MealTypeLunch)
	if err != nil {
		t.Fatalf("GetMeal failed: %v", err)
	}
	if meal != nil {
		t.Errorf("Expected meal removed with its last item, got %+v", meal)
	}
}

func TestExecuteDeleteWholeMeal(t *testing.T) {
	st := newTestStore(t)
	ex := NewExecutor(st)
	seedMeal(t, st, "user1", "2025-06-15", models.MealTypeLunch, "김치찌개", 450)

	res, err := ex.Execute("user1", testToolCall("c1", models.ToolDeleteMeal, `{"meal_type":"lunch"}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Success || res.Message != "점심 전체 삭제 완료" {
		t.Errorf("Expected whole-meal deletion, got %+v", res)
	}
	meal, _ := st.GetMeal("user1", "2025-06-15", models.MealTypeLunch)
	if meal != nil {
		t.Errorf("Expected meal removed, got %+v", meal)
	}
}

func TestExecuteUpdateMeal(t *testing.T) {
	st := newTestStore(t)
	ex := NewExecutor(st)

	res, err := ex.Execute("user1", testToolCall("c1", models.ToolUpdateMeal,
		`{"meal_type":"lunch","old_food_name":"김치","new_food":{"name":"된장찌개","calories":380,"protein":18,"carbs":25,"fat":12}}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Success || res.Message != "2025-06-15 점심 기록이 없습니다." {
		t.Errorf("Expected missing-record failure, got %+v", res)
	}

	if err := st.SaveMeal(models.Meal{
		UserID:   "user1",
		Date:     "2025-06-15",
		MealType: models.MealTypeLunch,
		Items: []models.FoodItem{
			{Name: "김치찌개", Quantity: 1, Calories: 450, Protein: 20},
			{Name: "공기밥", Quantity: 1, Calories: 300},
		},
		TotalCalories: 750,
	}); err != nil {
		t.Fatalf("SaveMeal failed: %v", err)
	}

	res, err = ex.Execute("user1", testToolCall("c2", models.ToolUpdateMeal,
		`{"meal_type":"lunch","old_food_name":"김치","new_food":{"name":"된장찌개","calories":380,"protein":18,"carbs":25,"fat":12}}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Success || res.Message != `"김치찌개" → "된장찌개" 수정 완료` {
		t.Errorf("Expected replacement, got %+v", res)
	}

	meal, err := st.GetMeal("user1", "2025-06-15", models.MealTypeLunch)
	if err != nil {
		t.Fatalf("GetMeal failed: %v", err)
	}
	replaced := meal.Items[0]
	if replaced.Name != "된장찌개" || replaced.Calories != 380 || replaced.Quantity != 1 {
		t.Errorf("Unexpected replacement item: %+v", replaced)
	}
	if meal.TotalCalories != 680 {
		t.Errorf("Expected adjusted total 680, got %d", meal.TotalCalories)
	}

	res, err = ex.Execute("user1", testToolCall("c3", models.ToolUpdateMeal,
		`{"meal_type":"lunch","old_food_name":"라면","new_food":{"name":"우동","calories":400}}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Success || res.Message != `"라면"을(를) 찾을 수 없습니다.` {
		t.Errorf("Expected not-found failure, got %+v", res)
	}
}

func TestExecuteRejectsMalformedCalls(t *testing.T) {
	st := newTestStore(t)
	ex := NewExecutor(st)

	// log_meal with no foods fails validation, not the request.
	res, err := ex.Execute("user1", testToolCall("c1", models.ToolLogMeal, `{"meal_type":"lunch","foods":[]}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("Expected validation failure, got %+v", res)
	}

	// log_meal without a meal type is rejected the same way.
	res, err = ex.Execute("user1", testToolCall("c2", models.ToolLogMeal, `{"foods":[{"name":"사과","calories":95}]}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Success {
		t.Errorf("Expected missing meal type to fail validation, got %+v", res)
	}

	res, err = ex.Execute("user1", testToolCall("c3", "teleport", `{}`), testNow)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Success || res.Message != "알 수 없는 도구: teleport" {
		t.Errorf("Expected unknown-tool failure, got %+v", res)
	}
}
