package coach

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/BTreeMap/DietCoach/internal/models"
)

// ToolsFor returns the tool subset exposed for an intent. Intents that answer
// from assembled context alone get no tools at all.
func ToolsFor(intent models.Intent) []openai.ChatCompletionToolParam {
	switch intent {
	case models.IntentLog:
		return []openai.ChatCompletionToolParam{LogMealToolDefinition()}
	case models.IntentQuery:
		return []openai.ChatCompletionToolParam{GetMealsToolDefinition()}
	case models.IntentModify:
		return []openai.ChatCompletionToolParam{
			DeleteMealToolDefinition(),
			UpdateMealToolDefinition(),
			LogMealToolDefinition(),
		}
	default:
		return nil
	}
}

// foodItemSchema describes one reported food entry, shared by log and update.
func foodItemSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":     map[string]interface{}{"type": "string", "description": "음식 이름과 양"},
			"quantity": map[string]interface{}{"type": "number", "description": "인분 수 (기본값 1)"},
			"calories": map[string]interface{}{"type": "number", "description": "총 칼로리 (kcal)"},
			"protein":  map[string]interface{}{"type": "number", "description": "단백질 (g)"},
			"carbs":    map[string]interface{}{"type": "number", "description": "탄수화물 (g)"},
			"fat":      map[string]interface{}{"type": "number", "description": "지방 (g)"},
		},
		"required": []string{"name", "calories", "protein", "carbs", "fat"},
	}
}

// LogMealToolDefinition returns the OpenAI tool definition for recording meals.
func LogMealToolDefinition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name: models.ToolLogMeal,
			Description: openai.String(`사용자가 먹은 음식을 기록합니다.
"~먹었어", "~섭취했어" 등 음식 섭취 언급 시 호출하세요.

칼로리 추정: 밥300, 국/찌개100-200, 치킨1/4마리450, 라면500`),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"meal_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"breakfast", "lunch", "dinner", "snack"},
						"description": "식사 종류 (시간 기준: 아침5-10시, 점심10-15시, 저녁15-21시, 그 외 간식)",
					},
					"foods": map[string]interface{}{
						"type":        "array",
						"description": "먹은 음식들",
						"items":       foodItemSchema(),
					},
					"date": map[string]interface{}{
						"type":        "string",
						"description": "YYYY-MM-DD 형식의 날짜.",
					},
				},
				"required": []string{"meal_type", "foods"},
			},
		},
	}
}

// GetMealsToolDefinition returns the OpenAI tool definition for reading meals.
func GetMealsToolDefinition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name: models.ToolGetMeals,
			Description: openai.String(`사용자의 식단 기록을 조회합니다.
사용자가 "오늘 뭐 먹었지?", "아침에 뭐 먹었어?", "어제 식단 알려줘" 등 식단 조회를 요청하면 이 함수를 호출하세요.`),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"date": map[string]interface{}{
						"type":        "string",
						"description": "YYYY-MM-DD 형식의 날짜. 기본값은 오늘.",
					},
					"meal_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"breakfast", "lunch", "dinner", "snack", "all"},
						"description": `조회할 식사 종류. 기본값은 "all".`,
					},
				},
				"required": []string{},
			},
		},
	}
}

// DeleteMealToolDefinition returns the OpenAI tool definition for removing
// a meal or a single food item.
func DeleteMealToolDefinition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name: models.ToolDeleteMeal,
			Description: openai.String(`사용자의 식단 기록을 삭제합니다.

예시:
- "점심 피자 지워줘" → meal_type: "lunch", food_name: "피자"
- "아침 취소해줘" → meal_type: "breakfast" (전체 삭제)
- "어제 저녁 삭제" → date: 어제날짜, meal_type: "dinner"

중요: 날짜를 언급하지 않으면 반드시 오늘 날짜를 사용하세요.`),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"date": map[string]interface{}{
						"type":        "string",
						"description": `YYYY-MM-DD 형식. 미지정시 오늘 날짜 사용. "어제"는 오늘-1일로 계산.`,
					},
					"meal_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"breakfast", "lunch", "dinner", "snack"},
						"description": "삭제할 식사 종류.",
					},
					"food_name": map[string]interface{}{
						"type":        "string",
						"description": "삭제할 특정 음식 이름. 미지정시 해당 끼니 전체 삭제.",
					},
				},
				"required": []string{"meal_type"},
			},
		},
	}
}

// UpdateMealToolDefinition returns the OpenAI tool definition for replacing
// one food item with another.
func UpdateMealToolDefinition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name: models.ToolUpdateMeal,
			Description: openai.String(`사용자의 식단 기록을 수정합니다.

패턴 인식 (중요!):
- "A 대신 B 먹었어" → old_food_name: "A", new_food.name: "B"
- "A 말고 B였어" → old_food_name: "A", new_food.name: "B"
- "A를 B로 바꿔줘" → old_food_name: "A", new_food.name: "B"

중요: 날짜를 언급하지 않으면 반드시 오늘 날짜를 사용하세요.
칼로리 추정: 밥300, 치킨450, 라면500, 샐러드200, 닭가슴살150, 계란후라이180`),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"date": map[string]interface{}{
						"type":        "string",
						"description": `YYYY-MM-DD 형식. 미지정시 오늘 날짜 사용. "어제"는 오늘-1일로 계산.`,
					},
					"meal_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"breakfast", "lunch", "dinner", "snack"},
						"description": `수정할 식사 종류. "점심"=lunch, "아침"=breakfast, "저녁"=dinner`,
					},
					"old_food_name": map[string]interface{}{
						"type":        "string",
						"description": `수정 대상 기존 음식 이름. "A 대신 B"에서 A에 해당.`,
					},
					"new_food": map[string]interface{}{
						"type":        "object",
						"description": `새로운 음식 정보. "A 대신 B"에서 B에 해당. 영양정보 추정 필수.`,
						"properties": map[string]interface{}{
							"name":     map[string]interface{}{"type": "string"},
							"calories": map[string]interface{}{"type": "number"},
							"protein":  map[string]interface{}{"type": "number"},
							"carbs":    map[string]interface{}{"type": "number"},
							"fat":      map[string]interface{}{"type": "number"},
						},
						"required": []string{"name", "calories", "protein", "carbs", "fat"},
					},
				},
				"required": []string{"meal_type", "old_food_name", "new_food"},
			},
		},
	}
}
