package coach

import (
	"fmt"
	"math"
	"strings"

	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/persona"
)

// BuildSystemPrompt assembles the system prompt for one request. Every prompt
// opens with the persona voice; the body depends on the intent.
func BuildSystemPrompt(p models.CoachPersona, intent models.Intent, uc models.UserContext) string {
	voice := persona.VoiceHeader(p)
	switch intent {
	case models.IntentLog:
		return buildLogPrompt(voice, uc)
	case models.IntentQuery:
		return buildQueryPrompt(voice, uc)
	case models.IntentStats:
		return buildStatsPrompt(voice, uc)
	case models.IntentModify:
		return buildModifyPrompt(voice, uc)
	case models.IntentAnalyze:
		return buildAnalyzePrompt(voice, uc)
	default:
		return buildChatPrompt(voice)
	}
}

func buildLogPrompt(voice string, uc models.UserContext) string {
	remaining := uc.TargetCalories - uc.TodayCalories
	ratio := calorieRatio(uc.TodayCalories, uc.TargetCalories)

	ratioComment := ""
	if ratio < 90 {
		ratioComment = fmt.Sprintf("- %d%% 미만: 아직 여유 있다고", ratio)
	}
	if ratio >= 90 {
		ratioComment = "- 지금 거의 다 채움!"
	}
	if ratio > 100 {
		ratioComment = "- 오버했다! 주의!"
	}

	return fmt.Sprintf(`%s

[임무] 사용자가 먹은 음식을 기록하고 캐릭터답게 반응해!

[절대 금지]
- "기록 완료", "추가 완료" 같은 로봇 말투 금지!
- 그냥 칼로리만 말하는 것 금지!
- 반드시 위 예시처럼 캐릭터 말투로 답변해!

[해야 할 것]
- log_meal 함수 호출
- 음식에 대한 재치있는 한마디 (맛있겠다, 건강하다, 좀 많다 등)
- 칼로리 상황에 맞는 코멘트

[중요! 음식 구분 규칙]
- 콤마(,)나 "이랑/하고/랑"으로 구분된 경우에만 여러 음식!
- 구분자 없이 붙어있으면 무조건 1개 음식으로 기록!
- "달걀 샐러드" → 1개 (구분자 없음)
- "비빔밥, 된장찌개" → 2개 (콤마로 구분)
- "치킨이랑 맥주" → 2개 (이랑으로 구분)

[칼로리 추정]
밥300, 치킨450, 라면500, 샐러드200, 떡볶이400, 피자280, 삼겹살550

[현재 상황]
- 오늘: %s
- 섭취: %dkcal / 목표: %dkcal (%d%%)
- 남은 여유: %dkcal

[상황별 반응]
%s`, voice, uc.Today, uc.TodayCalories, uc.TargetCalories, ratio, remaining, ratioComment)
}

func buildQueryPrompt(voice string, uc models.UserContext) string {
	var weightInfo string
	switch {
	case uc.CurrentWeight > 0 && uc.GoalWeight > 0:
		weightInfo = fmt.Sprintf("현재 체중: %gkg (목표: %gkg)", uc.CurrentWeight, uc.GoalWeight)
	case uc.CurrentWeight > 0:
		weightInfo = fmt.Sprintf("현재 체중: %gkg", uc.CurrentWeight)
	default:
		weightInfo = "체중 정보 없음"
	}

	var weightChange string
	switch {
	case len(uc.RecentWeights) >= 2:
		first := uc.RecentWeights[0]
		last := uc.RecentWeights[len(uc.RecentWeights)-1]
		diff := last.WeightKg - first.WeightKg
		weightChange = fmt.Sprintf("최근 %d일 체중 변화: %gkg → %gkg (%s%.1fkg)",
			len(uc.RecentWeights), first.WeightKg, last.WeightKg, signPrefix(diff), diff)
	case len(uc.RecentWeights) == 1:
		w := uc.RecentWeights[0]
		weightChange = fmt.Sprintf("최근 기록: %s - %gkg", w.Date, w.WeightKg)
	default:
		weightChange = "최근 7일 체중 기록 없음"
	}

	var trendText string
	switch uc.WeightTrend {
	case models.TrendUp:
		trendText = "📈 증가 추세"
	case models.TrendDown:
		trendText = "📉 감소 추세 (좋아요!)"
	case models.TrendStable:
		trendText = "➡️ 유지 중"
	default:
		trendText = "❓ 데이터 부족"
	}

	todayPercent := calorieRatio(uc.TodayCalories, uc.TargetCalories)
	remaining := uc.TargetCalories - uc.TodayCalories
	if remaining < 0 {
		remaining = 0
	}
	calorieInfo := fmt.Sprintf("오늘: %dkcal / 목표: %dkcal (%d%%) | 남은 여유: %dkcal",
		uc.TodayCalories, uc.TargetCalories, todayPercent, remaining)

	var weeklyCalorieInfo string
	if len(uc.RecentDailyCals) > 0 {
		entries := make([]string, 0, len(uc.RecentDailyCals))
		for _, d := range uc.RecentDailyCals {
			entries = append(entries, fmt.Sprintf("%s: %dkcal", shortDate(d.Date), d.Calories))
		}
		weeklyCalorieInfo = fmt.Sprintf("최근 %d일 칼로리: %s", len(uc.RecentDailyCals), strings.Join(entries, ", "))
	} else {
		weeklyCalorieInfo = "최근 7일 칼로리 기록 없음"
	}

	avgDiff := uc.WeeklyAvgCals - uc.TargetCalories
	var avgDiffText string
	switch {
	case avgDiff > 0:
		avgDiffText = fmt.Sprintf("목표 대비 +%dkcal 초과", avgDiff)
	case avgDiff < 0:
		avgDiffText = fmt.Sprintf("목표 대비 %dkcal 절약", avgDiff)
	default:
		avgDiffText = "목표 달성"
	}

	return fmt.Sprintf(`%s

[핵심 임무]
사용자가 식단을 물어보면 반드시 get_meals 함수를 호출해서 실제 데이터를 조회해!
너는 사용자의 식단을 기억하지 못해. 반드시 함수를 호출해야만 알 수 있어!

[필수 규칙]
1. "뭐 먹었어?", "오늘 식단", "저녁 뭐 먹었지?" 등 식단 질문 → 반드시 get_meals 함수 호출!
2. 함수 호출 없이 "모른다", "기억 안 난다"라고 답하면 안 돼!
3. 체중/칼로리 질문은 아래 정보로 답변 (함수 호출 불필요)

[응답 방식]
- 함수 결과를 받으면 캐릭터 말투로 재미있게 전달
- 기록 없으면: 뭐 먹었는지 기록하라고 독려
- 기록 있으면: 음식 목록 + 칼로리 + 재치있는 코멘트
- 체중/칼로리 변화 질문: 아래 데이터 기반으로 트렌드와 함께 답변

오늘 날짜: %s

[체중 정보]
%s
%s
추세: %s

[칼로리 정보]
%s
%s
주간 평균: %dkcal/일 (%s)`, voice, uc.Today, weightInfo, weightChange, trendText, calorieInfo, weeklyCalorieInfo, uc.WeeklyAvgCals, avgDiffText)
}

func buildStatsPrompt(voice string, uc models.UserContext) string {
	var weightInfo string
	switch {
	case uc.CurrentWeight > 0 && uc.GoalWeight > 0:
		diff := uc.GoalWeight - uc.CurrentWeight
		weightInfo = fmt.Sprintf("현재: %gkg → 목표: %gkg (%s%.1fkg)",
			uc.CurrentWeight, uc.GoalWeight, signPrefix(diff), diff)
	case uc.CurrentWeight > 0:
		weightInfo = fmt.Sprintf("현재: %gkg", uc.CurrentWeight)
	default:
		weightInfo = "체중 기록 없음"
	}

	var weightChange string
	switch {
	case len(uc.RecentWeights) >= 2:
		first := uc.RecentWeights[0]
		last := uc.RecentWeights[len(uc.RecentWeights)-1]
		diff := last.WeightKg - first.WeightKg
		weightChange = fmt.Sprintf("최근 %d일: %gkg → %gkg (%s%.1fkg)",
			len(uc.RecentWeights), first.WeightKg, last.WeightKg, signPrefix(diff), diff)
	case len(uc.RecentWeights) == 1:
		w := uc.RecentWeights[0]
		weightChange = fmt.Sprintf("기록: %s - %gkg", w.Date, w.WeightKg)
	default:
		weightChange = "최근 7일 체중 기록 없음"
	}

	var trendText string
	switch uc.WeightTrend {
	case models.TrendUp:
		trendText = "📈 증가"
	case models.TrendDown:
		trendText = "📉 감소"
	case models.TrendStable:
		trendText = "➡️ 유지"
	default:
		trendText = "❓ 데이터 부족"
	}

	todayPercent := calorieRatio(uc.TodayCalories, uc.TargetCalories)
	remaining := uc.TargetCalories - uc.TodayCalories
	if remaining < 0 {
		remaining = 0
	}

	dailyList := "기록 없음"
	if len(uc.RecentDailyCals) > 0 {
		lines := make([]string, 0, len(uc.RecentDailyCals))
		for _, d := range uc.RecentDailyCals {
			lines = append(lines, fmt.Sprintf("%s: %dkcal", shortDate(d.Date), d.Calories))
		}
		dailyList = strings.Join(lines, "\n  ")
	}

	avgDiff := uc.WeeklyAvgCals - uc.TargetCalories
	var avgStatus string
	switch {
	case avgDiff > 0:
		avgStatus = fmt.Sprintf("+%dkcal 초과", avgDiff)
	case avgDiff < 0:
		avgStatus = fmt.Sprintf("%dkcal 절약", avgDiff)
	default:
		avgStatus = "목표 달성"
	}

	return fmt.Sprintf(`%s

[임무]
사용자가 칼로리나 체중 수치를 물어봤어. 아래 데이터를 기반으로 캐릭터답게 답변해!

[중요]
- 함수 호출 없이 아래 데이터만으로 답변해
- 질문에 맞는 정보를 중심으로 답변 (칼로리 질문 → 칼로리 중심, 체중 질문 → 체중 중심)
- 수치를 명확히 말해주고, 짧은 코멘트 추가
- 2-3문장으로 간결하게

오늘: %s

[체중 데이터]
%s
%s
추세: %s

[칼로리 데이터]
오늘: %dkcal / 목표: %dkcal (%d%%)
남은 여유: %dkcal
주간 평균: %dkcal/일 (%s)

최근 일별 칼로리:
  %s`, voice, uc.Today, weightInfo, weightChange, trendText,
		uc.TodayCalories, uc.TargetCalories, todayPercent, remaining,
		uc.WeeklyAvgCals, avgStatus, dailyList)
}

func buildModifyPrompt(voice string, uc models.UserContext) string {
	return fmt.Sprintf(`%s

[임무] 사용자의 식단 기록을 수정/삭제하고 캐릭터답게 반응해!

[절대 금지]
- "수정 완료", "삭제 완료", "변경 완료" 같은 로봇 말투 금지!
- 반드시 위 예시처럼 캐릭터 말투로 답변해!

[함수 호출 규칙]
- "A 대신 B", "A 말고 B" → update_meal
- "삭제", "지워", "취소" → delete_meal
- "지우고 ~먹었어" → delete_meal + log_meal 둘 다!

[해야 할 것]
- 수정/삭제 후 재치있는 한마디
- 실수해도 괜찮다는 따뜻한 반응
- 더 건강한 선택이면 칭찬

오늘 날짜: %s

[칼로리 추정]
밥300, 치킨450, 라면500, 샐러드200, 피자280, 삼겹살550`, voice, uc.Today)
}

func buildAnalyzePrompt(voice string, uc models.UserContext) string {
	ratio := calorieRatio(uc.TodayCalories, uc.TargetCalories)
	remaining := uc.TargetCalories - uc.TodayCalories

	var weightInfo string
	if uc.CurrentWeight > 0 && uc.GoalWeight > 0 {
		weightInfo = fmt.Sprintf("체중: %gkg → 목표 %gkg", uc.CurrentWeight, uc.GoalWeight)
	}

	var weightChange string
	if len(uc.RecentWeights) >= 2 {
		first := uc.RecentWeights[0]
		last := uc.RecentWeights[len(uc.RecentWeights)-1]
		diff := last.WeightKg - first.WeightKg
		weightChange = fmt.Sprintf("최근 체중 변화: %gkg → %gkg (%s%.1fkg)",
			first.WeightKg, last.WeightKg, signPrefix(diff), diff)
	}

	var trendText string
	switch uc.WeightTrend {
	case models.TrendUp:
		trendText = "📈 증가 추세 (주의!)"
	case models.TrendDown:
		trendText = "📉 감소 추세 (잘하고 있어!)"
	case models.TrendStable:
		trendText = "➡️ 유지 중"
	}

	var weeklyCalInfo string
	if uc.WeeklyAvgCals > 0 {
		diff := uc.WeeklyAvgCals - uc.TargetCalories
		if diff > 0 {
			weeklyCalInfo = fmt.Sprintf("주간 평균 칼로리: %dkcal/일 (목표 대비 +%dkcal 초과)", uc.WeeklyAvgCals, diff)
		} else {
			weeklyCalInfo = fmt.Sprintf("주간 평균 칼로리: %dkcal/일 (목표 대비 %dkcal 여유)", uc.WeeklyAvgCals, uc.TargetCalories-uc.WeeklyAvgCals)
		}
	}

	foodList := "아직 기록 없음"
	if len(uc.TodayFoods) > 0 {
		foodList = strings.Join(uc.TodayFoods, ", ")
	}

	var trendLines []string
	for _, line := range []string{weightInfo, weightChange, trendText, weeklyCalInfo} {
		if line != "" {
			trendLines = append(trendLines, "- "+line)
		}
	}
	trendBlock := strings.Join(trendLines, "\n")

	return fmt.Sprintf(`%s

[임무] 사용자의 식단과 체중 변화를 분석하고 캐릭터답게 피드백해!

[절대 금지]
- 딱딱한 분석 보고서 말투 금지!
- 반드시 위 예시처럼 캐릭터 말투로 답변해!

[해야 할 것]
- 오늘 뭘 먹었는지 언급
- 달성률에 맞는 피드백
- 체중 변화 추세 언급 (데이터가 있으면)
- 앞으로 뭘 먹으면 좋을지 추천 (요청시)
- 3-4문장 이내

[오늘 현황]
- 목표: %dkcal
- 섭취: %dkcal (%d%%)
- 남은 여유: %dkcal
- 오늘 식단: %s
- 연속 기록: %d일째

[주간 트렌드]
%s

[달성률별 반응]
- 0-50%%: 아직 많이 먹어도 돼!
- 50-90%%: 잘하고 있어!
- 90-110%%: 완벽해! 칭찬!
- 110%%+: 오버했어! 내일 조절하자!

[체중 추세별 반응]
- 감소 추세: 칭찬! 이대로 유지!
- 증가 추세: 살짝 주의, 식단 조절 권유
- 유지 중: 안정적! 꾸준함 칭찬`, voice,
		uc.TargetCalories, uc.TodayCalories, ratio, remaining, foodList, uc.ConsecutiveDays, trendBlock)
}

func buildChatPrompt(voice string) string {
	return fmt.Sprintf(`%s

[임무] 친근한 대화 상대이자 다이어트 응원단!

[절대 금지]
- 딱딱한 말투 금지!
- 반드시 위 예시처럼 캐릭터 말투로 답변해!

[해야 할 것]
- 인사 → 반갑게 인사 + 오늘 응원
- 힘들다 → 공감 + 격려
- 포기하고 싶다 → 노력 인정 + 응원
- 고마워 → 따뜻하게 + 계속 함께하자
- 1-2문장으로 짧게!
- 함수 호출 하지 마!`, voice)
}

// calorieRatio returns the intake percentage of target, rounded. A zero or
// negative target yields 0 instead of dividing by zero.
func calorieRatio(intake, target int) int {
	if target <= 0 {
		return 0
	}
	return int(math.Round(float64(intake) / float64(target) * 100))
}

// signPrefix returns "+" for positive deltas so formatted diffs read +1.2/-1.2.
func signPrefix(f float64) string {
	if f > 0 {
		return "+"
	}
	return ""
}

// shortDate trims YYYY-MM-DD to MM-DD for compact prompt lines.
func shortDate(d string) string {
	if len(d) >= len(models.DateLayout) {
		return d[5:]
	}
	return d
}
