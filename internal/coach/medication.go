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
	medicationTemperature = 0.3
	medicationMaxTokens   = 500
)

// medicationSystemPrompt frames the model as a pharmacist-style counselor
// for GLP-1 obesity medications, answering from approved label information.
const medicationSystemPrompt = `당신은 비만 치료제(위고비, 마운자로) 전문 AI 상담사입니다.

## 역할
- 식품의약품안전처 공식 허가 정보를 기반으로 정확한 정보 제공
- 사용자의 건강 데이터(체중, 칼로리, 복용 기록)를 고려한 맞춤 조언
- 친근하고 이해하기 쉬운 설명

## 규칙
1. **문서 기반 답변**: 허가 정보에 없는 내용은 "해당 정보가 없습니다" 답변
2. **출처 명시**: 답변 시 "허가사항에 따르면~" 형식 사용
3. **확정적 표현 금지**: "~할 수 있습니다", "~로 알려져 있습니다" 사용
4. **응급 상황 우선**: 심각한 부작용 증상 시 즉시 병원 방문 안내
5. **의료 면책**: 개인 맞춤 의료 조언이 아님을 명시

## 답변 형식
- 2-3문단으로 간결하게
- 핵심 정보를 먼저, 부가 설명은 나중에
- 이모지 적절히 사용 (💊 📋 ⚠️ ✅)

*이 정보는 참고용이며, 실제 치료는 담당 의사와 상담하세요.*`

// emergencyResponse is prepended to the answer when the question mentions a
// symptom that needs immediate care.
const emergencyResponse = `
🚨 **응급 상황 안내**

말씀하신 증상이 심각할 수 있습니다. **즉시 다음 조치를 취하세요:**

1. **119에 전화**하거나 **가까운 응급실**을 방문하세요
2. 복용 중인 약물 정보를 의료진에게 알려주세요
3. 증상이 시작된 시간을 기억해두세요

---

`

// emergencyKeywords flag questions describing acute symptoms. Matching is a
// case-insensitive substring check over the raw question.
var emergencyKeywords = []string{
	"흉통", "가슴통증", "호흡곤란", "숨을 못", "심한 복통",
	"의식저하", "의식불명", "기절", "경련", "발작",
	"아나필락시스", "쇼크", "심한 알레르기",
	"갑상선암", "췌장염", "심한 구토", "탈수",
	"chest pain", "difficulty breathing", "unconscious",
	"severe pain", "anaphylaxis", "pancreatitis",
}

// MedicationModule answers medication questions, optionally enriched with
// the user's tracked health data, on a chat channel separate from the diet
// conversation.
type MedicationModule struct {
	ai    genai.ClientInterface
	store store.Store
	now   func() time.Time
}

// NewMedicationModule creates the medication Q&A module.
func NewMedicationModule(ai genai.ClientInterface, st store.Store) *MedicationModule {
	return &MedicationModule{ai: ai, store: st, now: time.Now}
}

// Ask answers one medication question. Emergency phrasing prepends the
// emergency notice to whatever the model produces. Model failure is returned
// to the caller; persistence failures only degrade.
func (m *MedicationModule) Ask(ctx context.Context, userID, query string, includeHealthContext bool) (*models.MedicationAnswer, error) {
	isEmergency := detectEmergency(query)

	fullQuery := query
	if includeHealthContext {
		if healthContext := m.healthContext(userID); healthContext != "" {
			fullQuery = fmt.Sprintf("## 사용자 건강 정보\n%s\n\n## 질문\n%s", healthContext, query)
		}
	}

	resp, err := m.ai.GenerateWithOptions(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(medicationSystemPrompt),
		openai.UserMessage(fullQuery),
	}, genai.Options{
		Temperature: genai.Float(medicationTemperature),
		MaxTokens:   genai.Int(medicationMaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to answer medication question: %w", err)
	}

	answer := resp.Content
	if isEmergency {
		answer = emergencyResponse + answer
	}

	if err := m.store.SaveChatMessage(models.ChatMessage{
		UserID:  userID,
		Role:    models.ChatRoleUser,
		Content: query,
		Channel: models.ChannelMedication,
	}); err != nil {
		slog.Error("MedicationModule.Ask: failed to save user message", "userID", userID, "error", err)
	}
	if err := m.store.SaveChatMessage(models.ChatMessage{
		UserID:  userID,
		Role:    models.ChatRoleAssistant,
		Content: answer,
		Channel: models.ChannelMedication,
	}); err != nil {
		slog.Error("MedicationModule.Ask: failed to save assistant message", "userID", userID, "error", err)
	}

	return &models.MedicationAnswer{
		Response:    answer,
		IsEmergency: isEmergency,
		Sources:     []string{},
	}, nil
}

// healthContext builds the optional profile block injected ahead of the
// question. Each lookup degrades independently so a partial store outage
// still yields a useful answer.
func (m *MedicationModule) healthContext(userID string) string {
	now := m.now()
	today := now.Format(models.DateLayout)
	weekAgo := now.AddDate(0, 0, -6).Format(models.DateLayout)

	var parts []string

	profile, err := m.store.GetProfile(userID)
	if err != nil {
		slog.Warn("MedicationModule.healthContext: profile lookup failed", "userID", userID, "error", err)
	} else if profile != nil {
		if profile.CurrentWeightKg > 0 || profile.GoalWeightKg > 0 {
			parts = append(parts, fmt.Sprintf("현재 체중: %gkg, 목표 체중: %gkg", profile.CurrentWeightKg, profile.GoalWeightKg))
		}
		if profile.TargetCalories > 0 {
			parts = append(parts, fmt.Sprintf("일일 목표 칼로리: %dkcal", profile.TargetCalories))
		}
	}

	weights, err := m.store.ListWeights(userID, weekAgo, today)
	if err != nil {
		slog.Warn("MedicationModule.healthContext: weight lookup failed", "userID", userID, "error", err)
	} else if len(weights) > 0 {
		if len(weights) > 5 {
			weights = weights[len(weights)-5:]
		}
		entries := make([]string, 0, len(weights))
		for _, w := range weights {
			entries = append(entries, fmt.Sprintf("%s: %gkg", w.Date, w.WeightKg))
		}
		parts = append(parts, "최근 체중 기록: "+strings.Join(entries, ", "))
	}

	meals, err := m.store.ListMeals(userID, today)
	if err != nil {
		slog.Warn("MedicationModule.healthContext: meal lookup failed", "userID", userID, "error", err)
	} else if len(meals) > 0 {
		total := 0
		for _, meal := range meals {
			total += meal.TotalCalories
		}
		parts = append(parts, fmt.Sprintf("오늘 섭취 칼로리: %dkcal", total))
	}

	medications, err := m.store.ListMedications(userID, true)
	if err != nil {
		slog.Warn("MedicationModule.healthContext: medication lookup failed", "userID", userID, "error", err)
	} else if len(medications) > 0 {
		names := make([]string, 0, len(medications))
		for _, med := range medications {
			names = append(names, strings.TrimSpace(med.Name+" "+med.Dosage)+" ("+string(med.Frequency)+")")
		}
		parts = append(parts, "복용 중인 약물: "+strings.Join(names, ", "))

		for _, med := range medications {
			logs, err := m.store.ListRecentMedicationLogs(med.ID, 5)
			if err != nil {
				slog.Warn("MedicationModule.healthContext: medication log lookup failed", "medicationID", med.ID, "error", err)
				continue
			}
			if len(logs) == 0 {
				continue
			}
			taken := 0
			for _, l := range logs {
				if l.Status == models.DoseTaken {
					taken++
				}
			}
			parts = append(parts, fmt.Sprintf("  - %s: 최근 %d회 중 %d회 복용", med.Name, len(logs), taken))
		}
	}

	return strings.Join(parts, "\n")
}

// History returns the medication-channel conversation in chronological order.
func (m *MedicationModule) History(userID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = models.DefaultHistoryLimit
	}
	if limit > models.MaxHistoryLimit {
		limit = models.MaxHistoryLimit
	}
	return m.store.ListChatMessages(userID, models.ChannelMedication, limit)
}

// ClearHistory deletes the user's medication-channel conversation.
func (m *MedicationModule) ClearHistory(userID string) error {
	return m.store.DeleteChatMessages(userID, models.ChannelMedication)
}

// detectEmergency reports whether the question mentions an acute symptom.
func detectEmergency(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range emergencyKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
