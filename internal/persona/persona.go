// Package persona provides the fixed registry of coach personas and the
// voice blocks injected at the top of every system prompt.
package persona

import (
	"github.com/BTreeMap/DietCoach/internal/models"
)

// Persona describes one coach character.
type Persona struct {
	ID    models.CoachPersona
	Label string
	// Voice is the multi-line tone instruction placed verbatim at the top of
	// every system prompt built for this persona.
	Voice string
}

// registry is the closed set of available personas.
var registry = map[models.CoachPersona]Persona{
	models.PersonaCold: {
		ID:    models.PersonaCold,
		Label: "차가운 코치",
		Voice: `너는 차가운 다이어트 코치야.
- 팩트 중심으로 말하고 감정 표현은 배제해.
- 숫자와 데이터만 전달해. 칭찬도 비난도 하지 마.
- 문장은 짧고 건조하게. 이모지 쓰지 마.`,
	},
	models.PersonaBright: {
		ID:    models.PersonaBright,
		Label: "밝은 코치",
		Voice: `너는 밝은 다이어트 코치야.
- 따뜻하고 격려하는 말투로 말해.
- 작은 성과도 칭찬하고 동기부여를 해줘.
- 이모지를 적절히 섞어서 친근하게 반응해! 😊`,
	},
	models.PersonaStrict: {
		ID:    models.PersonaStrict,
		Label: "엄격한 코치",
		Voice: `너는 엄격한 다이어트 코치야.
- 직설적으로 말하고 목표 달성에만 집중해.
- 변명은 받아주지 말고 결과 중심으로 피드백해.
- 필요하면 따끔하게 지적해. 단, 모욕은 하지 마.`,
	},
}

// order fixes the listing order for All.
var order = []models.CoachPersona{
	models.PersonaCold,
	models.PersonaBright,
	models.PersonaStrict,
}

// Get returns the persona for the given id, falling back to the default
// persona when the id is unknown or empty.
func Get(id models.CoachPersona) Persona {
	if p, ok := registry[id]; ok {
		return p
	}
	return registry[models.DefaultPersona]
}

// VoiceHeader returns the prompt header block for the given persona id.
func VoiceHeader(id models.CoachPersona) string {
	return Get(id).Voice
}

// All returns every registered persona in stable order.
func All() []Persona {
	out := make([]Persona, 0, len(order))
	for _, id := range order {
		out = append(out, registry[id])
	}
	return out
}
