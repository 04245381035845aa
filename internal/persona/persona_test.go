package persona

import (
	"strings"
	"testing"

	"github.com/BTreeMap/DietCoach/internal/models"
)

func TestGet_KnownPersonas(t *testing.T) {
	tests := []struct {
		id    models.CoachPersona
		label string
	}{
		{models.PersonaCold, "차가운 코치"},
		{models.PersonaBright, "밝은 코치"},
		{models.PersonaStrict, "엄격한 코치"},
	}
	for _, tt := range tests {
		p := Get(tt.id)
		if p.ID != tt.id {
			t.Errorf("Get(%q) returned persona %q", tt.id, p.ID)
		}
		if p.Label != tt.label {
			t.Errorf("Get(%q) label = %q, want %q", tt.id, p.Label, tt.label)
		}
		if p.Voice == "" {
			t.Errorf("Get(%q) has empty voice", tt.id)
		}
	}
}

func TestGet_UnknownFallsBackToDefault(t *testing.T) {
	p := Get("sassy")
	if p.ID != models.DefaultPersona {
		t.Errorf("expected fallback to %q, got %q", models.DefaultPersona, p.ID)
	}
	if Get("").ID != models.DefaultPersona {
		t.Error("expected empty id to fall back to default persona")
	}
}

func TestVoiceHeader_MatchesPersonaVoice(t *testing.T) {
	for _, p := range All() {
		if VoiceHeader(p.ID) != p.Voice {
			t.Errorf("VoiceHeader(%q) does not match registry voice", p.ID)
		}
	}
	if VoiceHeader("unknown") != VoiceHeader(models.DefaultPersona) {
		t.Error("expected unknown id voice header to equal default")
	}
}

func TestAll_StableOrderAndDistinctVoices(t *testing.T) {
	all := All()
	if len(all) != 3 {
		t.Fatalf("expected 3 personas, got %d", len(all))
	}
	wantOrder := []models.CoachPersona{models.PersonaCold, models.PersonaBright, models.PersonaStrict}
	seen := map[string]bool{}
	for i, p := range all {
		if p.ID != wantOrder[i] {
			t.Errorf("position %d = %q, want %q", i, p.ID, wantOrder[i])
		}
		if seen[p.Voice] {
			t.Errorf("persona %q shares a voice block with another persona", p.ID)
		}
		seen[p.Voice] = true
		if !strings.Contains(p.Voice, "코치") {
			t.Errorf("persona %q voice does not introduce the coach role", p.ID)
		}
	}
}
