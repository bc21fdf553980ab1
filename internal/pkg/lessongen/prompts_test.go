package lessongen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectEducationalLevel(t *testing.T) {
	assert.Equal(t, LevelPreescolar, DetectEducationalLevel("Preescolar 3"))
	assert.Equal(t, LevelPreescolar, DetectEducationalLevel("kinder"))
	assert.Equal(t, LevelSecundaria, DetectEducationalLevel("2° Secundaria"))
	assert.Equal(t, LevelPrimaria, DetectEducationalLevel("4° Primaria"))
	assert.Equal(t, LevelPrimaria, DetectEducationalLevel("algo raro"), "primaria is the default")
}

func TestPhase(t *testing.T) {
	assert.Equal(t, "Fase 2", Phase("Preescolar"))
	assert.Equal(t, "Fase 3", Phase("1° Primaria"))
	assert.Equal(t, "Fase 3", Phase("segundo de primaria"))
	assert.Equal(t, "Fase 4", Phase("3° Primaria"))
	assert.Equal(t, "Fase 5", Phase("6° Primaria"))
	assert.Equal(t, "Fase 6", Phase("1° Secundaria"))
	assert.Equal(t, "Fase 6", Phase("tercero de secundaria"))
	assert.Equal(t, "Fase 4", Phase("Primaria"), "unknown grade defaults to fase 4")
}

func testParams() *LessonParams {
	return &LessonParams{
		Grade:     "4° Primaria",
		Topic:     "La Revolución Mexicana",
		Duration:  "50",
		Status:    "inquieto",
		Tone:      "lúdico",
		GroupSize: "25",
		Narrative: "Detectives",
	}
}

func TestBuildSystemPromptContainsCurriculumRules(t *testing.T) {
	prompt := BuildSystemPrompt(testParams(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	assert.Contains(t, prompt, "PRIMARIA (Fase 4)")
	assert.Contains(t, prompt, "SEGURIDAD_BLOQUEADA")
	assert.Contains(t, prompt, "Saberes y Pensamiento Científico")
	assert.Contains(t, prompt, "La Revolución Mexicana")
	assert.Contains(t, prompt, "01/02/2026")
	assert.Contains(t, prompt, "PLANEACIÓN DIDÁCTICA NEM")
	assert.NotContains(t, prompt, "asignaturas oficiales")
}

func TestBuildSystemPromptLevelSpecifics(t *testing.T) {
	p := testParams()

	p.Grade = "Preescolar"
	assert.Contains(t, BuildSystemPrompt(p, time.Now()), "100% lúdico y vivencial")

	p.Grade = "2° Secundaria"
	assert.Contains(t, BuildSystemPrompt(p, time.Now()), "pensamiento crítico y la argumentación")
}

func TestBuildSystemPromptNEMRefinements(t *testing.T) {
	p := testParams()
	p.NEMParams = &NEMParams{
		Formality:         "formal",
		PedagogicalIntent: "fortalecer identidad",
		Emphasis:          []string{"inclusion", "comunidad"},
		DecisionLevel:     "proponer",
	}

	prompt := BuildSystemPrompt(p, time.Now())
	assert.Contains(t, prompt, "MODO FORMAL SEP")
	assert.Contains(t, prompt, "fortalecer identidad")
	assert.Contains(t, prompt, "Inclusión y diversidad, Comunidad y contexto local")
	assert.Contains(t, prompt, "proponen soluciones")
}

func TestBuildSystemPromptWithoutRefinements(t *testing.T) {
	prompt := BuildSystemPrompt(testParams(), time.Now())
	assert.NotContains(t, prompt, "MODO FORMAL SEP")
	assert.NotContains(t, prompt, "ÉNFASIS SOCIAL SOLICITADO")
}

func TestNarrativeInstruction(t *testing.T) {
	p := testParams()
	assert.Contains(t, NarrativeInstruction(p), `"Detectives"`)

	p.Narrative = "Random"
	assert.Contains(t, NarrativeInstruction(p), "narrativa sorpresa")

	p.Narrative = "Personalizada"
	p.CustomNarrative = "Piratas del Caribe"
	assert.Contains(t, NarrativeInstruction(p), "Piratas del Caribe")
}

func TestBuildPlanBSystemPrompt(t *testing.T) {
	prompt := BuildPlanBSystemPrompt(testParams())

	assert.Contains(t, prompt, "PLAN B")
	assert.Contains(t, prompt, "4° Primaria")
	assert.Contains(t, prompt, "La Revolución Mexicana")
	assert.Contains(t, prompt, "SEGURIDAD_BLOQUEADA")
	assert.True(t, strings.Contains(prompt, "3 pasos"))
}
