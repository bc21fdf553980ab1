package lessongen

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ErrSafetyBlocked is returned when the model refused the topic or narrative
// on school-safety grounds.
var ErrSafetyBlocked = errors.New("content blocked by school safety policy")

// SafetySentinel is the exact phrase the model is instructed to answer with
// when it refuses. Responses containing it never reach the user.
const SafetySentinel = "SEGURIDAD_BLOQUEADA"

// NEMParams are the optional pedagogical refinements of the new curriculum
// (Nueva Escuela Mexicana, Plan de Estudios 2022).
type NEMParams struct {
	Formality         string   `json:"formality" validate:"omitempty,oneof=automatico formal"`
	PedagogicalIntent string   `json:"pedagogical_intent" validate:"omitempty,max=500"`
	Emphasis          []string `json:"emphasis" validate:"omitempty,dive,oneof=inclusion convivencia comunidad pensamiento expresion identidad"`
	DecisionLevel     string   `json:"decision_level" validate:"omitempty,oneof=seguir elegir proponer"`
}

// LessonParams describe the class a teacher wants planned.
type LessonParams struct {
	Grade           string     `json:"grade" validate:"required,min=1,max=100"`
	Topic           string     `json:"topic" validate:"required,min=1,max=255"`
	Duration        string     `json:"duration" validate:"required,max=10"`
	Status          string     `json:"status" validate:"max=100"`
	Tone            string     `json:"tone" validate:"max=100"`
	GroupSize       string     `json:"group_size" validate:"max=20"`
	Narrative       string     `json:"narrative" validate:"max=100"`
	CustomNarrative string     `json:"custom_narrative" validate:"max=255"`
	NEMParams       *NEMParams `json:"nem_params"`
}

func (p *LessonParams) Validate() error {
	v := validator.New()
	return v.Struct(p)
}

// ChosenNarrative resolves the narrative the lesson should follow. The
// "Personalizada" option defers to the teacher's own text.
func (p *LessonParams) ChosenNarrative() string {
	if p.Narrative == "Personalizada" {
		return p.CustomNarrative
	}
	return p.Narrative
}

var emphasisLabels = map[string]string{
	"inclusion":   "Inclusión y diversidad",
	"convivencia": "Convivencia y respeto",
	"comunidad":   "Comunidad y contexto local",
	"pensamiento": "Pensamiento crítico",
	"expresion":   "Expresión emocional",
	"identidad":   "Identidad cultural",
}

var decisionLabels = map[string]string{
	"seguir":   "Los alumnos siguen indicaciones del docente",
	"elegir":   "Los alumnos eligen cómo expresarse o representar el aprendizaje",
	"proponer": "Los alumnos proponen soluciones, toman posturas o deciden acciones",
}
