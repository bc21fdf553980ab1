package lessongen

import (
	"fmt"
	"strings"
	"time"
)

// Educational levels of the Mexican school system the planner supports.
const (
	LevelPreescolar = "preescolar"
	LevelPrimaria   = "primaria"
	LevelSecundaria = "secundaria"
)

const safetyPolicy = `POLÍTICA DE SEGURIDAD ESCOLAR (CRÍTICA):
- Tienes terminantemente prohibido generar contenido que promueva la violencia, el odio, el racismo, el sexismo o la discriminación.
- NO generes contenido con connotaciones sexuales explícitas o inapropiadas para menores.
- Si el tema o la narrativa personalizada sugerida por el usuario es peligrosa, violenta, sexualmente explícita o incita al odio, DEBES RESPONDER ÚNICAMENTE CON ESTA FRASE: "SEGURIDAD_BLOQUEADA". No añadas nada más.
- Entiende la diferencia entre "Educación Integral de la Sexualidad" (NEM) y contenido inapropiado. Sé profesional y científico si el tema es académico, pero bloquea si es vulgar o riesgoso.`

const nemRules = `REGLAS OBLIGATORIAS DE LA NEM (Plan de Estudios 2022):

CAMPOS FORMATIVOS (usar ÚNICAMENTE estos 4):
- Lenguajes
- Saberes y Pensamiento Científico
- Ética, Naturaleza y Sociedades
- De lo Humano y lo Comunitario

EJES ARTICULADORES (elegir los que apliquen):
- Inclusión
- Pensamiento Crítico
- Interculturalidad Crítica
- Igualdad de Género
- Vida Saludable
- Apropiación de las Culturas a través de la Lectura y la Escritura
- Artes y Experiencias Estéticas

EL PDA DEBE:
- Describir un PROCESO FORMATIVO, NO una actividad
- Redactarse en tercera persona del singular (ej: "Reconoce", "Valora", "Explora", "Analiza")
- NUNCA usar "Los estudiantes..." o "El alumno..."
- NUNCA mencionar productos específicos (mural, cartel, dibujo, exposición, etc.)
- Ser coherente con el grado y la edad

PROHIBIDO usar:
- Materias tradicionales (Español, Matemáticas, Ciencias Naturales, Historia, Geografía, Formación Cívica, etc.)
- Competencias del modelo 2011 o 2017
- Aprendizajes esperados de planes anteriores
- Bloques temáticos
- El término "asignaturas"`

const formatRules = `REGLAS DE FORMATO:
- NO incluyas ninguna sección de "OBJETIVO DE APRENDIZAJE".
- NO agregues texto extra ni introducciones.
- NO cambies el orden de las secciones.
- NO repitas información.
- NO incluyas saludos ni despedidas.
- Usa lenguaje claro, profesional y docente.
- RESPONDER SIEMPRE EN ESPAÑOL.`

const preescolarSpecifics = `CARACTERÍSTICAS ESPECÍFICAS PARA PREESCOLAR (Fase 2):
- Actividades cortas (máximo 10-15 minutos por bloque)
- Enfoque 100% lúdico y vivencial
- Aprendizaje a través del juego, la exploración y la experiencia directa
- Materiales seguros, manipulables y coloridos
- Instrucciones simples y claras
- Movimiento corporal integrado en todas las actividades
- Trabajo en pequeños grupos o círculo
- Priorizar la expresión oral, corporal y artística
- NO usar planas, repeticiones mecánicas ni memorización forzada
- Incluir canciones, rimas o movimientos cuando sea posible
- Respetar los ritmos de desarrollo de cada niño`

const primariaSpecifics = `CARACTERÍSTICAS ESPECÍFICAS PARA PRIMARIA (Fases 3, 4 y 5):
- Actividades con duración apropiada a la edad (15-25 min por bloque)
- Enfoque comunitario y situado
- Aprendizaje basado en proyectos, problemas reales o fenómenos sociales
- Materiales accesibles en escuelas públicas mexicanas
- Trabajo colaborativo con roles definidos
- Vinculación con la comunidad y el territorio
- Fase 3 (1°-2°): Transición del juego a actividades estructuradas, lectoescritura inicial
- Fase 4 (3°-4°): Consolidación de habilidades, exploración del entorno
- Fase 5 (5°-6°): Pensamiento abstracto inicial, proyectos con mayor autonomía
- Priorizar reflexión, diálogo y construcción colectiva del conocimiento
- NO usar tareas de repetición mecánica ni memorización sin sentido`

const secundariaSpecifics = `CARACTERÍSTICAS ESPECÍFICAS PARA SECUNDARIA (Fase 6):
- Actividades que fomenten el pensamiento crítico y la argumentación
- Proyectos con relevancia social, ambiental o comunitaria
- Debate, investigación y propuestas de solución
- Uso crítico de tecnología e información
- Conexión con el proyecto de vida del estudiante
- Trabajo colaborativo con impacto comunitario
- NO usar actividades infantilizadas ni repetitivas
- Fomentar la autonomía y la toma de decisiones
- Priorizar el análisis crítico y la acción transformadora`

// DetectEducationalLevel classifies a free-form grade string.
func DetectEducationalLevel(grade string) string {
	g := strings.ToLower(grade)
	if strings.Contains(g, "preescolar") || strings.Contains(g, "kinder") || strings.Contains(g, "jardín") {
		return LevelPreescolar
	}
	if strings.Contains(g, "secundaria") {
		return LevelSecundaria
	}
	return LevelPrimaria
}

// Phase maps a grade onto its curriculum phase (Fase 2 through Fase 6).
func Phase(grade string) string {
	g := strings.ToLower(grade)
	if strings.Contains(g, "preescolar") || strings.Contains(g, "kinder") {
		return "Fase 2"
	}
	if strings.Contains(g, "secundaria") {
		return "Fase 6"
	}
	switch {
	case containsAny(g, "1°", "2°", "primero", "segundo"):
		return "Fase 3"
	case containsAny(g, "3°", "4°", "tercero", "cuarto"):
		return "Fase 4"
	case containsAny(g, "5°", "6°", "quinto", "sexto"):
		return "Fase 5"
	}
	return "Fase 4"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NarrativeInstruction tells the model how to handle the chosen narrative;
// "Random" asks it to invent one.
func NarrativeInstruction(p *LessonParams) string {
	if p.Narrative == "Random" {
		return "SE EXTREMADAMENTE CREATIVO: Elige una narrativa sorpresa (ciencia ficción, espionaje, etc.) para toda la clase."
	}
	return fmt.Sprintf("Toda la clase debe girar en torno a la narrativa: %q. Adapta el lenguaje y las dinámicas a este tema.", p.ChosenNarrative())
}

// BuildSystemPrompt assembles the full instruction block for the lesson
// model: level intro, safety policy, curriculum rules, level specifics, the
// teacher's optional refinements and the exact output structure.
func BuildSystemPrompt(p *LessonParams, now time.Time) string {
	level := DetectEducationalLevel(p.Grade)
	phase := Phase(p.Grade)

	var specifics, intro string
	switch level {
	case LevelPreescolar:
		specifics = preescolarSpecifics
		intro = fmt.Sprintf("Eres un asistente pedagógico experto en PREESCOLAR (%s) bajo la Nueva Escuela Mexicana (Plan de Estudios 2022).", phase)
	case LevelSecundaria:
		specifics = secundariaSpecifics
		intro = fmt.Sprintf("Eres un asistente pedagógico experto en SECUNDARIA (%s) bajo la Nueva Escuela Mexicana (Plan de Estudios 2022).", phase)
	default:
		specifics = primariaSpecifics
		intro = fmt.Sprintf("Eres un asistente pedagógico experto en PRIMARIA (%s) bajo la Nueva Escuela Mexicana (Plan de Estudios 2022).", phase)
	}

	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\nGENERA EL CONTENIDO FINAL EN FORMATO LISTO PARA PDF siguiendo EXACTAMENTE la estructura y el orden que se indica abajo.\n\n")
	b.WriteString(safetyPolicy)
	b.WriteString("\n\n")
	b.WriteString(nemRules)
	b.WriteString("\n\n")
	b.WriteString(specifics)
	b.WriteString("\n\n")
	writeNEMRefinements(&b, p.NEMParams)
	b.WriteString(formatRules)
	b.WriteString("\n- ")
	b.WriteString(NarrativeInstruction(p))
	b.WriteString("\n\n")
	b.WriteString(structure(p, now))
	return b.String()
}

func writeNEMRefinements(b *strings.Builder, nem *NEMParams) {
	if nem == nil {
		return
	}
	if nem.Formality == "formal" {
		b.WriteString("MODO FORMAL SEP: Usa lenguaje técnico-pedagógico apropiado para revisión por supervisión o dirección. Sé preciso en términos NEM.\n")
	}
	if nem.PedagogicalIntent != "" {
		fmt.Fprintf(b, "INTENCIÓN PEDAGÓGICA DEL DOCENTE: %q. Usa esto para orientar el PDA y las actividades.\n", nem.PedagogicalIntent)
	}
	if len(nem.Emphasis) > 0 {
		labels := make([]string, 0, len(nem.Emphasis))
		for _, e := range nem.Emphasis {
			if label, ok := emphasisLabels[e]; ok {
				labels = append(labels, label)
			} else {
				labels = append(labels, e)
			}
		}
		fmt.Fprintf(b, "ÉNFASIS SOCIAL SOLICITADO: %s. Integra estos temas de manera natural en la clase.\n", strings.Join(labels, ", "))
	}
	if label, ok := decisionLabels[nem.DecisionLevel]; ok {
		fmt.Fprintf(b, "NIVEL DE DECISIÓN DEL ALUMNADO: %s. Diseña la actividad central acorde a este nivel.\n", label)
	}
	b.WriteString("\n")
}

func structure(p *LessonParams, now time.Time) string {
	narrative := p.ChosenNarrative()
	if narrative == "" {
		narrative = "Sorpresa"
	}

	return fmt.Sprintf(`ESTRUCTURA EXACTA A SEGUIR:

# PLANEACIÓN DIDÁCTICA NEM
Generado por MAÑANA · %s

---

## TARJETA DE DATOS RÁPIDOS
Tema: %s
Grado: %s (%s alumnos)
Duración: %s min
Enfoque: %s | Estado del grupo: %s
Narrativa: %s

---

## ALINEACIÓN NEM
Campo formativo: [uno de los 4 campos formativos oficiales]
Ejes articuladores: [ejes que apliquen]
PDA sugerido: [1 enunciado máximo, alineado al Plan 2022]
Justificación pedagógica breve: [1-2 líneas explicando por qué esta clase se relaciona con la NEM desde el enfoque humano y comunitario]

---

## INICIO / ACTIVACIÓN ([minutos sugeridos])
Actividad: [nombre creativo de la activación bajo la narrativa]

Qué hacer:
– Acción concreta 1
– Acción concreta 2
– Acción concreta 3

Pregunta problematizadora (NEM):
"[Pregunta abierta que invite a reflexionar sobre el tema, conectando con la vida o experiencias de los alumnos]"

Qué decir:
"Frase literal breve y motivadora para iniciar la sesión bajo la narrativa"

---

## ACTIVIDAD CENTRAL ([minutos sugeridos])
Actividad: [nombre del reto principal bajo la narrativa]

Organización:
– Tipo de agrupamiento sugerido

Paso a paso:
1. Acción concreta
2. Acción concreta
3. Acción concreta
4. Acción concreta
5. Acción concreta

Decisión del grupo (pensamiento crítico):
"[Momento donde el grupo debe tomar una decisión, interpretar o elegir cómo abordar algo - no solo ejecutar]"

---

## CIERRE / EVALUACIÓN ([minutos sugeridos])
Actividad: [nombre del cierre bajo la narrativa]

Cómo evaluar:
– Qué observar
– Pregunta clave
– Evidencia concreta del aprendizaje

Conexión pasado-presente (NEM):
"[Pregunta que conecte el tema con la vida actual de los alumnos]"

---

## 📝 MATERIALES (CHECKLIST)
☐ [Material esencial 1]
☐ [Material esencial 2]
☐ [Material esencial 3]
☐ [Material opcional]`,
		now.Format("02/01/2006"),
		p.Topic, p.Grade, p.GroupSize, p.Duration, p.Tone, p.Status, narrative)
}

// BuildUserPrompt is the short request that accompanies the system prompt.
func BuildUserPrompt(p *LessonParams) string {
	narrative := p.ChosenNarrative()
	if narrative == "" {
		narrative = "libre"
	}
	return fmt.Sprintf("Genera la planeación para el tema %q dirigida a %s con un enfoque %s. El grupo está %s. Usa la narrativa: %s.",
		p.Topic, p.Grade, p.Tone, p.Status, narrative)
}

// BuildPlanBSystemPrompt asks for a three-step rescue plan when a class is
// falling apart mid-session.
func BuildPlanBSystemPrompt(p *LessonParams) string {
	return fmt.Sprintf(`Eres un maestro experto en manejo de grupos difíciles.
Da un "PLAN B" de rescate rápido para %s sobre %q.
Considera un grupo de %s alumnos que están %q.
Sin materiales extras. 3 pasos claros y directos. Estilo scannable. No incluyas objetivos.
Aplica las mismas reglas de seguridad: Si el tema es violento o inapropiado, responde "SEGURIDAD_BLOQUEADA".`,
		p.Grade, p.Topic, p.GroupSize, p.Status)
}

// PlanBUserPrompt is the fixed request used for Plan B generations.
const PlanBUserPrompt = "Genera un Plan B de emergencia con un estilo práctico."
