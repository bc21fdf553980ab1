package lessongen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	text       string
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	return f.text, f.err
}

func TestGenerateLesson(t *testing.T) {
	primary := &fakeCompleter{text: "# PLANEACIÓN DIDÁCTICA NEM\n..."}
	s := NewService(primary, &fakeCompleter{})

	content, err := s.GenerateLesson(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, primary.text, content)
	assert.Contains(t, primary.lastSystem, "Nueva Escuela Mexicana")
	assert.Contains(t, primary.lastUser, "La Revolución Mexicana")
}

func TestGenerateLessonSafetyBlocked(t *testing.T) {
	primary := &fakeCompleter{text: "SEGURIDAD_BLOQUEADA"}
	s := NewService(primary, &fakeCompleter{})

	_, err := s.GenerateLesson(context.Background(), testParams())
	assert.ErrorIs(t, err, ErrSafetyBlocked)
}

func TestGenerateLessonSentinelAnywhereBlocks(t *testing.T) {
	primary := &fakeCompleter{text: "Claro, aquí va: SEGURIDAD_BLOQUEADA por el tema."}
	s := NewService(primary, &fakeCompleter{})

	_, err := s.GenerateLesson(context.Background(), testParams())
	assert.ErrorIs(t, err, ErrSafetyBlocked)
}

func TestGenerateLessonEmptyContent(t *testing.T) {
	s := NewService(&fakeCompleter{text: "   "}, &fakeCompleter{})

	_, err := s.GenerateLesson(context.Background(), testParams())
	assert.Error(t, err)
}

func TestGenerateLessonModelError(t *testing.T) {
	s := NewService(&fakeCompleter{err: errors.New("rate limited")}, &fakeCompleter{})

	_, err := s.GenerateLesson(context.Background(), testParams())
	assert.Error(t, err)
}

func TestGenerateLessonInvalidParams(t *testing.T) {
	primary := &fakeCompleter{text: "plan"}
	s := NewService(primary, &fakeCompleter{})

	_, err := s.GenerateLesson(context.Background(), &LessonParams{Topic: "sin grado"})
	assert.Error(t, err)
	assert.Zero(t, primary.calls, "invalid params never reach the model")
}

func TestGeneratePlanBUsesFallbackModel(t *testing.T) {
	primary := &fakeCompleter{text: "no"}
	fallback := &fakeCompleter{text: "1. Respira\n2. Cambia de actividad\n3. Círculo de diálogo"}
	s := NewService(primary, fallback)

	content, err := s.GeneratePlanB(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, fallback.text, content)
	assert.Zero(t, primary.calls)
	assert.Contains(t, fallback.lastSystem, "PLAN B")
}

func TestGeneratePlanBSafetyBlocked(t *testing.T) {
	s := NewService(&fakeCompleter{}, &fakeCompleter{text: "SEGURIDAD_BLOQUEADA"})

	_, err := s.GeneratePlanB(context.Background(), testParams())
	assert.ErrorIs(t, err, ErrSafetyBlocked)
}
