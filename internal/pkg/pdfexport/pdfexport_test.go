package pdfexport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesValidPDF(t *testing.T) {
	g := NewGenerator()

	data, err := g.Generate(&Lesson{
		Topic:     "La Revolución Mexicana",
		Grade:     "4° Primaria",
		Duration:  "50",
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Content: "# PLANEACIÓN DIDÁCTICA NEM\n\n---\n\n## TARJETA DE DATOS RÁPIDOS\nTema: La Revolución Mexicana\n\n---\n\n## INICIO / ACTIVACIÓN (10 min)\n– Acción concreta 1\n– Acción concreta 2\n",
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]), "output must start with the PDF magic bytes")
}

func TestGenerateEmptyContent(t *testing.T) {
	g := NewGenerator()

	data, err := g.Generate(&Lesson{Topic: "Tema", Grade: "Grado", Duration: "30", CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestGenerateLongContentPaginates(t *testing.T) {
	g := NewGenerator()

	content := ""
	for i := 0; i < 300; i++ {
		content += "Línea de contenido pedagógico que ocupa espacio en la página.\n"
	}

	data, err := g.Generate(&Lesson{Topic: "Largo", Grade: "6° Primaria", Duration: "90", Content: content, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.Greater(t, len(data), 4000)
}
