package pdfexport

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Color scheme - warm paper theme matching the web app
var (
	colorPrimary   = [3]int{194, 65, 12}   // Burnt orange
	colorTextDark  = [3]int{41, 37, 36}    // Near black
	colorTextMuted = [3]int{120, 113, 108} // Muted brown-gray
	colorRule      = [3]int{214, 211, 209} // Divider lines
	colorHeaderBg  = [3]int{250, 245, 235} // Cream band
)

// Lesson is what the exporter needs to render a plan.
type Lesson struct {
	Topic     string
	Grade     string
	Duration  string
	Content   string
	CreatedAt time.Time
}

// Generator renders lesson plans as printable PDFs.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the lesson into an A4 PDF. The content is the markdown-ish
// text the model produced; headings and checklist markers get light styling,
// everything else flows as body text.
func (g *Generator) Generate(lesson *Lesson) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	g.writeHeader(pdf, tr, lesson)
	g.writeBody(pdf, tr, lesson.Content)
	g.addPageNumbers(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeHeader(pdf *fpdf.Fpdf, tr func(string) string, lesson *Lesson) {
	pageWidth, _ := pdf.GetPageSize()

	pdf.SetFillColor(colorHeaderBg[0], colorHeaderBg[1], colorHeaderBg[2])
	pdf.Rect(0, 0, pageWidth, 38, "F")

	pdf.SetY(10)
	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 10, tr("MAÑANA"), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	meta := fmt.Sprintf("%s · %s · %s min · %s",
		lesson.Topic, lesson.Grade, lesson.Duration, lesson.CreatedAt.Format("02/01/2006"))
	pdf.CellFormat(0, 6, tr(meta), "", 1, "L", false, 0, "")

	pdf.SetY(44)
}

func (g *Generator) writeBody(pdf *fpdf.Fpdf, tr func(string) string, content string) {
	for _, rawLine := range strings.Split(content, "\n") {
		line := strings.TrimRight(rawLine, " \t")

		switch {
		case strings.TrimSpace(line) == "---":
			pdf.Ln(2)
			pdf.SetDrawColor(colorRule[0], colorRule[1], colorRule[2])
			x := pdf.GetX()
			y := pdf.GetY()
			pdf.Line(x, y, x+170, y)
			pdf.Ln(4)
		case strings.HasPrefix(line, "## "):
			pdf.Ln(2)
			pdf.SetFont("Arial", "B", 13)
			pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
			pdf.MultiCell(0, 7, tr(strings.TrimPrefix(line, "## ")), "", "L", false)
			pdf.Ln(1)
		case strings.HasPrefix(line, "# "):
			pdf.SetFont("Arial", "B", 16)
			pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
			pdf.MultiCell(0, 8, tr(strings.TrimPrefix(line, "# ")), "", "L", false)
			pdf.Ln(1)
		case strings.TrimSpace(line) == "":
			pdf.Ln(3)
		default:
			pdf.SetFont("Arial", "", 11)
			pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
			pdf.MultiCell(0, 5.5, tr(line), "", "L", false)
		}
	}
}

func (g *Generator) addPageNumbers(pdf *fpdf.Fpdf) {
	total := pdf.PageCount()
	for i := 1; i <= total; i++ {
		pdf.SetPage(i)
		pdf.SetY(-18)
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.CellFormat(0, 10, fmt.Sprintf("%d / %d", i, total), "", 0, "C", false, 0, "")
	}
}
