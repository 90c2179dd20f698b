package artifact

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	pdfMargin     = 19.05 // 0.75in
	sectionIndent = 4.0
	bodyLine      = 5.5
)

type rgb struct{ r, g, b int }

var (
	titleColor   = rgb{0x2E, 0x86, 0xAB}
	mutedColor   = rgb{0x66, 0x66, 0x66}
	headerColor  = rgb{0xE9, 0x4F, 0x37}
	borderColor  = rgb{0xCC, 0xCC, 0xCC}
	defaultColor = rgb{0x00, 0x00, 0x00}
)

type pdfWriter struct {
	dir    string
	logger zerolog.Logger
}

func (w *pdfWriter) Format() Format {
	return FormatPDF
}

func (w *pdfWriter) Write(ctx context.Context, batch Batch) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc := RenderPDF(batch)
	if doc.Err() {
		return "", fmt.Errorf("render pdf artifact: %w", doc.Error())
	}

	path := filepath.Join(w.dir, FileName(FormatPDF, batch.GeneratedAt))
	if err := writeFile(path, doc.Output); err != nil {
		return "", fmt.Errorf("write pdf artifact: %w", err)
	}

	w.logger.Info().Str("path", path).Int("sections", len(batch.Sections)).Msg("pdf artifact written")
	return path, nil
}

// RenderPDF lays out the batch: a title block followed by one bordered section
// per student. Report bodies are read as markdown so that paragraphs, lists
// and emphasis from the model survive.
func RenderPDF(batch Batch) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)

	title := batch.Title
	if title == "" {
		title = "SmartLearners.ai"
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("gema-weekly-report", true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	write := func(s string) string { return tr(latinOnly(s)) }

	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - 2*pdfMargin

	setColor(pdf, titleColor)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, write(title), "", 1, "C", false, 0, "")

	setColor(pdf, defaultColor)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Weekly Performance Report", "", 1, "C", false, 0, "")

	setColor(pdf, mutedColor)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated on "+batch.GeneratedAt.Format("January 02, 2006 at 03:04 PM"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetDrawColor(titleColor.r, titleColor.g, titleColor.b)
	pdf.SetLineWidth(0.7)
	pdf.Line(pdfMargin, pdf.GetY(), pdfMargin+contentWidth, pdf.GetY())
	pdf.SetLineWidth(0.2)
	pdf.Ln(8)

	for _, section := range batch.Sections {
		renderSection(pdf, section, contentWidth, write)
	}

	return pdf
}

func renderSection(pdf *fpdf.Fpdf, section Section, contentWidth float64, write func(string) string) {
	startPage := pdf.PageNo()
	startY := pdf.GetY()

	pdf.SetLeftMargin(pdfMargin + sectionIndent)
	pdf.SetRightMargin(pdfMargin + sectionIndent)
	pdf.SetX(pdfMargin + sectionIndent)
	pdf.Ln(3)

	setColor(pdf, headerColor)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 7, write("Student: "+section.Heading), "", "L", false)
	pdf.Ln(2)

	setColor(pdf, defaultColor)
	pdf.SetFont("Helvetica", "", 11)
	renderMarkdown(pdf, CleanReportText(section.Body), write)

	pdf.SetLeftMargin(pdfMargin)
	pdf.SetRightMargin(pdfMargin)
	pdf.SetX(pdfMargin)
	pdf.Ln(2)

	endY := pdf.GetY()
	pdf.SetDrawColor(borderColor.r, borderColor.g, borderColor.b)
	if pdf.PageNo() == startPage {
		pdf.Rect(pdfMargin, startY, contentWidth, endY-startY, "D")
	} else {
		// The section spans pages: close it with a rule on the last page.
		pdf.Line(pdfMargin, endY, pdfMargin+contentWidth, endY)
	}
	pdf.Ln(8)
}

func setColor(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}

// renderMarkdown writes report prose. Blank lines separate paragraphs; single
// newlines inside a paragraph are kept as line breaks.
func renderMarkdown(pdf *fpdf.Fpdf, body string, write func(string) string) {
	source := []byte(body)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	r := &markdownRenderer{pdf: pdf, source: source, write: write}
	_ = ast.Walk(doc, r.walk)
}

type markdownRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	write     func(string) string
	bold      bool
	italic    bool
	listLevel int
}

func (r *markdownRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont("Helvetica", style, 11)
}

func (r *markdownRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.bold = entering
		r.updateFont()
		if !entering {
			r.pdf.Ln(bodyLine + 1)
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(bodyLine + 1.5)
		}
	case *ast.TextBlock:
		if !entering {
			r.pdf.Ln(bodyLine)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(bodyLine, r.write(string(node.Segment.Value(r.source))))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.pdf.Ln(bodyLine)
			}
		}
	case *ast.String:
		if entering {
			r.pdf.Write(bodyLine, r.write(string(node.Value)))
		}
	case *ast.CodeSpan:
		if entering {
			r.pdf.Write(bodyLine, r.write(string(node.Text(r.source))))
		}
		return ast.WalkSkipChildren, nil
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(1.5)
			}
		}
	case *ast.ListItem:
		if entering {
			indent := float64(r.listLevel-1) * 5.0
			left, _, _, _ := r.pdf.GetMargins()
			r.pdf.SetX(left + indent)
			r.pdf.Write(bodyLine, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			left, _, right, _ := r.pdf.GetMargins()
			pageWidth, _ := r.pdf.GetPageSize()
			r.pdf.Ln(2)
			r.pdf.Line(left, r.pdf.GetY(), pageWidth-right, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

var cp1252Extras = map[rune]bool{
	'€': true, '‚': true, 'ƒ': true, '„': true, '…': true, '†': true, '‡': true, 'ˆ': true,
	'‰': true, 'Š': true, '‹': true, 'Œ': true, 'Ž': true, '‘': true, '’': true, '“': true,
	'”': true, '•': true, '–': true, '—': true, '˜': true, '™': true, 'š': true, '›': true,
	'œ': true, 'ž': true, 'Ÿ': true,
}

// latinOnly drops runes the core PDF fonts cannot encode, such as emoji.
func latinOnly(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			builder.WriteRune(r)
		case r < 0x20:
		case r < 0x80, r >= 0xA0 && r <= 0xFF, cp1252Extras[r]:
			builder.WriteRune(r)
		case unicode.IsSpace(r):
			builder.WriteRune(' ')
		}
	}
	return builder.String()
}
