package labels

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"vaultpos/internal/domain"
	"vaultpos/internal/payment"
	"vaultpos/internal/qrid"
)

// Renderer turns label text into a PNG image.
type Renderer interface {
	Render(text string, pixels int) ([]byte, error)
}

type QRRenderer struct{}

func (QRRenderer) Render(text string, pixels int) ([]byte, error) {
	return qrid.PNG(text, pixels)
}

const (
	pageMargin = 10.0
	columns    = 3
	rows       = 5
	cellWidth  = (210.0 - 2*pageMargin) / columns
	cellHeight = (297.0 - 2*pageMargin) / rows
	codeSize   = 34.0
	lineHeight = 4.2
	qrPixels   = 220
)

// Sheet lays labels out on A4 pages, fifteen to a page.
type Sheet struct {
	Renderer       Renderer
	CurrencySymbol string
}

func NewSheet(renderer Renderer, currencySymbol string) *Sheet {
	if renderer == nil {
		renderer = QRRenderer{}
	}
	return &Sheet{Renderer: renderer, CurrencySymbol: currencySymbol}
}

// Write renders units to w as a PDF and returns the page count. Identical
// payloads share one embedded image.
func (s *Sheet) Write(w io.Writer, units []Unit) (int, error) {
	if len(units) == 0 {
		return 0, fmt.Errorf("no labels to print")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	images := map[string]string{}
	perPage := columns * rows
	for i, unit := range units {
		slot := i % perPage
		if slot == 0 {
			pdf.AddPage()
		}
		x := pageMargin + float64(slot%columns)*cellWidth
		y := pageMargin + float64(slot/columns)*cellHeight

		text := unit.Payload()
		name, ok := images[text]
		if !ok {
			img, err := s.Renderer.Render(text, qrPixels)
			if err != nil {
				return 0, fmt.Errorf("render label %s/%s: %w", unit.Item.ID, unit.Size, err)
			}
			name = fmt.Sprintf("qr-%d", len(images))
			pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img))
			images[text] = name
		}

		pdf.ImageOptions(name, x+(cellWidth-codeSize)/2, y+2, codeSize, codeSize, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

		pdf.SetXY(x, y+codeSize+3)
		for j, caption := range s.captions(unit) {
			if j == 0 {
				pdf.SetFont("Arial", "B", 9)
			} else {
				pdf.SetFont("Arial", "", 8)
			}
			pdf.SetX(x)
			pdf.CellFormat(cellWidth, lineHeight, tr(truncate(caption, 34)), "", 1, "C", false, 0, "")
		}
	}

	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("write label pdf: %w", err)
	}
	return pdf.PageCount(), nil
}

func (s *Sheet) captions(unit Unit) []string {
	brand := strings.TrimSpace(unit.Item.Brand)
	if brand == "" {
		brand = "-"
	}
	lines := []string{unit.Item.Name, brand}
	if unit.Size != domain.SizeNA && unit.Size != "" {
		lines = append(lines, "Size: "+string(unit.Size))
	}
	price := payment.FormatAmount(unit.Item.PriceCents)
	if s.CurrencySymbol != "" {
		price = s.CurrencySymbol + " " + price
	}
	return append(lines, price)
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}
