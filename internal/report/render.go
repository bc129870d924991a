package report

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"
)

// Page geometry in millimetres (A4 portrait).
const (
	pageHeight   = 297.0
	margin       = 15.0
	contentWidth = 210.0 - 2*margin

	lineHeight    = 6.0
	badgeHeight   = 6.0
	labelWidth    = 40.0
	snapshotSize  = 80.0
	thumbnailSize = 30.0
	thumbnailGap  = 4.0
)

var headerGray = [3]int{0xf1, 0xf5, 0xf9}

// Render lays doc out on A4 pages and returns the PDF bytes. Each pin's
// metadata block starts on a fresh page when it would not fit on the
// current one; photo strips flow separately.
func Render(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetTitle("Rapport - "+doc.ProjectName, true)
	pdf.SetCreator("pinreport", true)
	pdf.AliasNbPages("")

	r := &renderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(0x66, 0x66, 0x66)
		pdf.CellFormat(0, 4, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	r.header(doc)
	r.summary(doc.Summary)
	for i, s := range doc.Sections {
		r.section(i, s)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type renderer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (r *renderer) header(doc Document) {
	pdf := r.pdf
	pdf.SetTextColor(0x66, 0x66, 0x66)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentWidth/2, lineHeight, r.tr(doc.Company), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentWidth/2, lineHeight, doc.Date, "", 1, "R", false, 0, "")

	pdf.Ln(4)
	pdf.SetTextColor(0x11, 0x18, 0x27)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, r.tr("Rapport de tâches"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 13)
	pdf.CellFormat(0, 8, r.tr(doc.ProjectName), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (r *renderer) summary(s Summary) {
	pdf := r.pdf
	pdf.SetFillColor(headerGray[0], headerGray[1], headerGray[2])
	pdf.SetTextColor(0x11, 0x18, 0x27)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(labelWidth, lineHeight+1, r.tr("Période"), "", 0, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight+1, s.Period, "", 1, "L", true, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(labelWidth, lineHeight+1, r.tr("Tâches"), "", 0, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight+1, fmt.Sprintf("%d", s.Total), "", 1, "L", true, 0, "")
	pdf.Ln(3)

	r.countRow(s.ByStatus)
	if len(s.ByPlan) > 1 {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0x66, 0x66, 0x66)
		for _, c := range s.ByPlan {
			pdf.CellFormat(0, 5, r.tr(fmt.Sprintf("%s : %d", c.Label, c.Count)), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(6)
}

// countRow prints badges with counts horizontally, wrapping at the margin.
func (r *renderer) countRow(counts []Count) {
	pdf := r.pdf
	x := margin
	for _, c := range counts {
		label := r.tr(fmt.Sprintf("%s : %d", c.Label, c.Count))
		w := r.badgeWidth(label)
		if x+w > margin+contentWidth {
			pdf.Ln(badgeHeight + 2)
			x = margin
		}
		r.badge(x, pdf.GetY(), label, c.Color)
		x += w + 3
	}
	pdf.Ln(badgeHeight + 2)
}

func (r *renderer) badgeWidth(text string) float64 {
	r.pdf.SetFont("Helvetica", "B", 9)
	return r.pdf.GetStringWidth(text) + 6
}

// badge draws a rounded colored label with white text and returns its width.
func (r *renderer) badge(x, y float64, text, color string) float64 {
	pdf := r.pdf
	w := r.badgeWidth(text)
	red, green, blue, ok := parseHex(color)
	if !ok {
		red, green, blue, _ = parseHex(NeutralColor)
	}
	pdf.SetFillColor(red, green, blue)
	pdf.RoundedRect(x, y, w, badgeHeight, 1.5, "1234", "F")
	pdf.SetTextColor(0xff, 0xff, 0xff)
	pdf.SetXY(x, y)
	pdf.CellFormat(w, badgeHeight, text, "", 0, "C", false, 0, "")
	pdf.SetTextColor(0x11, 0x18, 0x27)
	return w
}

// blockHeight estimates the unbreakable part of a section.
func (r *renderer) blockHeight(s Section) float64 {
	h := 9 + badgeHeight + 3
	r.pdf.SetFont("Helvetica", "", 10)
	for _, f := range s.Fields {
		lines := len(r.pdf.SplitText(r.tr(f.Value), contentWidth-labelWidth))
		if lines < 1 {
			lines = 1
		}
		h += float64(lines) * lineHeight
	}
	if len(s.Snapshot) > 0 {
		h += snapshotSize + 3
	}
	return h + lineHeight + 2
}

func (r *renderer) section(i int, s Section) {
	pdf := r.pdf
	if pdf.GetY()+r.blockHeight(s) > pageHeight-margin {
		pdf.AddPage()
	}

	pdf.SetTextColor(0x11, 0x18, 0x27)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 9, r.tr(fmt.Sprintf("%d. %s", s.Index, s.Name)), "", 1, "L", false, 0, "")

	y := pdf.GetY()
	w := r.badge(margin, y, r.tr(s.Category.Label), s.Category.Color)
	r.badge(margin+w+3, y, r.tr(s.Status.Label), s.Status.Color)
	pdf.SetXY(margin, y+badgeHeight+3)

	for _, f := range s.Fields {
		r.field(f)
	}

	if len(s.Snapshot) > 0 {
		pdf.Ln(3)
		y := pdf.GetY()
		if h, ok := r.image(fmt.Sprintf("snapshot-%d", i), Image{Data: s.Snapshot, Type: "PNG"}, margin, y, snapshotSize, 0); ok {
			pdf.SetDrawColor(0xcb, 0xd5, 0xe1)
			pdf.Rect(margin, y, snapshotSize, h, "D")
			pdf.SetY(y + h)
		}
	}

	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(0x66, 0x66, 0x66)
	pdf.CellFormat(0, lineHeight, r.tr(orEmpty(s.PlanName)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	r.photos(i, s.Photos)

	if s.Divider {
		pdf.Ln(4)
		pdf.SetDrawColor(0xe2, 0xe8, 0xf0)
		pdf.Line(margin, pdf.GetY(), margin+contentWidth, pdf.GetY())
		pdf.Ln(6)
	}
}

func (r *renderer) field(f Field) {
	pdf := r.pdf
	y := pdf.GetY()
	pdf.SetFont("Helvetica", "", 10)
	lines := len(pdf.SplitText(r.tr(f.Value), contentWidth-labelWidth))
	if lines < 1 {
		lines = 1
	}

	pdf.SetFillColor(headerGray[0], headerGray[1], headerGray[2])
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(labelWidth, float64(lines)*lineHeight, r.tr(f.Label), "1", 0, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(margin+labelWidth, y)
	pdf.MultiCell(contentWidth-labelWidth, lineHeight, r.tr(f.Value), "1", "L", false)
	pdf.SetX(margin)
}

func (r *renderer) photos(i int, photos []Image) {
	pdf := r.pdf
	if len(photos) == 0 {
		return
	}
	x := margin
	y := pdf.GetY()
	for j, p := range photos {
		if x+thumbnailSize > margin+contentWidth {
			x = margin
			y += thumbnailSize + thumbnailGap
		}
		if y+thumbnailSize > pageHeight-margin {
			pdf.AddPage()
			y = pdf.GetY()
		}
		if _, ok := r.image(fmt.Sprintf("photo-%d-%d", i, j), p, x, y, thumbnailSize, thumbnailSize); ok {
			x += thumbnailSize + thumbnailGap
		}
	}
	pdf.SetY(y + thumbnailSize)
}

// image embeds img at (x, y) with width w and returns the drawn height. A
// zero h keeps the aspect ratio. An undecodable image is skipped instead of
// failing the document.
func (r *renderer) image(name string, img Image, x, y, w, h float64) (float64, bool) {
	pdf := r.pdf
	opts := fpdf.ImageOptions{ImageType: img.Type, ReadDpi: false}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if pdf.Err() || info == nil {
		pdf.ClearError()
		return 0, false
	}
	if h == 0 && info.Width() > 0 {
		h = w * info.Height() / info.Width()
	}
	pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return h, true
}
