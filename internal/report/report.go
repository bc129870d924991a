// Package report turns a selection of pins into a structured document and
// renders it as PDF.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"pinreport/internal/models"
)

// Fallbacks for missing or unresolved references.
const (
	UnknownLabel = "Inconnu"
	NeutralColor = "#666"
	OtherBucket  = "Autre"
	UnknownKey   = "unknown"
	Empty        = "-"
)

// DateLayout formats every date in the report (dd/MM/yyyy).
const DateLayout = "02/01/2006"

// Image is an embeddable picture. Type is "PNG" or "JPG".
type Image struct {
	Data []byte
	Type string
}

// Pin is the subset of a pin record that may reach the document. Anything
// not copied by NewPin never does.
type Pin struct {
	ID            int64
	Name          string
	Note          string
	PinNumber     int64
	ProjectNumber int64
	StatusID      *int64
	CategoryID    *int64
	CreatorName   string
	AssigneeName  string
	DueDate       *time.Time
	PlanName      string

	Snapshot []byte
	Photos   []Image
}

// NewPin projects a store record onto the fields the report uses.
func NewPin(p models.Pin) Pin {
	out := Pin{
		ID:         p.ID,
		Name:       p.Name,
		Note:       p.Note,
		PinNumber:  p.PinNumber,
		StatusID:   p.StatusID,
		CategoryID: p.CategoryID,
		DueDate:    p.DueDate,
	}
	if p.Creator != nil {
		out.CreatorName = p.Creator.DisplayName()
	}
	if p.Assignee != nil {
		out.AssigneeName = p.Assignee.DisplayName()
	}
	if p.Plan != nil {
		out.PlanName = p.Plan.Name
	}
	if p.Project != nil {
		out.ProjectNumber = p.Project.ProjectNumber
	}
	return out
}

// Input carries everything Build needs.
type Input struct {
	Company     string
	Project     models.Project
	Pins        []Pin
	Categories  []models.Category
	Statuses    []models.Status
	GeneratedAt time.Time
}

// Badge is a colored label.
type Badge struct {
	Label string
	Color string
}

// Count is a badge with the number of pins behind it.
type Count struct {
	Badge
	Count int
}

// Summary is the block printed under the header.
type Summary struct {
	// Period comes from the first pin's due date only.
	Period     string
	Total      int
	ByStatus   []Count
	ByCategory []Count
	ByPlan     []Count
}

// Field is one row of a pin's metadata table.
type Field struct {
	Label string
	Value string
}

// Section is the block rendered for one pin.
type Section struct {
	Index    int
	Name     string
	Category Badge
	Status   Badge
	Fields   []Field
	Snapshot []byte
	PlanName string
	Photos   []Image
	// Divider is set on every section except the last.
	Divider bool
}

// Document is the structured report, independent of the PDF layout.
type Document struct {
	Company     string
	ProjectName string
	Date        string
	GeneratedAt time.Time
	Summary     Summary
	Sections    []Section
}

// Group is a bucket of pins sharing a key, in first-seen order.
type Group struct {
	Key  string
	Pins []Pin
}

// GroupBy buckets pins by key, preserving the order keys first appear.
func GroupBy(pins []Pin, key func(Pin) string) []Group {
	index := map[string]int{}
	var groups []Group
	for _, p := range pins {
		k := key(p)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Pins = append(groups[i].Pins, p)
	}
	return groups
}

// PlanKey groups by plan name.
func PlanKey(p Pin) string {
	if p.PlanName == "" {
		return OtherBucket
	}
	return p.PlanName
}

// StatusKey groups by status id.
func StatusKey(p Pin) string { return idKey(p.StatusID) }

// CategoryKey groups by category id.
func CategoryKey(p Pin) string { return idKey(p.CategoryID) }

func idKey(id *int64) string {
	if id == nil {
		return UnknownKey
	}
	return strconv.FormatInt(*id, 10)
}

// Build lays out the document structure for in. It never fails: unresolved
// references fall back to UnknownLabel and NeutralColor.
func Build(in Input) Document {
	statuses := map[string]models.Status{}
	for _, s := range in.Statuses {
		statuses[strconv.FormatInt(s.ID, 10)] = s
	}
	categories := map[string]models.Category{}
	for _, c := range in.Categories {
		categories[strconv.FormatInt(c.ID, 10)] = c
	}

	doc := Document{
		Company:     in.Company,
		ProjectName: in.Project.Name,
		Date:        in.GeneratedAt.Format(DateLayout),
		GeneratedAt: in.GeneratedAt,
		Summary: Summary{
			Period: Empty,
			Total:  len(in.Pins),
		},
	}
	if len(in.Pins) > 0 && in.Pins[0].DueDate != nil {
		doc.Summary.Period = in.Pins[0].DueDate.Format(DateLayout)
	}

	doc.Summary.ByStatus = counts(GroupBy(in.Pins, StatusKey), func(key string) (Badge, int64, bool) {
		s, ok := statuses[key]
		if !ok {
			return Badge{Label: UnknownLabel, Color: NeutralColor}, 0, false
		}
		return Badge{Label: s.Name, Color: colorOr(s.Color)}, s.Order, true
	})
	doc.Summary.ByCategory = counts(GroupBy(in.Pins, CategoryKey), func(key string) (Badge, int64, bool) {
		c, ok := categories[key]
		if !ok {
			return Badge{Label: OtherBucket, Color: NeutralColor}, 0, false
		}
		return Badge{Label: c.Name, Color: NeutralColor}, c.Order, true
	})
	for _, g := range GroupBy(in.Pins, PlanKey) {
		doc.Summary.ByPlan = append(doc.Summary.ByPlan, Count{Badge: Badge{Label: g.Key, Color: NeutralColor}, Count: len(g.Pins)})
	}

	for i, p := range in.Pins {
		doc.Sections = append(doc.Sections, section(i, p, in.Project, statuses, categories, i < len(in.Pins)-1))
	}
	return doc
}

// counts resolves group keys to badges, known entries first by display order.
func counts(groups []Group, resolve func(string) (Badge, int64, bool)) []Count {
	type row struct {
		count Count
		order int64
		known bool
	}
	rows := make([]row, 0, len(groups))
	for _, g := range groups {
		b, order, known := resolve(g.Key)
		rows = append(rows, row{count: Count{Badge: b, Count: len(g.Pins)}, order: order, known: known})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].known != rows[j].known {
			return rows[i].known
		}
		return rows[i].order < rows[j].order
	})
	out := make([]Count, len(rows))
	for i, r := range rows {
		out[i] = r.count
	}
	return out
}

func section(i int, p Pin, project models.Project, statuses map[string]models.Status, categories map[string]models.Category, divider bool) Section {
	s := Section{
		Index:    i + 1,
		Name:     p.Name,
		Status:   Badge{Label: UnknownLabel, Color: NeutralColor},
		Category: Badge{Label: "?", Color: NeutralColor},
		Snapshot: p.Snapshot,
		PlanName: p.PlanName,
		Photos:   p.Photos,
		Divider:  divider,
	}
	if st, ok := statuses[StatusKey(p)]; ok {
		s.Status = Badge{Label: st.Name, Color: colorOr(st.Color)}
	}

	categoryName := Empty
	if p.CategoryID != nil {
		categoryName = UnknownLabel
		if c, ok := categories[CategoryKey(p)]; ok {
			categoryName = c.Name
			s.Category = Badge{Label: glyph(c), Color: NeutralColor}
		}
	}

	projectNumber := p.ProjectNumber
	if projectNumber == 0 {
		projectNumber = project.ProjectNumber
	}
	due := Empty
	if p.DueDate != nil {
		due = p.DueDate.Format(DateLayout)
	}

	s.Fields = []Field{
		{Label: "ID", Value: fmt.Sprintf("%d-%d", projectNumber, p.PinNumber)},
		{Label: "Catégorie", Value: categoryName},
		{Label: "Créé par", Value: orEmpty(p.CreatorName)},
		{Label: "Assigné à", Value: orEmpty(p.AssigneeName)},
		{Label: "Échéance", Value: due},
		{Label: "Description", Value: orEmpty(p.Note)},
	}
	return s
}

// glyph is the category icon when it is a short symbol, or the first letter
// of the category name. Icon identifiers like "hammer" are not printable.
func glyph(c models.Category) string {
	if icon := strings.TrimSpace(c.Icon); icon != "" && utf8.RuneCountInString(icon) <= 2 {
		return icon
	}
	for _, r := range c.Name {
		return string(unicode.ToUpper(r))
	}
	return "?"
}

func colorOr(c string) string {
	if _, _, _, ok := parseHex(c); !ok {
		return NeutralColor
	}
	return c
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return Empty
	}
	return s
}

// parseHex reads #rgb or #rrggbb.
func parseHex(s string) (r, g, b int, ok bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
