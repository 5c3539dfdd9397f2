package layout

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

// Provider supplies the layout tree for a document kind.
type Provider interface {
	Layout(kind docgen.DocumentKind) (Document, error)
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(kind docgen.DocumentKind) (Document, error)

func (f ProviderFunc) Layout(kind docgen.DocumentKind) (Document, error) {
	if f == nil {
		return Document{}, docgen.NewError(docgen.KindInternal, "layout provider func is nil", nil)
	}
	return f(kind)
}

// Renderer draws layout documents into PDF bytes.
type Renderer struct {
	Provider Provider
	// MaxGroupRows bounds bound sequences so a bad record cannot produce
	// an unbounded page count.
	MaxGroupRows int
	// Now pins PDF metadata dates. Identical input renders byte-identical
	// output when Now is fixed.
	Now func() time.Time
}

var _ docgen.StructuredRenderer = (*Renderer)(nil)

// NewRenderer creates a Renderer over the built-in financial layouts.
func NewRenderer() *Renderer {
	return &Renderer{
		Provider:     BuiltinLayouts(),
		MaxGroupRows: docgen.DefaultMaxGroupRows,
		Now:          func() time.Time { return time.Time{} },
	}
}

// Render draws the layout for kind bound to data.
func (r *Renderer) Render(ctx context.Context, kind docgen.DocumentKind, data docgen.DataContext, opts docgen.OutputOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Provider == nil {
		return nil, docgen.NewError(docgen.KindInternal, "layout provider is not configured", nil)
	}

	doc, err := r.Provider.Layout(kind)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New(orientation(opts), "mm", pageSizeName(opts.PageSize), "")
	// Sort catalog entries so fpdf does not emit font objects in map
	// iteration order, which would break byte-identical output.
	pdf.SetCatalogSort(true)
	pinned := r.pinnedTime()
	pdf.SetCreationDate(pinned)
	pdf.SetModificationDate(pinned)
	title := opts.Title
	if title == "" {
		title = doc.Title
	}
	if title != "" {
		pdf.SetTitle(title, false)
	}

	margin := doc.Margin
	if margin <= 0 {
		margin = 15
	}
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)

	family := doc.FontFamily
	if family == "" {
		family = "Helvetica"
	}
	size := doc.FontSize
	if size <= 0 {
		size = 10
	}

	pdf.AddPage()
	pdf.SetFont(family, "", size)

	d := &drawer{
		pdf:          pdf,
		data:         data,
		family:       family,
		size:         size,
		maxGroupRows: r.maxRows(),
	}
	if err := d.drawAll(doc.Elements); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "pdf output failed", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) maxRows() int {
	if r.MaxGroupRows > 0 {
		return r.MaxGroupRows
	}
	return docgen.DefaultMaxGroupRows
}

func (r *Renderer) pinnedTime() time.Time {
	if r.Now == nil {
		return time.Unix(0, 0).UTC()
	}
	t := r.Now()
	if t.IsZero() {
		// fpdf substitutes time.Now() for zero dates, which would break
		// byte-identical output; pin to the epoch instead.
		return time.Unix(0, 0).UTC()
	}
	return t
}

func orientation(opts docgen.OutputOptions) string {
	if opts.Landscape {
		return "L"
	}
	return "P"
}

func pageSizeName(size string) string {
	switch strings.ToUpper(strings.TrimSpace(size)) {
	case "A3":
		return "A3"
	case "A4":
		return "A4"
	case "A5":
		return "A5"
	case "LEGAL":
		return "Legal"
	default:
		return "Letter"
	}
}

type drawer struct {
	pdf          *fpdf.Fpdf
	data         docgen.DataContext
	family       string
	size         float64
	maxGroupRows int
	imageSeq     int
}

func (d *drawer) drawAll(elements []Element) error {
	for _, el := range elements {
		if err := d.draw(el); err != nil {
			return err
		}
	}
	return nil
}

func (d *drawer) draw(el Element) error {
	switch el := el.(type) {
	case Heading:
		return d.drawHeading(el)
	case Text:
		return d.drawText(el)
	case KeyValue:
		return d.drawKeyValue(el)
	case Table:
		return d.drawTable(el)
	case Region:
		return d.drawRegion(el)
	case Rule:
		d.drawRule()
		return nil
	case Spacer:
		height := el.Height
		if height <= 0 {
			height = 4
		}
		d.pdf.Ln(height)
		return nil
	case Image:
		return d.drawImage(el)
	default:
		return docgen.NewError(docgen.KindInternal, fmt.Sprintf("unknown layout element %T", el), nil)
	}
}

func (d *drawer) drawHeading(el Heading) error {
	text, ok, err := d.resolveText(el.Text, el.Bind, false)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	size := d.size + 8
	if el.Level >= 2 {
		size = d.size + 4
	}
	if el.Level >= 3 {
		size = d.size + 2
	}

	d.pdf.SetFont(d.family, "B", size)
	d.pdf.MultiCell(0, size*0.55, text, "", string(alignOrLeft(el.Align)), false)
	d.pdf.SetFont(d.family, "", d.size)
	d.pdf.Ln(2)
	return nil
}

func (d *drawer) drawText(el Text) error {
	text, ok, err := d.resolveText(el.Text, el.Bind, el.Optional)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	size := el.Style.Size
	if size <= 0 {
		size = d.size
	}
	d.pdf.SetFont(d.family, el.Style.fontStyle(), size)
	d.pdf.MultiCell(0, size*0.5, text, "", string(alignOrLeft(el.Align)), false)
	d.pdf.SetFont(d.family, "", d.size)
	return nil
}

func (d *drawer) drawKeyValue(el KeyValue) error {
	lineHeight := d.size * 0.55
	for _, row := range el.Rows {
		value := row.Literal
		if row.Bind != "" {
			resolved, ok := d.data.Lookup(row.Bind)
			if !ok {
				if row.Optional {
					continue
				}
				return missingBinding(row.Bind)
			}
			text, err := valueText(resolved, row.Currency)
			if err != nil {
				return docgen.NewError(docgen.KindValidation, fmt.Sprintf("binding %q: %v", row.Bind, err), nil)
			}
			value = text
		}

		style := ""
		if row.Bold {
			style = "B"
		}
		d.pdf.SetFont(d.family, style, d.size)
		d.pdf.CellFormat(60, lineHeight, row.Label, "", 0, "L", false, 0, "")
		d.pdf.CellFormat(0, lineHeight, value, "", 1, "R", false, 0, "")
	}
	d.pdf.SetFont(d.family, "", d.size)
	return nil
}

func (d *drawer) drawTable(el Table) error {
	value, ok := d.data.Lookup(el.Bind)
	if !ok {
		return missingBinding(el.Bind)
	}
	if value.Kind != docgen.ValueSequence {
		return docgen.NewError(docgen.KindValidation, fmt.Sprintf("binding %q is %s, table needs a sequence", el.Bind, value.Kind), nil)
	}
	items := value.Seq()
	if len(items) > d.maxGroupRows {
		return docgen.NewError(docgen.KindValidation,
			fmt.Sprintf("repeating group %q has %d rows, limit is %d", el.Bind, len(items), d.maxGroupRows), nil)
	}

	widths := d.columnWidths(el.Columns)
	lineHeight := d.size * 0.6

	d.pdf.SetFont(d.family, "B", d.size)
	d.pdf.SetFillColor(235, 235, 235)
	for i, col := range el.Columns {
		d.pdf.CellFormat(widths[i], lineHeight, col.Header, "B", 0, string(alignOrLeft(col.Align)), true, 0, "")
	}
	d.pdf.Ln(lineHeight)
	d.pdf.SetFont(d.family, "", d.size)

	for _, item := range items {
		for i, col := range el.Columns {
			cell, err := d.tableCell(item, col)
			if err != nil {
				return err
			}
			d.pdf.CellFormat(widths[i], lineHeight, cell, "", 0, string(alignOrLeft(col.Align)), false, 0, "")
		}
		d.pdf.Ln(lineHeight)
	}
	d.pdf.Ln(2)
	return nil
}

func (d *drawer) tableCell(item docgen.Value, col Column) (string, error) {
	var value docgen.Value
	switch {
	case col.Bind == "" || col.Bind == "this":
		value = item
	case item.Kind == docgen.ValueMapping:
		resolved, ok := item.Map().Lookup(col.Bind)
		if !ok {
			return "", missingBinding(col.Bind)
		}
		value = resolved
	default:
		return "", docgen.NewError(docgen.KindValidation,
			fmt.Sprintf("column %q binds %q but row items are %s", col.Header, col.Bind, item.Kind), nil)
	}

	text, err := valueText(value, col.Currency)
	if err != nil {
		return "", docgen.NewError(docgen.KindValidation, fmt.Sprintf("binding %q: %v", col.Bind, err), nil)
	}
	return text, nil
}

func (d *drawer) columnWidths(columns []Column) []float64 {
	pageWidth, _ := d.pdf.GetPageSize()
	left, _, right, _ := d.pdf.GetMargins()
	usable := pageWidth - left - right

	widths := make([]float64, len(columns))
	fixed := 0.0
	flexible := 0
	for i, col := range columns {
		if col.Width > 0 {
			widths[i] = col.Width
			fixed += col.Width
		} else {
			flexible++
		}
	}
	if flexible > 0 {
		share := (usable - fixed) / float64(flexible)
		if share < 10 {
			share = 10
		}
		for i := range widths {
			if widths[i] == 0 {
				widths[i] = share
			}
		}
	}
	return widths
}

func (d *drawer) drawRegion(el Region) error {
	include, err := d.evalPredicate(el.When)
	if err != nil {
		return err
	}
	if !include {
		return nil
	}
	return d.drawAll(el.Elements)
}

func (d *drawer) evalPredicate(p Predicate) (bool, error) {
	value, ok := d.data.Lookup(p.Path)
	switch p.Op {
	case OpPresent:
		return ok, nil
	case OpNonZero:
		if !ok {
			return false, nil
		}
		if value.Kind != docgen.ValueNumber {
			return false, docgen.NewError(docgen.KindValidation,
				fmt.Sprintf("predicate path %q is %s, nonzero needs a number", p.Path, value.Kind), nil)
		}
		return value.Num() != 0, nil
	case OpTruthy, "":
		if !ok {
			return false, nil
		}
		return value.Truthy(), nil
	default:
		return false, docgen.NewError(docgen.KindInternal, fmt.Sprintf("unknown predicate op %q", p.Op), nil)
	}
}

func (d *drawer) drawRule() {
	left, _, right, _ := d.pdf.GetMargins()
	pageWidth, _ := d.pdf.GetPageSize()
	y := d.pdf.GetY() + 1
	d.pdf.SetDrawColor(120, 120, 120)
	d.pdf.Line(left, y, pageWidth-right, y)
	d.pdf.Ln(3)
}

func (d *drawer) drawImage(el Image) error {
	value, ok := d.data.Lookup(el.Bind)
	if !ok {
		if el.Optional {
			return nil
		}
		return missingBinding(el.Bind)
	}
	if value.Kind != docgen.ValueString {
		return docgen.NewError(docgen.KindValidation, fmt.Sprintf("image binding %q must be a base64 string", el.Bind), nil)
	}

	raw, err := base64.StdEncoding.DecodeString(value.Str())
	if err != nil {
		return docgen.NewError(docgen.KindValidation, fmt.Sprintf("image binding %q is not valid base64", el.Bind), err)
	}

	d.imageSeq++
	name := fmt.Sprintf("layout-image-%d", d.imageSeq)
	options := fpdf.ImageOptions{ImageType: "PNG"}
	d.pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(raw))

	width := el.Width
	if width <= 0 {
		width = 40
	}
	d.pdf.ImageOptions(name, d.pdf.GetX(), d.pdf.GetY(), width, 0, true, options, 0, "")
	d.pdf.Ln(2)
	return nil
}

// resolveText returns the element text, whether to draw it at all, and an
// error for absent required bindings.
func (d *drawer) resolveText(literal, bind string, optional bool) (string, bool, error) {
	if bind == "" {
		return literal, true, nil
	}
	value, ok := d.data.Lookup(bind)
	if !ok {
		if optional {
			return "", false, nil
		}
		return "", false, missingBinding(bind)
	}
	text, err := value.Text()
	if err != nil {
		return "", false, docgen.NewError(docgen.KindValidation, fmt.Sprintf("binding %q: %v", bind, err), nil)
	}
	return text, true, nil
}

func valueText(value docgen.Value, currency bool) (string, error) {
	if currency {
		if value.Kind != docgen.ValueNumber {
			return "", fmt.Errorf("currency formatting needs a number, got %s", value.Kind)
		}
		return docgen.FormatCurrency(value.Num()), nil
	}
	return value.Text()
}

func missingBinding(path string) error {
	return docgen.NewError(docgen.KindValidation, fmt.Sprintf("required binding %q is absent", path), nil)
}

func alignOrLeft(a Align) Align {
	if a == "" {
		return AlignLeft
	}
	return a
}
