// Package layout renders typed layout trees directly into PDF bytes.
// There is no markup stage and no external process: the tree binds to a
// data context at render time and draws straight onto pages. Rendering
// owns no shared state and is safe for concurrent use.
package layout

// Align positions text within its cell.
type Align string

const (
	AlignLeft   Align = "L"
	AlignCenter Align = "C"
	AlignRight  Align = "R"
)

// Style adjusts font rendering for one element.
type Style struct {
	Size   float64
	Bold   bool
	Italic bool
}

func (s Style) fontStyle() string {
	style := ""
	if s.Bold {
		style += "B"
	}
	if s.Italic {
		style += "I"
	}
	return style
}

// Element is one drawable entry in a document tree.
type Element interface{ element() }

// Heading draws prominent text. Level 1 is largest.
type Heading struct {
	Text  string
	Bind  string
	Level int
	Align Align
}

// Text draws a paragraph. Exactly one of Text or Bind is set; a bound
// path that is absent fails the render unless Optional.
type Text struct {
	Text     string
	Bind     string
	Align    Align
	Style    Style
	Optional bool
}

// KeyValueRow is one label/value line in a KeyValue block.
type KeyValueRow struct {
	Label    string
	Bind     string
	Literal  string
	Currency bool
	Bold     bool
	Optional bool
}

// KeyValue draws aligned label/value rows, such as document metadata or
// totals.
type KeyValue struct {
	Rows []KeyValueRow
}

// Column describes one table column. Bind is resolved relative to each
// sequence item. Width is in page units; zero widths share the remainder.
type Column struct {
	Header   string
	Bind     string
	Width    float64
	Align    Align
	Currency bool
}

// Table draws a repeating row group bound to a sequence path. The bound
// sequence must not exceed the renderer's MaxGroupRows.
type Table struct {
	Bind    string
	Columns []Column
}

// Predicate gates a Region on a data path.
type Predicate struct {
	Path string
	Op   PredicateOp
}

// PredicateOp is the closed set of region conditions.
type PredicateOp string

const (
	// OpTruthy includes the region when the path resolves truthy.
	OpTruthy PredicateOp = "truthy"
	// OpNonZero includes the region when the path is a number other than zero.
	OpNonZero PredicateOp = "nonzero"
	// OpPresent includes the region when the path resolves at all.
	OpPresent PredicateOp = "present"
)

// Region is a named conditional block. When the predicate does not hold
// the region and everything inside it is omitted from the output.
type Region struct {
	Name     string
	When     Predicate
	Elements []Element
}

// Rule draws a horizontal divider.
type Rule struct{}

// Spacer adds vertical whitespace.
type Spacer struct {
	Height float64
}

// Image draws a picture from a base64-encoded PNG bound in the data
// context. Absent optional images are skipped.
type Image struct {
	Bind     string
	Width    float64
	Optional bool
}

func (Heading) element()  {}
func (Text) element()     {}
func (KeyValue) element() {}
func (Table) element()    {}
func (Region) element()   {}
func (Rule) element()     {}
func (Spacer) element()   {}
func (Image) element()    {}

// Document is a complete printable layout. Margins and sizes are in
// millimeters.
type Document struct {
	Title      string
	FontFamily string
	FontSize   float64
	Margin     float64
	Elements   []Element
}
