package docgen

import (
	"context"
	"strings"
	"time"
)

// DocumentKind identifies a printable business document.
type DocumentKind string

const (
	KindInvoice        DocumentKind = "invoice"
	KindPurchaseOrder  DocumentKind = "purchase_order"
	KindReceipt        DocumentKind = "receipt"
	KindServiceProgram DocumentKind = "service_program"
	KindMemorialCard   DocumentKind = "memorial_card"
)

// NormalizeKind coerces kind values into known aliases.
func NormalizeKind(kind DocumentKind) DocumentKind {
	normalized := strings.ToLower(strings.TrimSpace(string(kind)))
	switch normalized {
	case "po", "purchase-order":
		return KindPurchaseOrder
	case "program", "service-program":
		return KindServiceProgram
	case "memorial-card", "card":
		return KindMemorialCard
	default:
		return DocumentKind(normalized)
	}
}

// EngineKind names the rendering strategy used for a document.
type EngineKind string

const (
	EngineStructured EngineKind = "structured"
	EnginePooled     EngineKind = "pooled"
)

// MimePDF is the content type for every generated document.
const MimePDF = "application/pdf"

// OutputOptions control the physical output of a render.
type OutputOptions struct {
	PageSize  string
	DPI       int
	Landscape bool

	MarginTop    string
	MarginBottom string
	MarginLeft   string
	MarginRight  string

	Title string
}

// TemplateRef pins a render to a specific template version. Zero value
// means "current version of the kind's default business key".
type TemplateRef struct {
	BusinessKey string
	Version     int
}

// RenderRequest captures one generation call. Constructed per call and
// never mutated by the pipeline.
type RenderRequest struct {
	Kind     DocumentKind
	TenantID string
	Record   any
	Data     DataContext
	Template TemplateRef
	Options  OutputOptions
}

// GenerationResult is the successful outcome of Generate.
type GenerationResult struct {
	Bytes           []byte
	MimeType        string
	GeneratedAt     time.Time
	Engine          EngineKind
	TemplateVersion int
}

// BindingField declares one path a template may bind to.
type BindingField struct {
	Path     string    `json:"path"`
	Kind     ValueKind `json:"kind"`
	Required bool      `json:"required,omitempty"`
}

// BindingSchema is the closed set of paths a template markup may reference.
type BindingSchema struct {
	Fields []BindingField `json:"fields"`
}

// Field returns the declared field for a path.
func (s BindingSchema) Field(path string) (BindingField, bool) {
	for _, f := range s.Fields {
		if f.Path == path {
			return f, true
		}
	}
	return BindingField{}, false
}

// Empty reports whether the schema declares no fields.
func (s BindingSchema) Empty() bool {
	return len(s.Fields) == 0
}

// TemplateRecord is one immutable version of a tenant's template.
type TemplateRecord struct {
	ID          string
	TenantID    string
	BusinessKey string
	Version     int
	ValidFrom   time.Time
	ValidTo     time.Time
	IsCurrent   bool
	Markup      string
	Schema      BindingSchema
}

// Closed reports whether this version has been superseded.
func (r TemplateRecord) Closed() bool {
	return !r.ValidTo.IsZero()
}

// Compiled is resolved markup plus the binding paths that produced it.
type Compiled struct {
	HTML          string
	ConsumedPaths []string
}

// Compiler resolves template markup against a data context.
type Compiler interface {
	Compile(markup string, schema BindingSchema, data DataContext) (Compiled, error)
}

// CompilerFunc adapts a function to a Compiler.
type CompilerFunc func(markup string, schema BindingSchema, data DataContext) (Compiled, error)

func (f CompilerFunc) Compile(markup string, schema BindingSchema, data DataContext) (Compiled, error) {
	if f == nil {
		return Compiled{}, NewError(KindInternal, "compiler func is nil", nil)
	}
	return f(markup, schema, data)
}

// Shell wraps resolved body markup in a printable document shell.
type Shell interface {
	Wrap(body string, opts OutputOptions) (string, error)
}

// ShellFunc adapts a function to a Shell.
type ShellFunc func(body string, opts OutputOptions) (string, error)

func (f ShellFunc) Wrap(body string, opts OutputOptions) (string, error) {
	if f == nil {
		return body, nil
	}
	return f(body, opts)
}

// Lease is an exclusive hold on one pooled rendering engine instance.
// Release must run on every exit path, including cancellation.
type Lease interface {
	Render(ctx context.Context, html []byte, opts OutputOptions) ([]byte, error)
	Release()
}

// EnginePool hands out rendering engine leases under a fixed concurrency
// ceiling.
type EnginePool interface {
	Acquire(ctx context.Context) (Lease, error)
	Shutdown(ctx context.Context) error
}

// StructuredRenderer converts a document kind plus data directly into
// document bytes, with no markup stage.
type StructuredRenderer interface {
	Render(ctx context.Context, kind DocumentKind, data DataContext, opts OutputOptions) ([]byte, error)
}

// TemplateStore persists template versions per tenant, append-only.
type TemplateStore interface {
	Save(ctx context.Context, tenantID, businessKey, markup string, schema BindingSchema) (TemplateRecord, error)
	GetCurrent(ctx context.Context, tenantID, businessKey string) (TemplateRecord, error)
	GetVersion(ctx context.Context, tenantID, businessKey string, version int) (TemplateRecord, error)
	GetHistory(ctx context.Context, tenantID, businessKey string) ([]TemplateRecord, error)
	ListByTenant(ctx context.Context, tenantID string) ([]TemplateRecord, error)
}

// Mapper turns an already-validated domain record into a data context.
// Mapping rules live outside the pipeline; this is the seam they plug into.
type Mapper interface {
	Map(ctx context.Context, kind DocumentKind, tenantID string, record any) (DataContext, error)
}

// MapperFunc adapts a function to a Mapper.
type MapperFunc func(ctx context.Context, kind DocumentKind, tenantID string, record any) (DataContext, error)

func (f MapperFunc) Map(ctx context.Context, kind DocumentKind, tenantID string, record any) (DataContext, error) {
	if f == nil {
		return nil, NewError(KindInternal, "mapper func is nil", nil)
	}
	return f(ctx, kind, tenantID, record)
}

// Logger is the minimal logging surface used by the pipeline.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
