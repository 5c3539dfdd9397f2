package docgen_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
	"github.com/admsmc/dykstra-funeral-website-sub003/layout"
	"github.com/admsmc/dykstra-funeral-website-sub003/markup"
)

// stubStore serves fixed template records keyed by business key + version.
type stubStore struct {
	records map[string]docgen.TemplateRecord

	lastTenant  string
	lastKey     string
	lastVersion int
}

func (s *stubStore) key(businessKey string, version int) string {
	return fmt.Sprintf("%s@%d", businessKey, version)
}

func (s *stubStore) Save(ctx context.Context, tenantID, businessKey, markup string, schema docgen.BindingSchema) (docgen.TemplateRecord, error) {
	return docgen.TemplateRecord{}, docgen.NewError(docgen.KindInternal, "not implemented", nil)
}

func (s *stubStore) GetCurrent(ctx context.Context, tenantID, businessKey string) (docgen.TemplateRecord, error) {
	s.lastTenant, s.lastKey, s.lastVersion = tenantID, businessKey, 0
	record, ok := s.records[s.key(businessKey, 0)]
	if !ok {
		return docgen.TemplateRecord{}, docgen.NewError(docgen.KindNotFound,
			fmt.Sprintf("template %s/%s not found", tenantID, businessKey), nil)
	}
	return record, nil
}

func (s *stubStore) GetVersion(ctx context.Context, tenantID, businessKey string, version int) (docgen.TemplateRecord, error) {
	s.lastTenant, s.lastKey, s.lastVersion = tenantID, businessKey, version
	record, ok := s.records[s.key(businessKey, version)]
	if !ok {
		return docgen.TemplateRecord{}, docgen.NewError(docgen.KindNotFound,
			fmt.Sprintf("template %s/%s v%d not found", tenantID, businessKey, version), nil)
	}
	return record, nil
}

func (s *stubStore) GetHistory(ctx context.Context, tenantID, businessKey string) ([]docgen.TemplateRecord, error) {
	return nil, nil
}

func (s *stubStore) ListByTenant(ctx context.Context, tenantID string) ([]docgen.TemplateRecord, error) {
	return nil, nil
}

// stubPool hands out stubLeases and records release behavior.
type stubPool struct {
	renderErr error

	acquires int
	lastHTML string
	released bool
}

func (p *stubPool) Acquire(ctx context.Context) (docgen.Lease, error) {
	p.acquires++
	return &stubLease{pool: p}, nil
}

func (p *stubPool) Shutdown(ctx context.Context) error { return nil }

type stubLease struct {
	pool *stubPool
}

func (l *stubLease) Render(ctx context.Context, html []byte, opts docgen.OutputOptions) ([]byte, error) {
	l.pool.lastHTML = string(html)
	if l.pool.renderErr != nil {
		return nil, l.pool.renderErr
	}
	return []byte("%PDF-stub"), nil
}

func (l *stubLease) Release() { l.pool.released = true }

func programRecord(version int, current bool) docgen.TemplateRecord {
	body := "<h1>In Loving Memory of {{decedentName}}</h1>"
	if version > 1 {
		body = fmt.Sprintf("<h1>v%d: {{decedentName}}</h1>", version)
	}
	return docgen.TemplateRecord{
		ID:          fmt.Sprintf("tpl-%d", version),
		TenantID:    "dykstra",
		BusinessKey: "service-program",
		Version:     version,
		IsCurrent:   current,
		Markup:      body,
		Schema: docgen.BindingSchema{Fields: []docgen.BindingField{
			{Path: "decedentName", Kind: docgen.ValueString, Required: true},
		}},
	}
}

func newPooledService(store *stubStore, pool *stubPool) docgen.Service {
	return docgen.NewService(docgen.ServiceConfig{
		Store:    store,
		Compiler: markup.New(),
		Shell: docgen.ShellFunc(func(body string, opts docgen.OutputOptions) (string, error) {
			return "<html><body>" + body + "</body></html>", nil
		}),
		Pool: pool,
		Now:  func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) },
	})
}

func invoiceRequest() docgen.RenderRequest {
	return docgen.RenderRequest{
		Kind:     docgen.KindInvoice,
		TenantID: "dykstra",
		Data: docgen.DataContext{
			"firmName":      docgen.String("Dykstra Funeral Home"),
			"invoiceNumber": docgen.String("INV-2026-0187"),
			"issuedOn":      docgen.String("2026-03-14"),
			"billedTo":      docgen.String("Margaret Vanderberg"),
			"lineItems": docgen.Sequence(
				docgen.Mapping(docgen.DataContext{
					"description": docgen.String("Professional services"),
					"quantity":    docgen.Number(1),
					"amount":      docgen.Number(2195),
				}),
			),
			"subtotal":   docgen.Number(2195),
			"tax":        docgen.Number(131.70),
			"total":      docgen.Number(2326.70),
			"balanceDue": docgen.Number(2326.70),
		},
	}
}

func TestService_GenerateStructuredInvoice(t *testing.T) {
	svc := docgen.NewService(docgen.ServiceConfig{
		Structured: layout.NewRenderer(),
		Now:        func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) },
	})

	result, err := svc.Generate(context.Background(), invoiceRequest())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(result.Bytes) == 0 {
		t.Fatalf("no bytes generated")
	}
	if result.MimeType != docgen.MimePDF {
		t.Fatalf("mime type %q", result.MimeType)
	}
	if result.Engine != docgen.EngineStructured {
		t.Fatalf("engine %q", result.Engine)
	}
	if result.TemplateVersion != 0 {
		t.Fatalf("structured documents have no template version, got %d", result.TemplateVersion)
	}
	if !result.GeneratedAt.Equal(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("generated-at not from injected clock: %v", result.GeneratedAt)
	}

	again, err := svc.Generate(context.Background(), invoiceRequest())
	if err != nil {
		t.Fatalf("repeat generate failed: %v", err)
	}
	if !bytes.Equal(result.Bytes, again.Bytes) {
		t.Fatalf("identical request produced different bytes")
	}
}

func TestService_GeneratePooledProgram(t *testing.T) {
	store := &stubStore{records: map[string]docgen.TemplateRecord{
		"service-program@0": programRecord(3, true),
	}}
	pool := &stubPool{}
	svc := newPooledService(store, pool)

	result, err := svc.Generate(context.Background(), docgen.RenderRequest{
		Kind:     docgen.KindServiceProgram,
		TenantID: "dykstra",
		Data: docgen.DataContext{
			"decedentName": docgen.String("Harold Vanderberg"),
		},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.Engine != docgen.EnginePooled {
		t.Fatalf("engine %q", result.Engine)
	}
	if result.TemplateVersion != 3 {
		t.Fatalf("expected template version 3, got %d", result.TemplateVersion)
	}
	if store.lastKey != "service-program" {
		t.Fatalf("strategy default business key not used: %q", store.lastKey)
	}
	if !strings.Contains(pool.lastHTML, "Harold Vanderberg") {
		t.Fatalf("compiled markup did not reach the engine: %q", pool.lastHTML)
	}
	if !strings.Contains(pool.lastHTML, "<html><body>") {
		t.Fatalf("shell wrap missing: %q", pool.lastHTML)
	}
	if !pool.released {
		t.Fatalf("lease was not released after a successful render")
	}
}

func TestService_PinnedTemplateVersion(t *testing.T) {
	store := &stubStore{records: map[string]docgen.TemplateRecord{
		"service-program@0": programRecord(3, true),
		"service-program@2": programRecord(2, false),
	}}
	pool := &stubPool{}
	svc := newPooledService(store, pool)

	result, err := svc.Generate(context.Background(), docgen.RenderRequest{
		Kind:     docgen.KindServiceProgram,
		TenantID: "dykstra",
		Template: docgen.TemplateRef{Version: 2},
		Data:     docgen.DataContext{"decedentName": docgen.String("Harold Vanderberg")},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.TemplateVersion != 2 {
		t.Fatalf("pinned version ignored, got %d", result.TemplateVersion)
	}
	if store.lastVersion != 2 {
		t.Fatalf("store queried for version %d", store.lastVersion)
	}
	if !strings.Contains(pool.lastHTML, "v2:") {
		t.Fatalf("historical markup not used: %q", pool.lastHTML)
	}
}

func TestService_StageTagging(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		svc := newPooledService(&stubStore{records: map[string]docgen.TemplateRecord{}}, &stubPool{})
		_, err := svc.Generate(context.Background(), docgen.RenderRequest{
			Kind:     docgen.KindServiceProgram,
			TenantID: "dykstra",
			Data:     docgen.DataContext{},
		})
		if docgen.KindFromError(err) != docgen.KindNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
		if docgen.StageFromError(err) != docgen.StageStore {
			t.Fatalf("expected store stage, got %q", docgen.StageFromError(err))
		}
	})

	t.Run("compile", func(t *testing.T) {
		store := &stubStore{records: map[string]docgen.TemplateRecord{
			"service-program@0": programRecord(1, true),
		}}
		svc := newPooledService(store, &stubPool{})
		_, err := svc.Generate(context.Background(), docgen.RenderRequest{
			Kind:     docgen.KindServiceProgram,
			TenantID: "dykstra",
			Data:     docgen.DataContext{}, // decedentName required by template
		})
		if docgen.KindFromError(err) != docgen.KindCompile {
			t.Fatalf("expected compile error, got %v", err)
		}
		if docgen.StageFromError(err) != docgen.StageCompile {
			t.Fatalf("expected compile stage, got %q", docgen.StageFromError(err))
		}
	})

	t.Run("render", func(t *testing.T) {
		store := &stubStore{records: map[string]docgen.TemplateRecord{
			"service-program@0": programRecord(1, true),
		}}
		pool := &stubPool{renderErr: docgen.NewError(docgen.KindRenderCrash, "engine render failed", nil)}
		svc := newPooledService(store, pool)
		_, err := svc.Generate(context.Background(), docgen.RenderRequest{
			Kind:     docgen.KindServiceProgram,
			TenantID: "dykstra",
			Data:     docgen.DataContext{"decedentName": docgen.String("Harold Vanderberg")},
		})
		if docgen.KindFromError(err) != docgen.KindRenderCrash {
			t.Fatalf("expected render crash, got %v", err)
		}
		if docgen.StageFromError(err) != docgen.StageRender {
			t.Fatalf("expected render stage, got %q", docgen.StageFromError(err))
		}
		if !pool.released {
			t.Fatalf("lease must be released when the render fails")
		}
	})

	t.Run("map", func(t *testing.T) {
		svc := docgen.NewService(docgen.ServiceConfig{
			Structured: layout.NewRenderer(),
			Mapper: docgen.MapperFunc(func(ctx context.Context, kind docgen.DocumentKind, tenantID string, record any) (docgen.DataContext, error) {
				return nil, docgen.NewError(docgen.KindValidation, "record is missing line items", nil)
			}),
		})
		_, err := svc.Generate(context.Background(), docgen.RenderRequest{
			Kind:     docgen.KindInvoice,
			TenantID: "dykstra",
			Record:   struct{}{},
		})
		if docgen.KindFromError(err) != docgen.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
		if docgen.StageFromError(err) != docgen.StageMap {
			t.Fatalf("expected map stage, got %q", docgen.StageFromError(err))
		}
	})

	t.Run("layout", func(t *testing.T) {
		req := invoiceRequest()
		delete(req.Data, "total")
		svc := docgen.NewService(docgen.ServiceConfig{Structured: layout.NewRenderer()})
		_, err := svc.Generate(context.Background(), req)
		if docgen.KindFromError(err) != docgen.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
		if docgen.StageFromError(err) != docgen.StageLayout {
			t.Fatalf("expected layout stage, got %q", docgen.StageFromError(err))
		}
	})
}

func TestService_RequestValidation(t *testing.T) {
	svc := docgen.NewService(docgen.ServiceConfig{Structured: layout.NewRenderer()})

	_, err := svc.Generate(context.Background(), docgen.RenderRequest{TenantID: "dykstra"})
	if docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("missing kind should be a validation error, got %v", err)
	}

	_, err = svc.Generate(context.Background(), docgen.RenderRequest{Kind: docgen.KindInvoice})
	if docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("missing tenant should be a validation error, got %v", err)
	}

	_, err = svc.Generate(context.Background(), docgen.RenderRequest{
		Kind:     docgen.DocumentKind("obituary"),
		TenantID: "dykstra",
		Data:     docgen.DataContext{},
	})
	if docgen.KindFromError(err) != docgen.KindNotFound {
		t.Fatalf("unregistered kind should be not found, got %v", err)
	}
}

func TestService_NoFallbackBetweenStrategies(t *testing.T) {
	// A pooled kind with no stored template fails; it must not silently
	// render through the structured path.
	store := &stubStore{records: map[string]docgen.TemplateRecord{}}
	svc := docgen.NewService(docgen.ServiceConfig{
		Structured: layout.NewRenderer(),
		Store:      store,
		Compiler:   markup.New(),
		Pool:       &stubPool{},
	})

	_, err := svc.Generate(context.Background(), docgen.RenderRequest{
		Kind:     docgen.KindMemorialCard,
		TenantID: "dykstra",
		Data:     docgen.DataContext{},
	})
	if docgen.KindFromError(err) != docgen.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if store.lastKey != "memorial-card" {
		t.Fatalf("memorial card should use its default business key, got %q", store.lastKey)
	}
}
