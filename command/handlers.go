package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

// GenerateDocumentHandler runs document generation.
type GenerateDocumentHandler struct {
	Service docgen.Service
}

func NewGenerateDocumentHandler(svc docgen.Service) *GenerateDocumentHandler {
	return &GenerateDocumentHandler{Service: svc}
}

func (h *GenerateDocumentHandler) Execute(ctx context.Context, msg GenerateDocument) error {
	if h == nil || h.Service == nil {
		return errors.New("generation service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	result, err := h.Service.Generate(ctx, msg.Request)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[docgen.GenerationResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// SaveTemplateHandler stores new template versions.
type SaveTemplateHandler struct {
	Store docgen.TemplateStore
}

func NewSaveTemplateHandler(store docgen.TemplateStore) *SaveTemplateHandler {
	return &SaveTemplateHandler{Store: store}
}

func (h *SaveTemplateHandler) Execute(ctx context.Context, msg SaveTemplate) error {
	if h == nil || h.Store == nil {
		return errors.New("template store is required", errors.CategoryInternal).
			WithTextCode("STORE_REQUIRED")
	}
	record, err := h.Store.Save(ctx, msg.TenantID, msg.BusinessKey, msg.Markup, msg.Schema)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = record
	}
	if res := gcmd.ResultFromContext[docgen.TemplateRecord](ctx); res != nil {
		res.Store(record)
	}
	return nil
}
