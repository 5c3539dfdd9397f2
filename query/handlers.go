package query

import (
	"context"

	"github.com/goliatone/go-errors"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

// CurrentTemplateHandler returns the current template version.
type CurrentTemplateHandler struct {
	Store docgen.TemplateStore
}

func NewCurrentTemplateHandler(store docgen.TemplateStore) *CurrentTemplateHandler {
	return &CurrentTemplateHandler{Store: store}
}

func (h *CurrentTemplateHandler) Query(ctx context.Context, msg CurrentTemplate) (docgen.TemplateRecord, error) {
	if h == nil || h.Store == nil {
		return docgen.TemplateRecord{}, errors.New("template store is required", errors.CategoryInternal).
			WithTextCode("STORE_REQUIRED")
	}
	return h.Store.GetCurrent(ctx, msg.TenantID, msg.BusinessKey)
}

// TemplateVersionHandler returns one template version.
type TemplateVersionHandler struct {
	Store docgen.TemplateStore
}

func NewTemplateVersionHandler(store docgen.TemplateStore) *TemplateVersionHandler {
	return &TemplateVersionHandler{Store: store}
}

func (h *TemplateVersionHandler) Query(ctx context.Context, msg TemplateVersion) (docgen.TemplateRecord, error) {
	if h == nil || h.Store == nil {
		return docgen.TemplateRecord{}, errors.New("template store is required", errors.CategoryInternal).
			WithTextCode("STORE_REQUIRED")
	}
	return h.Store.GetVersion(ctx, msg.TenantID, msg.BusinessKey, msg.Version)
}

// TemplateHistoryHandler returns the full version history.
type TemplateHistoryHandler struct {
	Store docgen.TemplateStore
}

func NewTemplateHistoryHandler(store docgen.TemplateStore) *TemplateHistoryHandler {
	return &TemplateHistoryHandler{Store: store}
}

func (h *TemplateHistoryHandler) Query(ctx context.Context, msg TemplateHistory) ([]docgen.TemplateRecord, error) {
	if h == nil || h.Store == nil {
		return nil, errors.New("template store is required", errors.CategoryInternal).
			WithTextCode("STORE_REQUIRED")
	}
	return h.Store.GetHistory(ctx, msg.TenantID, msg.BusinessKey)
}

// ListTemplatesHandler returns a tenant's current templates.
type ListTemplatesHandler struct {
	Store docgen.TemplateStore
}

func NewListTemplatesHandler(store docgen.TemplateStore) *ListTemplatesHandler {
	return &ListTemplatesHandler{Store: store}
}

func (h *ListTemplatesHandler) Query(ctx context.Context, msg ListTemplates) ([]docgen.TemplateRecord, error) {
	if h == nil || h.Store == nil {
		return nil, errors.New("template store is required", errors.CategoryInternal).
			WithTextCode("STORE_REQUIRED")
	}
	return h.Store.ListByTenant(ctx, msg.TenantID)
}
