package command

import (
	"github.com/goliatone/go-errors"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

// GenerateDocument renders one document for a tenant.
type GenerateDocument struct {
	Request docgen.RenderRequest
	Result  *docgen.GenerationResult
}

func (GenerateDocument) Type() string { return "document:generate" }

func (msg GenerateDocument) Validate() error {
	if msg.Request.Kind == "" {
		return errors.New("document kind is required", errors.CategoryValidation).
			WithTextCode("KIND_REQUIRED")
	}
	if msg.Request.TenantID == "" {
		return errors.New("tenant ID is required", errors.CategoryValidation).
			WithTextCode("TENANT_REQUIRED")
	}
	return nil
}

// SaveTemplate stores a new template version for a tenant.
type SaveTemplate struct {
	TenantID    string
	BusinessKey string
	Markup      string
	Schema      docgen.BindingSchema
	Result      *docgen.TemplateRecord
}

func (SaveTemplate) Type() string { return "template:save" }

func (msg SaveTemplate) Validate() error {
	if msg.TenantID == "" {
		return errors.New("tenant ID is required", errors.CategoryValidation).
			WithTextCode("TENANT_REQUIRED")
	}
	if msg.BusinessKey == "" {
		return errors.New("business key is required", errors.CategoryValidation).
			WithTextCode("BUSINESS_KEY_REQUIRED")
	}
	if msg.Markup == "" {
		return errors.New("template markup is required", errors.CategoryValidation).
			WithTextCode("MARKUP_REQUIRED")
	}
	return nil
}
