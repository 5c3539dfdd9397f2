package query

import (
	"github.com/goliatone/go-errors"
)

// CurrentTemplate requests the current version of a template.
type CurrentTemplate struct {
	TenantID    string
	BusinessKey string
}

func (CurrentTemplate) Type() string { return "template:current" }

func (msg CurrentTemplate) Validate() error {
	return validateKey(msg.TenantID, msg.BusinessKey)
}

// TemplateVersion requests one specific template version.
type TemplateVersion struct {
	TenantID    string
	BusinessKey string
	Version     int
}

func (TemplateVersion) Type() string { return "template:version" }

func (msg TemplateVersion) Validate() error {
	if err := validateKey(msg.TenantID, msg.BusinessKey); err != nil {
		return err
	}
	if msg.Version <= 0 {
		return errors.New("version must be positive", errors.CategoryValidation).
			WithTextCode("VERSION_REQUIRED")
	}
	return nil
}

// TemplateHistory requests the full version history of a template.
type TemplateHistory struct {
	TenantID    string
	BusinessKey string
}

func (TemplateHistory) Type() string { return "template:history" }

func (msg TemplateHistory) Validate() error {
	return validateKey(msg.TenantID, msg.BusinessKey)
}

// ListTemplates requests the current templates a tenant owns.
type ListTemplates struct {
	TenantID string
}

func (ListTemplates) Type() string { return "template:list" }

func (msg ListTemplates) Validate() error {
	if msg.TenantID == "" {
		return errors.New("tenant ID is required", errors.CategoryValidation).
			WithTextCode("TENANT_REQUIRED")
	}
	return nil
}

func validateKey(tenantID, businessKey string) error {
	if tenantID == "" {
		return errors.New("tenant ID is required", errors.CategoryValidation).
			WithTextCode("TENANT_REQUIRED")
	}
	if businessKey == "" {
		return errors.New("business key is required", errors.CategoryValidation).
			WithTextCode("BUSINESS_KEY_REQUIRED")
	}
	return nil
}
