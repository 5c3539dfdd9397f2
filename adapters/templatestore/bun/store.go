// Package templatebun persists template versions in a Bun-backed database
// using SCD2 rows: a save never overwrites, it inserts a new version and
// closes the prior current row in one transaction. History is append-only
// and scoped to a tenant on every query path.
package templatebun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

// Store is a Bun-backed template repository.
type Store struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string

	// saveMu serializes the close-and-insert transaction. SQLite allows a
	// single writer; taking the lock here keeps concurrent saves from
	// surfacing busy errors instead of queueing.
	saveMu sync.Mutex
}

var _ docgen.TemplateStore = (*Store)(nil)

// NewStore creates a Bun-backed template store.
func NewStore(db *bun.DB) *Store {
	return &Store{DB: db, Now: time.Now, IDGenerator: uuid.NewString}
}

// Migrate creates the template table.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return docgen.NewError(docgen.KindInternal, "template store database not configured", nil)
	}
	_, err := s.DB.NewCreateTable().Model((*templateModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Save inserts a new current version and closes the prior one in a single
// transaction. The first version for a business key is version 1.
func (s *Store) Save(ctx context.Context, tenantID, businessKey, markup string, schema docgen.BindingSchema) (docgen.TemplateRecord, error) {
	if s == nil || s.DB == nil {
		return docgen.TemplateRecord{}, docgen.NewError(docgen.KindInternal, "template store database not configured", nil)
	}
	if tenantID == "" {
		return docgen.TemplateRecord{}, docgen.NewError(docgen.KindValidation, "tenant ID is required", nil)
	}
	if businessKey == "" {
		return docgen.TemplateRecord{}, docgen.NewError(docgen.KindValidation, "business key is required", nil)
	}
	if markup == "" {
		return docgen.TemplateRecord{}, docgen.NewError(docgen.KindValidation, "template markup is required", nil)
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return docgen.TemplateRecord{}, docgen.NewError(docgen.KindInternal, "marshal binding schema", err)
	}

	now := s.now()
	model := templateModel{
		ID:          s.nextID(),
		TenantID:    tenantID,
		BusinessKey: businessKey,
		ValidFrom:   now,
		IsCurrent:   true,
		Markup:      markup,
		Schema:      schemaJSON,
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	err = s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*templateModel)(nil)).
			Set("is_current = ?", false).
			Set("valid_to = ?", now).
			Where("tenant_id = ?", tenantID).
			Where("business_key = ?", businessKey).
			Where("is_current = ?", true).
			Exec(ctx)
		if err != nil {
			return err
		}
		closed, _ := res.RowsAffected()
		if closed > 1 {
			// Two current rows would mean the invariant was already broken.
			return docgen.NewError(docgen.KindConflict,
				fmt.Sprintf("multiple current versions for %s/%s", tenantID, businessKey), nil)
		}

		var maxVersion sql.NullInt64
		if err := tx.NewSelect().Model((*templateModel)(nil)).
			ColumnExpr("MAX(version)").
			Where("tenant_id = ?", tenantID).
			Where("business_key = ?", businessKey).
			Scan(ctx, &maxVersion); err != nil {
			return err
		}
		model.Version = int(maxVersion.Int64) + 1

		_, err = tx.NewInsert().Model(&model).Exec(ctx)
		return err
	})
	if err != nil {
		return docgen.TemplateRecord{}, err
	}

	return recordFromModel(model)
}

// GetCurrent returns the open version for a business key.
func (s *Store) GetCurrent(ctx context.Context, tenantID, businessKey string) (docgen.TemplateRecord, error) {
	var model templateModel
	err := s.DB.NewSelect().Model(&model).
		Where("tenant_id = ?", tenantID).
		Where("business_key = ?", businessKey).
		Where("is_current = ?", true).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return docgen.TemplateRecord{}, notFound(tenantID, businessKey, 0)
	}
	if err != nil {
		return docgen.TemplateRecord{}, err
	}
	return recordFromModel(model)
}

// GetVersion returns one specific version.
func (s *Store) GetVersion(ctx context.Context, tenantID, businessKey string, version int) (docgen.TemplateRecord, error) {
	var model templateModel
	err := s.DB.NewSelect().Model(&model).
		Where("tenant_id = ?", tenantID).
		Where("business_key = ?", businessKey).
		Where("version = ?", version).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return docgen.TemplateRecord{}, notFound(tenantID, businessKey, version)
	}
	if err != nil {
		return docgen.TemplateRecord{}, err
	}
	return recordFromModel(model)
}

// GetHistory returns every version for a business key, ascending. Each
// call re-reads the full history; no cursor state is retained.
func (s *Store) GetHistory(ctx context.Context, tenantID, businessKey string) ([]docgen.TemplateRecord, error) {
	var models []templateModel
	err := s.DB.NewSelect().Model(&models).
		Where("tenant_id = ?", tenantID).
		Where("business_key = ?", businessKey).
		Order("version ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return recordsFromModels(models)
}

// ListByTenant returns the current version of every business key a tenant
// owns, ordered by business key.
func (s *Store) ListByTenant(ctx context.Context, tenantID string) ([]docgen.TemplateRecord, error) {
	var models []templateModel
	err := s.DB.NewSelect().Model(&models).
		Where("tenant_id = ?", tenantID).
		Where("is_current = ?", true).
		Order("business_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return recordsFromModels(models)
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Store) nextID() string {
	if s.IDGenerator == nil {
		return uuid.NewString()
	}
	return s.IDGenerator()
}

func notFound(tenantID, businessKey string, version int) error {
	if version > 0 {
		return docgen.NewError(docgen.KindNotFound,
			fmt.Sprintf("template %s/%s v%d not found", tenantID, businessKey, version), nil)
	}
	return docgen.NewError(docgen.KindNotFound,
		fmt.Sprintf("template %s/%s not found", tenantID, businessKey), nil)
}

type templateModel struct {
	bun.BaseModel `bun:"table:template_versions,alias:template_versions"`

	ID          string    `bun:",pk"`
	TenantID    string    `bun:"tenant_id,notnull"`
	BusinessKey string    `bun:"business_key,notnull"`
	Version     int       `bun:"version,notnull"`
	ValidFrom   time.Time `bun:"valid_from,notnull"`
	ValidTo     time.Time `bun:"valid_to,nullzero"`
	IsCurrent   bool      `bun:"is_current,notnull"`
	Markup      string    `bun:"markup,notnull"`
	Schema      []byte    `bun:"schema"`
}

func recordFromModel(model templateModel) (docgen.TemplateRecord, error) {
	var schema docgen.BindingSchema
	if len(model.Schema) > 0 {
		if err := json.Unmarshal(model.Schema, &schema); err != nil {
			return docgen.TemplateRecord{}, docgen.NewError(docgen.KindInternal, "unmarshal binding schema", err)
		}
	}
	return docgen.TemplateRecord{
		ID:          model.ID,
		TenantID:    model.TenantID,
		BusinessKey: model.BusinessKey,
		Version:     model.Version,
		ValidFrom:   model.ValidFrom,
		ValidTo:     model.ValidTo,
		IsCurrent:   model.IsCurrent,
		Markup:      model.Markup,
		Schema:      schema,
	}, nil
}

func recordsFromModels(models []templateModel) ([]docgen.TemplateRecord, error) {
	records := make([]docgen.TemplateRecord, 0, len(models))
	for _, model := range models {
		record, err := recordFromModel(model)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
