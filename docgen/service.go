package docgen

import (
	"context"
	"time"
)

// Service generates print-ready documents from domain records.
type Service interface {
	Generate(ctx context.Context, req RenderRequest) (GenerationResult, error)
}

// ServiceConfig supplies dependencies for the generation orchestrator.
type ServiceConfig struct {
	Config     Config
	Strategies *StrategyRegistry
	Mapper     Mapper
	Structured StructuredRenderer
	Store      TemplateStore
	Compiler   Compiler
	Shell      Shell
	Pool       EnginePool
	Logger     Logger
	Now        func() time.Time
}

type service struct {
	config     Config
	strategies *StrategyRegistry
	mapper     Mapper
	structured StructuredRenderer
	store      TemplateStore
	compiler   Compiler
	shell      Shell
	pool       EnginePool
	logger     Logger
	now        func() time.Time
}

// NewService creates the generation orchestrator.
func NewService(cfg ServiceConfig) Service {
	strategies := cfg.Strategies
	if strategies == nil {
		strategies = NewStrategyRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &service{
		config:     cfg.Config.withDefaults(),
		strategies: strategies,
		mapper:     cfg.Mapper,
		structured: cfg.Structured,
		store:      cfg.Store,
		compiler:   cfg.Compiler,
		shell:      cfg.Shell,
		pool:       cfg.Pool,
		logger:     logger,
		now:        nowFn,
	}
}

// Generate maps the record, selects a strategy, and renders. The first
// stage failure propagates unchanged in kind, tagged with its stage; the
// orchestrator never falls back between strategies.
func (s *service) Generate(ctx context.Context, req RenderRequest) (GenerationResult, error) {
	if req.Kind == "" {
		return GenerationResult{}, NewError(KindValidation, "document kind is required", nil)
	}
	if req.TenantID == "" {
		return GenerationResult{}, NewError(KindValidation, "tenant ID is required", nil)
	}

	strategy, err := s.strategies.Resolve(req.Kind)
	if err != nil {
		return GenerationResult{}, err
	}

	data := req.Data
	if data == nil {
		if s.mapper == nil {
			return GenerationResult{}, NewError(KindValidation, "request has no data context and no mapper is configured", nil)
		}
		mapped, err := s.mapper.Map(ctx, req.Kind, req.TenantID, req.Record)
		if err != nil {
			return GenerationResult{}, TagStage(err, StageMap)
		}
		data = mapped
	}

	opts := s.config.applyOutputDefaults(req.Options)

	switch strategy.Engine {
	case EnginePooled:
		return s.generatePooled(ctx, req, strategy, data, opts)
	default:
		return s.generateStructured(ctx, req, data, opts)
	}
}

func (s *service) generateStructured(ctx context.Context, req RenderRequest, data DataContext, opts OutputOptions) (GenerationResult, error) {
	if s.structured == nil {
		return GenerationResult{}, NewError(KindInternal, "structured renderer is not configured", nil)
	}

	bytes, err := s.structured.Render(ctx, req.Kind, data, opts)
	if err != nil {
		return GenerationResult{}, TagStage(err, StageLayout)
	}

	s.logger.Debugf("rendered %s structured, %d bytes", req.Kind, len(bytes))
	return GenerationResult{
		Bytes:       bytes,
		MimeType:    MimePDF,
		GeneratedAt: s.now(),
		Engine:      EngineStructured,
	}, nil
}

func (s *service) generatePooled(ctx context.Context, req RenderRequest, strategy Strategy, data DataContext, opts OutputOptions) (GenerationResult, error) {
	if s.store == nil {
		return GenerationResult{}, NewError(KindInternal, "template store is not configured", nil)
	}
	if s.compiler == nil {
		return GenerationResult{}, NewError(KindInternal, "template compiler is not configured", nil)
	}
	if s.pool == nil {
		return GenerationResult{}, NewError(KindInternal, "engine pool is not configured", nil)
	}

	businessKey := req.Template.BusinessKey
	if businessKey == "" {
		businessKey = strategy.BusinessKey
	}

	var record TemplateRecord
	var err error
	if req.Template.Version > 0 {
		record, err = s.store.GetVersion(ctx, req.TenantID, businessKey, req.Template.Version)
	} else {
		record, err = s.store.GetCurrent(ctx, req.TenantID, businessKey)
	}
	if err != nil {
		return GenerationResult{}, TagStage(err, StageStore)
	}

	compiled, err := s.compiler.Compile(record.Markup, record.Schema, data)
	if err != nil {
		return GenerationResult{}, TagStage(err, StageCompile)
	}

	html := compiled.HTML
	if s.shell != nil {
		html, err = s.shell.Wrap(compiled.HTML, opts)
		if err != nil {
			return GenerationResult{}, TagStage(err, StageShell)
		}
	}

	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return GenerationResult{}, TagStage(err, StageRender)
	}
	defer lease.Release()

	bytes, err := lease.Render(ctx, []byte(html), opts)
	if err != nil {
		return GenerationResult{}, TagStage(err, StageRender)
	}

	s.logger.Debugf("rendered %s via pool, template %s v%d, %d bytes",
		req.Kind, businessKey, record.Version, len(bytes))
	return GenerationResult{
		Bytes:           bytes,
		MimeType:        MimePDF,
		GeneratedAt:     s.now(),
		Engine:          EnginePooled,
		TemplateVersion: record.Version,
	}, nil
}
