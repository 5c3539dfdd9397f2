package docgen

import (
	"fmt"
	"sync"
)

// StrategyRegistry maps document kinds to rendering strategies.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[DocumentKind]Strategy
}

// Strategy describes how one document kind is rendered.
type Strategy struct {
	Engine EngineKind
	// BusinessKey is the default template business key for pooled kinds.
	BusinessKey string
}

// NewStrategyRegistry creates a registry preloaded with the built-in
// document kinds: tightly specified financial documents render structured,
// tenant-authored ceremony documents render through the pool.
func NewStrategyRegistry() *StrategyRegistry {
	r := &StrategyRegistry{strategies: make(map[DocumentKind]Strategy)}
	r.strategies[KindInvoice] = Strategy{Engine: EngineStructured}
	r.strategies[KindPurchaseOrder] = Strategy{Engine: EngineStructured}
	r.strategies[KindReceipt] = Strategy{Engine: EngineStructured}
	r.strategies[KindServiceProgram] = Strategy{Engine: EnginePooled, BusinessKey: "service-program"}
	r.strategies[KindMemorialCard] = Strategy{Engine: EnginePooled, BusinessKey: "memorial-card"}
	return r
}

// Register adds or replaces a strategy for a kind.
func (r *StrategyRegistry) Register(kind DocumentKind, strategy Strategy) error {
	kind = NormalizeKind(kind)
	if kind == "" {
		return NewError(KindValidation, "document kind is required", nil)
	}
	switch strategy.Engine {
	case EngineStructured:
	case EnginePooled:
		if strategy.BusinessKey == "" {
			return NewError(KindValidation, fmt.Sprintf("pooled kind %q needs a template business key", kind), nil)
		}
	default:
		return NewError(KindValidation, fmt.Sprintf("unknown engine kind %q", strategy.Engine), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[kind] = strategy
	return nil
}

// Resolve returns the strategy for a kind.
func (r *StrategyRegistry) Resolve(kind DocumentKind) (Strategy, error) {
	r.mu.RLock()
	strategy, ok := r.strategies[NormalizeKind(kind)]
	r.mu.RUnlock()
	if !ok {
		return Strategy{}, NewError(KindNotFound, fmt.Sprintf("document kind %q not registered", kind), nil)
	}
	return strategy, nil
}
