package scheduler

import (
	"log/slog"
	"sync"

	"github.com/huytran/evmsched/internal/ir"
)

// Service wraps Schedule for repeated use behind one fixed Config, guarding
// concurrent callers the same way a long-lived engine instance guards its
// cached evaluators.
type Service struct {
	mu  sync.Mutex
	cfg Config
}

// NewService builds a Service ready to schedule with cfg.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// ServiceBuilder assembles a Service fluently, one option at a time.
type ServiceBuilder struct {
	cfg Config
}

// NewServiceBuilder starts from DefaultConfig.
func NewServiceBuilder() *ServiceBuilder {
	return &ServiceBuilder{cfg: DefaultConfig()}
}

// WithOptimumUpperBound sets the search-budget early-exit bound.
func (b *ServiceBuilder) WithOptimumUpperBound(bound int) *ServiceBuilder {
	b.cfg.OptimumUpperBound = bound
	return b
}

// WithLogger overrides the default slog logger.
func (b *ServiceBuilder) WithLogger(logger *slog.Logger) *ServiceBuilder {
	b.cfg.Logger = logger
	return b
}

// Build returns the configured Service.
func (b *ServiceBuilder) Build() *Service {
	return NewService(b.cfg)
}

// Schedule runs one scheduling request under the Service's configured
// bound/logger. Safe for concurrent use; requests are serialized.
func (s *Service) Schedule(inputSymbols []string, startOutputStack, startDoneEffects []*ir.EffectfulNode) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Schedule(inputSymbols, startOutputStack, startDoneEffects, s.cfg)
}
