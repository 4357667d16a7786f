package resilience

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
)

// Level summarises a provider's circuit state.
type Level int

const (
	LevelHealthy Level = iota
	LevelDegraded
	LevelUnhealthy
)

func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelDegraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// ProviderHealth is a point-in-time view of one upstream provider.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// LastLatency is the duration of the most recent call, retries included.
	LastLatency time.Duration
}

// Level maps the circuit state: closed is healthy, half-open degraded and
// open unhealthy.
func (h *ProviderHealth) Level() Level {
	switch h.CircuitState {
	case gobreaker.StateClosed:
		return LevelHealthy
	case gobreaker.StateHalfOpen:
		return LevelDegraded
	default:
		return LevelUnhealthy
	}
}

// Registry tracks the resilient clients of a process and the outcome of
// their most recent calls.
type Registry struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	providers map[string]*providerEntry
}

type providerEntry struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
	lastLatency   time.Duration
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return NewRegistryWithClock(clockwork.NewRealClock())
}

// NewRegistryWithClock creates a registry that timestamps outcomes with clock.
func NewRegistryWithClock(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:     clock,
		providers: make(map[string]*providerEntry),
	}
}

// Register adds a client under name, replacing any previous one.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &providerEntry{client: client}
}

// Record stores the outcome of one call. Unknown names are ignored.
func (r *Registry) Record(name string, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[name]
	if !ok {
		return
	}

	now := r.clock.Now()
	p.lastLatency = elapsed
	if err != nil {
		p.lastFailureAt = &now
		p.lastError = err.Error()
		return
	}
	p.lastSuccessAt = &now
}

// Health returns the health of one provider, or nil if it is not registered.
func (r *Registry) Health(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil
	}
	return p.health(name)
}

// Snapshot returns the health of every registered provider ordered by name.
func (r *Registry) Snapshot() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, p.health(name))
	}
	slices.SortFunc(out, func(a, b *ProviderHealth) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// OpenCircuits returns those of names whose circuit is open. Unregistered
// names are skipped.
func (r *Registry) OpenCircuits(names ...string) []string {
	var open []string
	for _, name := range names {
		if h := r.Health(name); h != nil && h.Level() == LevelUnhealthy {
			open = append(open, name)
		}
	}
	return open
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (p *providerEntry) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		CircuitState:  p.client.CircuitBreakerState(),
		Counts:        p.client.CircuitBreakerCounts(),
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
		LastLatency:   p.lastLatency,
	}
}
