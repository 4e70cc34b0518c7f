package parallel

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a provider circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the provider is degraded; calls are rejected.
	CircuitOpen
	// CircuitHalfOpen allows a probe call to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected by an open circuit.
var ErrCircuitOpen = eris.New("provider circuit is open")

// CircuitConfig controls breaker behavior.
type CircuitConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before allowing a
	// probe. Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip overrides the default every-error check when non-nil.
	ShouldTrip func(err error) bool
}

// DefaultCircuitConfig returns the breaker defaults for provider calls.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Circuit is a circuit breaker for one provider.
type Circuit struct {
	cfg CircuitConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time

	nowFunc func() time.Time
}

// NewCircuit creates a breaker with the given config.
func NewCircuit(cfg CircuitConfig) *Circuit {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Circuit{cfg: cfg, state: CircuitClosed, nowFunc: time.Now}
}

// Call runs fn through the breaker, returning ErrCircuitOpen while the
// provider is considered down.
func Call[T any](ctx context.Context, c *Circuit, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := c.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	c.record(err)
	return val, err
}

// State returns the current circuit state.
func (c *Circuit) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CircuitOpen && c.nowFunc().Sub(c.lastFailure) >= c.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return c.state
}

func (c *Circuit) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitOpen:
		if c.nowFunc().Sub(c.lastFailure) >= c.cfg.ResetTimeout {
			c.state = CircuitHalfOpen
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (c *Circuit) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	shouldTrip := c.cfg.ShouldTrip
	if shouldTrip == nil {
		shouldTrip = func(e error) bool { return e != nil && !IsNotFound(e) }
	}

	if err == nil || !shouldTrip(err) {
		c.state = CircuitClosed
		c.failures = 0
		return
	}

	c.failures++
	c.lastFailure = c.nowFunc()
	if c.state == CircuitHalfOpen || c.failures >= c.cfg.FailureThreshold {
		c.state = CircuitOpen
	}
}

// ProviderBreakers manages one circuit per provider name.
type ProviderBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*Circuit
	cfg      CircuitConfig
}

// NewProviderBreakers creates a per-provider breaker registry.
func NewProviderBreakers(cfg CircuitConfig) *ProviderBreakers {
	return &ProviderBreakers{breakers: make(map[string]*Circuit), cfg: cfg}
}

// Get returns the breaker for a provider, creating one if needed.
func (pb *ProviderBreakers) Get(provider string) *Circuit {
	pb.mu.RLock()
	c, ok := pb.breakers[provider]
	pb.mu.RUnlock()
	if ok {
		return c
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()
	if c, ok = pb.breakers[provider]; ok {
		return c
	}
	c = NewCircuit(pb.cfg)
	pb.breakers[provider] = c
	return c
}

// States returns a snapshot of all circuit states.
func (pb *ProviderBreakers) States() map[string]CircuitState {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	states := make(map[string]CircuitState, len(pb.breakers))
	for name, c := range pb.breakers {
		states[name] = c.State()
	}
	return states
}
