package breakers

import (
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker guards an upstream shared service, currently the exchange-rate
// API. Provider fetches use the stateful breaker in internal/net/circuit;
// this one trips on either consecutive failures or a windowed error rate.
type Breaker struct{ cb *cb.CircuitBreaker }

func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// State reports the underlying gobreaker state for stats endpoints.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
