package monitor

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Consumer receives big-trade alerts. A failing consumer is isolated:
// its error is logged and dispatch continues to the remaining
// consumers. One broken subscriber must never break monitoring.
type Consumer interface {
	Name() string
	HandleAlert(trade BigTrade) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc struct {
	ConsumerName string
	Fn           func(BigTrade) error
}

func (c ConsumerFunc) Name() string                 { return c.ConsumerName }
func (c ConsumerFunc) HandleAlert(t BigTrade) error { return c.Fn(t) }

// Dispatcher holds the registered alert consumers and invokes them in
// registration order on the calling goroutine.
type Dispatcher struct {
	mu        sync.RWMutex
	consumers []Consumer
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register appends a consumer to the dispatch list.
func (d *Dispatcher) Register(c Consumer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers = append(d.consumers, c)
	log.Info().Str("consumer", c.Name()).Int("total", len(d.consumers)).Msg("🔔 Alert consumer registered")
}

// Dispatch invokes every registered consumer with the record and
// returns the number of successful invocations.
func (d *Dispatcher) Dispatch(trade BigTrade) int {
	d.mu.RLock()
	consumers := d.consumers
	d.mu.RUnlock()

	sent := 0
	for _, c := range consumers {
		if err := c.HandleAlert(trade); err != nil {
			log.Error().Err(err).Str("consumer", c.Name()).Msg("Alert consumer failed")
			continue
		}
		sent++
	}
	return sent
}

// Count returns the number of registered consumers.
func (d *Dispatcher) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.consumers)
}
