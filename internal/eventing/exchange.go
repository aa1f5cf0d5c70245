package eventing

import (
	"sync"

	"github.com/benk79tb/keripy/internal/protocol"
	"github.com/benk79tb/keripy/kering"
)

// ExchangeHandler handles exn messages for one route.
type ExchangeHandler func(msg *protocol.Message) error

// Exchanger routes exn messages by their r field.
type Exchanger struct {
	mu     sync.RWMutex
	routes map[string]ExchangeHandler
}

func NewExchanger() *Exchanger {
	return &Exchanger{routes: make(map[string]ExchangeHandler)}
}

func (x *Exchanger) Register(route string, h ExchangeHandler) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.routes[route] = h
}

// Handle dispatches msg. Handler failures outside the taxonomy are wrapped
// as ExchangeError.
func (x *Exchanger) Handle(msg *protocol.Message) error {
	if msg.T != protocol.IlkExn {
		return kering.Newf(kering.ErrInvalidEventType, "exchanger got %q", msg.T)
	}
	if msg.I == "" {
		return kering.New(kering.ErrMissingDestination, "exn without destination i")
	}
	x.mu.RLock()
	h, ok := x.routes[msg.R]
	x.mu.RUnlock()
	if !ok {
		return kering.Newf(kering.ErrExchange, "no handler for route %q", msg.R)
	}
	if err := h(msg); err != nil {
		if _, ok := kering.KindOf(err); ok {
			return err
		}
		return kering.Wrap(kering.ErrExchange, err, "route "+msg.R)
	}
	return nil
}
