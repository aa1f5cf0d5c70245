package eventing

import (
	"sort"
	"sync"
	"time"

	"github.com/benk79tb/keripy/internal/protocol"
	"github.com/benk79tb/keripy/kering"
)

// Escrowed is one message awaiting information that may let it validate.
type Escrowed struct {
	Key           string
	Msg           *protocol.Message
	Kind          kering.Kind
	Attempts      int
	QueuedAt      time.Time
	LastAttemptAt time.Time
	NextAttemptAt time.Time
	LastError     string
}

// Escrowable reports whether err is a failure that more local state can
// resolve: missing predecessors, witness receipts, delegation or anchors,
// and receipts or replies for events not yet seen.
func Escrowable(err error) bool {
	for _, k := range []kering.Kind{
		kering.ErrOutOfOrder,
		kering.ErrMissingWitnessSignature,
		kering.ErrMissingDelegation,
		kering.ErrMissingAnchor,
		kering.ErrUnverifiedReceipt,
		kering.ErrUnverifiedWitnessReceipt,
		kering.ErrUnverifiedReply,
	} {
		if kering.IsKind(err, k) {
			return true
		}
	}
	return false
}

// Escrow stores escrowed messages by stable key.
type Escrow struct {
	mu    sync.RWMutex
	items map[string]Escrowed
}

func NewEscrow() *Escrow {
	return &Escrow{items: make(map[string]Escrowed)}
}

// EscrowKey identifies a message by ilk, prefix, sn and digest.
func EscrowKey(msg *protocol.Message) string {
	return msg.T + "." + msg.I + "." + msg.S + "." + msg.D
}

func (e *Escrow) Upsert(item Escrowed) {
	if item.Key == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items[item.Key] = item
}

func (e *Escrow) MarkAttempt(key string, at, next time.Time, lastErr error) (Escrowed, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[key]
	if !ok {
		return Escrowed{}, false
	}
	item.Attempts++
	item.LastAttemptAt = at
	item.NextAttemptAt = next
	if lastErr != nil {
		item.LastError = lastErr.Error()
		if k, ok := kering.KindOf(lastErr); ok {
			item.Kind = k
		}
	}
	e.items[key] = item
	return item, true
}

func (e *Escrow) Remove(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.items, key)
}

func (e *Escrow) Get(key string) (Escrowed, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	item, ok := e.items[key]
	return item, ok
}

// Due lists items whose next attempt is at or before now, oldest first.
func (e *Escrow) Due(now time.Time) []Escrowed {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Escrowed, 0, len(e.items))
	for _, item := range e.items {
		if !item.NextAttemptAt.After(now) {
			out = append(out, item)
		}
	}
	sortEscrowed(out)
	return out
}

func (e *Escrow) List() []Escrowed {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Escrowed, 0, len(e.items))
	for _, item := range e.items {
		out = append(out, item)
	}
	sortEscrowed(out)
	return out
}

func sortEscrowed(items []Escrowed) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].QueuedAt.Equal(items[j].QueuedAt) {
			return items[i].QueuedAt.Before(items[j].QueuedAt)
		}
		return items[i].Key < items[j].Key
	})
}
