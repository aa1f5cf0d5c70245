package eventing

import (
	"math/rand"
	"time"

	"github.com/benk79tb/keripy/internal/logging"
	"github.com/benk79tb/keripy/internal/observability"
	"github.com/benk79tb/keripy/internal/protocol"
	"github.com/benk79tb/keripy/kering"
	"github.com/rs/zerolog"
)

// Store persists accepted key events.
type Store interface {
	PutEvent(prefix string, sn uint64, raw []byte) error
}

// KeveryConfig bounds escrow retries.
type KeveryConfig struct {
	Backoff     BackoffConfig
	MaxAttempts int
}

func DefaultKeveryConfig() KeveryConfig {
	return KeveryConfig{Backoff: DefaultBackoff(), MaxAttempts: 8}
}

// Kevery processes extracted messages: valid ones are accepted and stored,
// escrowable failures are parked for retry, and the rest are returned.
type Kevery struct {
	cfg       KeveryConfig
	validator *Validator
	escrow    *Escrow
	exchanger *Exchanger
	store     Store
	logger    zerolog.Logger
	now       func() time.Time
	rng       *rand.Rand
}

func NewKevery(cfg KeveryConfig, v *Validator, x *Exchanger, store Store, logger zerolog.Logger) *Kevery {
	return &Kevery{
		cfg:       cfg,
		validator: v,
		escrow:    NewEscrow(),
		exchanger: x,
		store:     store,
		logger:    logger,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (k *Kevery) Escrow() *Escrow {
	return k.escrow
}

// Process handles one message. An escrowed message still returns its error
// so the caller sees why it was not accepted.
func (k *Kevery) Process(msg *protocol.Message) error {
	err := k.process(msg)
	if err == nil {
		return nil
	}
	observability.RecordError("eventing", err)
	if Escrowable(err) {
		now := k.now()
		item := Escrowed{
			Key:           EscrowKey(msg),
			Msg:           msg,
			QueuedAt:      now,
			NextAttemptAt: now.Add(NextBackoffDelay(k.cfg.Backoff, 1, k.rng)),
			LastError:     err.Error(),
		}
		item.Kind, _ = kering.KindOf(err)
		if prev, ok := k.escrow.Get(item.Key); ok {
			item.QueuedAt = prev.QueuedAt
			item.Attempts = prev.Attempts
		}
		k.escrow.Upsert(item)
		logging.Event(k.logger, err).Str("escrow", item.Key).Msg("escrowed")
	}
	return err
}

// process persists a key event before recording it, so a store refusal
// leaves key state untouched.
func (k *Kevery) process(msg *protocol.Message) error {
	if err := k.validator.Validate(msg); err != nil {
		return err
	}
	switch msg.T {
	case protocol.IlkIcp, protocol.IlkDip, protocol.IlkRot, protocol.IlkDrt, protocol.IlkIxn:
		if k.store != nil {
			sn, _ := msg.Sn()
			if err := k.store.PutEvent(msg.I, sn, msg.Raw); err != nil {
				return err
			}
		}
	}
	if err := k.validator.Accept(msg); err != nil {
		return err
	}
	if msg.T == protocol.IlkExn {
		if k.exchanger == nil {
			return kering.New(kering.ErrExchange, "no exchanger configured")
		}
		return k.exchanger.Handle(msg)
	}
	return nil
}

// ProcessEscrows retries every due escrowed message once. Accepted and
// no-longer-escrowable messages leave the escrow; so do messages past
// MaxAttempts. It returns how many were accepted.
func (k *Kevery) ProcessEscrows() int {
	accepted := 0
	for _, item := range k.escrow.Due(k.now()) {
		err := k.process(item.Msg)
		switch {
		case err == nil:
			k.escrow.Remove(item.Key)
			accepted++
			k.logger.Debug().Str("escrow", item.Key).Msg("escrow_accepted")
		case !Escrowable(err):
			k.escrow.Remove(item.Key)
			observability.RecordError("escrow", err)
			logging.Event(k.logger, err).Str("escrow", item.Key).Msg("escrow_dropped")
		default:
			now := k.now()
			next := now.Add(NextBackoffDelay(k.cfg.Backoff, item.Attempts+2, k.rng))
			updated, _ := k.escrow.MarkAttempt(item.Key, now, next, err)
			if k.cfg.MaxAttempts > 0 && updated.Attempts >= k.cfg.MaxAttempts {
				k.escrow.Remove(item.Key)
				logging.Event(k.logger, err).Str("escrow", item.Key).Int("attempts", updated.Attempts).Msg("escrow_expired")
			}
		}
	}
	return accepted
}
