package logging

import (
	"github.com/benk79tb/keripy/kering"
	"github.com/rs/zerolog"
)

// Error logs err with its kind and ancestry. Shortage logs at debug and
// duplicity at error; other kinds warn.
func Error(logger zerolog.Logger, err error) {
	if err == nil {
		return
	}
	Event(logger, err).Msg("keri_error")
}

// Event returns a populated event at the level matching err's kind, for
// callers that add their own fields.
func Event(logger zerolog.Logger, err error) *zerolog.Event {
	kind, ok := kering.KindOf(err)
	var ev *zerolog.Event
	switch {
	case !ok:
		ev = logger.Error()
	case kind.IsA(kering.ErrShortage):
		ev = logger.Debug()
	case kind.IsA(kering.ErrLikelyDuplicitous):
		ev = logger.Error()
	default:
		ev = logger.Warn()
	}
	if ok {
		ev = ev.Str("kind", kind.String()).
			Str("category", kind.Category().String()).
			Strs("ancestry", kering.Ancestry(err))
	}
	return ev.Err(err)
}
