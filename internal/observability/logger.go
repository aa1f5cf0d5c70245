package observability

import (
	"os"

	"github.com/benk79tb/keripy/internal/logging"
	"github.com/benk79tb/keripy/kering"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the process logger for a node, tagged with its alias,
// role and protocol version.
func InitLogger(alias string, role kering.Role, level zerolog.Level) zerolog.Logger {
	logger := logging.New(os.Stdout, logging.Config{Level: level, Timestamp: true}).
		With().
		Str("alias", alias).
		Str("role", string(role)).
		Str("keri", kering.Version().String()).
		Logger()
	log.Logger = logger
	return logger
}
