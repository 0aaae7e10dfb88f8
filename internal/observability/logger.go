package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns the process logger tagged with the component name. Call it
// after logging is configured so the component inherits the sink.
func Logger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
