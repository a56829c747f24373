package obs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Time logs the duration of op when the returned func runs, with the error
// stored behind errp if any:
//
//	defer obs.Time(ctx, log, "solve")(&err)
func Time(ctx context.Context, log zerolog.Logger, name string) func(errp *error) {
	start := time.Now()
	reqID := RequestID(ctx)

	return func(errp *error) {
		ev := log.Debug()
		if errp != nil && *errp != nil {
			ev = log.Warn().Err(*errp)
		}
		if reqID != "" {
			ev = ev.Str("req_id", reqID)
		}
		ev.Str("op", name).Dur("dur", time.Since(start)).Msg("timed")
	}
}
