package feed

import (
	"context"
	"sync/atomic"
	"time"

	"harvest_monitor/internal/logger"
)

// Source is a push subscription. Subscribe blocks, calling emit for every
// payload, until ctx is done (returns nil) or the subscription breaks.
type Source interface {
	Subscribe(ctx context.Context, emit func(Payload)) error
}

const (
	defaultMinBackoff = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Adapter owns the single long-lived subscription and maps payloads into State.
type Adapter struct {
	src   Source
	state *State
	log   *logger.Logger
	now   func() time.Time

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewAdapter(src Source, state *State, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.Nop()
	}
	return &Adapter{
		src:        src,
		state:      state,
		log:        log,
		now:        time.Now,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
}

// Run subscribes once and resubscribes with capped exponential backoff when the
// source fails. It returns when ctx is canceled.
func (a *Adapter) Run(ctx context.Context) {
	backoff := a.minBackoff
	for {
		var received atomic.Bool
		err := a.src.Subscribe(ctx, func(p Payload) {
			received.Store(true)
			a.state.Set(p.ToReading(a.now()))
		})
		if ctx.Err() != nil {
			return
		}
		if received.Load() {
			backoff = a.minBackoff
		}
		a.log.Warnw("feed_subscription_lost", "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > a.maxBackoff {
			backoff = a.maxBackoff
		}
	}
}
