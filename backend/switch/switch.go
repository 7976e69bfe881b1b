package _switch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adwski/scenesync/backend/metrics"
	"github.com/adwski/scenesync/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultFwdTimout = time.Second
)

var (
	ErrEndpointExists = errors.New("endpoint is already connected")
)

// Switch holds the outbound wire of every connected endpoint and delivers
// messages to them. It knows nothing about rooms.
type Switch struct {
	logger  zerolog.Logger
	mx      *sync.RWMutex
	fwd     map[string]model.Wire
	timeout time.Duration
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger:  logger.With().Str("component", "switch").Logger(),
		mx:      &sync.RWMutex{},
		fwd:     make(map[string]model.Wire),
		timeout: defaultFwdTimout,
	}
}

func (sw *Switch) Connect(endpoint string, wire model.Wire) error {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	if _, ok := sw.fwd[endpoint]; ok {
		return ErrEndpointExists
	}
	sw.fwd[endpoint] = wire
	metrics.Connections.Inc()
	sw.logger.Debug().Str("endpoint", endpoint).Msg("endpoint connected")
	return nil
}

func (sw *Switch) Disconnect(endpoint string) {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	if _, ok := sw.fwd[endpoint]; !ok {
		return
	}
	delete(sw.fwd, endpoint)
	metrics.Connections.Dec()
	sw.logger.Debug().Str("endpoint", endpoint).Msg("endpoint disconnected")
}

// Send delivers msg to a single endpoint.
func (sw *Switch) Send(ctx context.Context, dst string, msg model.Message) bool {
	sw.mx.RLock()
	wire, ok := sw.fwd[dst]
	sw.mx.RUnlock()
	if !ok {
		sw.logger.Debug().Str("dst", dst).Msg("cannot send, dst not found")
		return false
	}
	sent, _ := sw.send(ctx, msg, dst, wire)
	return sent
}

// Forward delivers msg to every endpoint in dsts. Delivery to each endpoint
// is bounded by the forward timeout, a dead endpoint only costs its own
// slot. Returns how many endpoints got the message.
func (sw *Switch) Forward(ctx context.Context, msg model.Message, dsts []string) int {
	sw.mx.RLock()
	wires := make(map[string]model.Wire, len(dsts))
	for _, dst := range dsts {
		if wire, ok := sw.fwd[dst]; ok {
			wires[dst] = wire
		}
	}
	sw.mx.RUnlock()

	var delivered int
	for dst, wire := range wires {
		sent, canceled := sw.send(ctx, msg, dst, wire)
		if canceled {
			break
		}
		if sent {
			delivered++
		}
	}
	return delivered
}

func (sw *Switch) send(ctx context.Context, msg model.Message, dst string, wire model.Wire) (bool, bool) {
	// fast path, the wire is buffered
	select {
	case wire.TX <- msg:
		return true, false
	default:
	}

	var sent, canceled bool
	tCh := time.NewTimer(sw.timeout)
	select {
	case <-ctx.Done():
		canceled = true
	case <-wire.Done:
		metrics.RecordDropped(metrics.DropGone)
		sw.logger.Debug().Str("dst", dst).Msg("endpoint is gone")
	case <-tCh.C:
		metrics.RecordDropped(metrics.DropTimeout)
		sw.logger.Error().Str("dst", dst).Msg("dead endpoint")
	case wire.TX <- msg:
		sent = true
	}
	tCh.Stop()
	return sent, canceled
}
