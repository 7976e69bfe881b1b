package service

import (
	"context"
	"errors"

	"github.com/adwski/scenesync/backend/metrics"
	"github.com/adwski/scenesync/backend/model"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrConnect = errors.New("unable to connect")
)

type (
	RoomStore interface {
		CreateRoom(connID string) (string, model.Departure)
		JoinRoom(roomID, connID string) (model.Departure, error)
		LeaveRoom(connID string) (model.Departure, error)
		Peers(connID string) (string, []string, error)
		ListRooms() []model.RoomInfo
	}

	Switch interface {
		Connect(endpoint string, wire model.Wire) error
		Disconnect(endpoint string)
		Send(ctx context.Context, dst string, msg model.Message) bool
		Forward(ctx context.Context, msg model.Message, dsts []string) int
	}

	// Service is the relay hub. It interprets inbound messages of every
	// connection against the room store and routes replies and updates
	// through the switch.
	Service struct {
		store  RoomStore
		sw     Switch
		logger zerolog.Logger
	}

	Config struct {
		RoomStore RoomStore
		Switch    Switch
		Logger    *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		store:  cfg.RoomStore,
		sw:     cfg.Switch,
		logger: cfg.Logger.With().Str("component", "hub").Logger(),
	}
}

// Connect registers a new connection without room membership and returns
// its id.
func (svc *Service) Connect(wire model.Wire) (string, error) {
	connID := uuid.NewString()
	if err := svc.sw.Connect(connID, wire); err != nil {
		return "", errors.Join(ErrConnect, err)
	}
	svc.logger.Debug().Str("connID", connID).Msg("connection registered")
	return connID, nil
}

// Disconnect releases the room membership of connID and unregisters it.
func (svc *Service) Disconnect(connID string) {
	dep, err := svc.store.LeaveRoom(connID)
	if err == nil {
		svc.departed(connID, dep)
	}
	svc.sw.Disconnect(connID)
	svc.logger.Debug().Str("connID", connID).Msg("connection unregistered")
}

// Handle dispatches one decoded inbound message. Every failure is handled
// here, nothing is returned to the transport.
func (svc *Service) Handle(ctx context.Context, connID string, msg model.Message) {
	if e := svc.logger.Trace(); e.Enabled() {
		e.Str("connID", connID).Str("msg", spew.Sdump(msg)).Msg("inbound message")
	}

	switch msg.Action {
	case model.ActionHost:
		metrics.RecordReceived(msg.Action)
		svc.host(ctx, connID)
	case model.ActionJoin:
		metrics.RecordReceived(msg.Action)
		svc.join(ctx, connID, msg.RoomID)
	case model.ActionUpdate:
		metrics.RecordReceived(msg.Action)
		svc.update(ctx, connID, msg)
	case model.ActionLeave:
		metrics.RecordReceived(msg.Action)
		svc.leave(ctx, connID)
	default:
		metrics.RecordDropped(metrics.DropUnknown)
		svc.logger.Debug().
			Str("connID", connID).
			Str("action", msg.Action).
			Msg("unknown action, dropped")
	}
}

func (svc *Service) host(ctx context.Context, connID string) {
	roomID, prev := svc.store.CreateRoom(connID)
	svc.departed(connID, prev)
	metrics.Rooms.Inc()
	svc.logger.Info().
		Str("connID", connID).
		Str("roomID", roomID).
		Msg("room created")

	svc.sw.Send(ctx, connID, model.Hosted(roomID))
}

func (svc *Service) join(ctx context.Context, connID, roomID string) {
	prev, err := svc.store.JoinRoom(roomID, connID)
	if err != nil {
		svc.logger.Debug().
			Err(err).
			Str("connID", connID).
			Str("roomID", roomID).
			Msg("join failed")
		svc.sw.Send(ctx, connID, model.Error(model.ErrMsgRoomNotFound))
		return
	}
	svc.departed(connID, prev)
	svc.logger.Info().
		Str("connID", connID).
		Str("roomID", roomID).
		Msg("client joined room")

	svc.sw.Send(ctx, connID, model.Joined(roomID))
}

func (svc *Service) leave(ctx context.Context, connID string) {
	dep, err := svc.store.LeaveRoom(connID)
	if err != nil {
		svc.logger.Debug().Err(err).Str("connID", connID).Msg("leave ignored")
		return
	}
	svc.departed(connID, dep)
	svc.sw.Send(ctx, connID, model.Left(dep.RoomID))
}

func (svc *Service) update(ctx context.Context, connID string, msg model.Message) {
	if msg.Data == nil {
		metrics.RecordDropped(metrics.DropMalformed)
		svc.logger.Debug().Str("connID", connID).Msg("update without data, dropped")
		return
	}
	roomID, peers, err := svc.store.Peers(connID)
	if err != nil {
		// updating before host/join is not an error
		metrics.RecordDropped(metrics.DropNoRoom)
		return
	}

	n := svc.sw.Forward(ctx, model.Update(*msg.Data), peers)
	metrics.MessagesForwarded.Add(float64(n))
	svc.logger.Trace().
		Str("connID", connID).
		Str("roomID", roomID).
		Str("object", msg.Data.Name).
		Int("delivered", n).
		Msg("update forwarded")
}

func (svc *Service) departed(connID string, dep model.Departure) {
	if dep.RoomID == "" {
		return
	}
	svc.logger.Debug().
		Str("connID", connID).
		Str("roomID", dep.RoomID).
		Msg("connection left room")
	if dep.Deleted {
		metrics.Rooms.Dec()
		svc.logger.Info().Str("roomID", dep.RoomID).Msg("room closed")
	}
}

func (svc *Service) Rooms() []model.RoomInfo {
	return svc.store.ListRooms()
}
