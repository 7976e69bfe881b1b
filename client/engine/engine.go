// Package engine runs the client side of a sync session: it samples the
// local object model on a fixed tick, ships changed transforms to the relay
// and applies transforms received from peers without echoing them back.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adwski/scenesync/backend/model"
	"github.com/adwski/scenesync/client/tracker"
	"github.com/adwski/scenesync/client/transport"
	"github.com/rs/zerolog"
)

const (
	// DefaultTickInterval samples the object model at 20 Hz.
	DefaultTickInterval = 50 * time.Millisecond
)

var (
	ErrAlreadyConnected = errors.New("session is already running")
	ErrNotConnected     = errors.New("no session is running")
	ErrInvalidRole      = errors.New("role must be host or join")
	ErrNoRoomCode       = errors.New("join requires a room code")
)

type Status int32

const (
	Disconnected Status = iota
	Connecting
	Connected
	Error
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Error:
		return "Error"
	}
	return "Unknown"
}

type Role string

const (
	RoleHost Role = "host"
	RoleJoin Role = "join"
)

type (
	// ObjectHandle is whatever the object model uses to address an object.
	ObjectHandle = any

	// ObjectModel is the host application's scene.
	ObjectModel interface {
		ActiveObject() (model.ObjectState, bool)
		ObjectByName(name string) (ObjectHandle, bool)
		// ApplyState writes t and returns the transform the object holds
		// afterwards, at the model's own precision.
		ApplyState(h ObjectHandle, t model.Transform) model.Transform
		EditableModeActive() bool
	}

	// ObjectLister is implemented by object models that can enumerate every
	// object, used when the whole scene is tracked.
	ObjectLister interface {
		Objects() []model.ObjectState
	}

	Transport interface {
		WriteMessage(model.Message) error
		ReadMessage() (model.Message, error)
		Close() error
	}

	DialFunc func(ctx context.Context, url string) (Transport, error)

	Config struct {
		URL    string
		Scene  ObjectModel
		Logger *zerolog.Logger
		Dial   DialFunc

		// TickInterval is the sampling period. Zero means DefaultTickInterval,
		// a negative value disables the internal ticker and leaves sampling
		// to Tick.
		TickInterval time.Duration

		// TrackAll samples every object instead of only the active one. The
		// scene must implement ObjectLister.
		TrackAll bool

		// Callbacks run on engine goroutines and must not block or call
		// Tick.
		OnRoom   func(roomID string)
		OnStatus func(Status)
		OnError  func(msg string)
	}
)

type session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sendQ   *Queue[model.Message]
	recvQ   *Queue[model.Message]
	tracker *tracker.Tracker
	warned  map[string]struct{}
	failed  atomic.Bool
	done    chan struct{}
}

// Engine owns at most one session at a time. There is no automatic
// reconnect, a new Connect is needed after the session ends.
type Engine struct {
	url      string
	scene    ObjectModel
	dial     DialFunc
	tick     time.Duration
	trackAll bool
	onRoom   func(string)
	onStatus func(Status)
	onError  func(string)
	logger   zerolog.Logger

	mx     sync.Mutex
	status Status
	roomID string
	sess   *session

	syncMx sync.Mutex
}

func WebsocketDialer(ctx context.Context, url string) (Transport, error) {
	conn, err := transport.Dialer{}.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		url:      cfg.URL,
		scene:    cfg.Scene,
		dial:     cfg.Dial,
		tick:     cfg.TickInterval,
		trackAll: cfg.TrackAll,
		onRoom:   cfg.OnRoom,
		onStatus: cfg.OnStatus,
		onError:  cfg.OnError,
	}
	if e.dial == nil {
		e.dial = WebsocketDialer
	}
	if e.tick == 0 {
		e.tick = DefaultTickInterval
	}
	if cfg.Logger != nil {
		e.logger = cfg.Logger.With().Str("component", "sync-engine").Logger()
	} else {
		e.logger = zerolog.Nop()
	}
	return e
}

func (e *Engine) Status() Status {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.status
}

// RoomID is the room the relay last confirmed, empty before host/join
// completes.
func (e *Engine) RoomID() string {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.roomID
}

// Connect starts a session in the background. The host or join request is
// sent once the transport handshake has completed.
func (e *Engine) Connect(ctx context.Context, role Role, roomCode string) error {
	var initial model.Message
	switch role {
	case RoleHost:
		initial = model.HostRequest()
	case RoleJoin:
		if roomCode == "" {
			return ErrNoRoomCode
		}
		initial = model.JoinRequest(roomCode)
	default:
		return ErrInvalidRole
	}

	e.mx.Lock()
	if e.sess != nil {
		e.mx.Unlock()
		return ErrAlreadyConnected
	}
	sCtx, cancel := context.WithCancel(ctx)
	s := &session{
		ctx:     sCtx,
		cancel:  cancel,
		sendQ:   NewQueue[model.Message](),
		recvQ:   NewQueue[model.Message](),
		tracker: tracker.New(),
		warned:  make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	e.sess = s
	e.roomID = ""
	e.status = Connecting
	e.mx.Unlock()
	e.notifyStatus(Connecting)

	go e.run(s, initial)
	return nil
}

// Disconnect stops the running session. It returns immediately, use Wait to
// block until the session has settled.
func (e *Engine) Disconnect() {
	if s := e.current(); s != nil {
		s.cancel()
	}
}

// Wait blocks until the current session, if any, has stopped.
func (e *Engine) Wait() {
	if s := e.current(); s != nil {
		<-s.done
	}
}

// Leave asks the relay to drop this client from its room while keeping the
// connection open.
func (e *Engine) Leave() error {
	s := e.current()
	if s == nil {
		return ErrNotConnected
	}
	s.sendQ.Push(model.LeaveRequest())
	return nil
}

// Tick runs one sampling step on the current session.
func (e *Engine) Tick() {
	if s := e.current(); s != nil {
		e.tickSession(s)
	}
}

func (e *Engine) current() *session {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.sess
}

func (e *Engine) run(s *session, initial model.Message) {
	defer e.finish(s)

	tr, err := e.dial(s.ctx, e.url)
	if err != nil {
		if s.ctx.Err() == nil {
			e.logger.Error().Err(err).Str("url", e.url).Msg("connection failed")
			e.transition(s, Error)
		}
		return
	}
	e.logger.Info().Str("url", e.url).Msg("connected to relay")
	e.transition(s, Connected)

	// the transport is open, the role request cannot be lost to a handshake
	// still in flight
	s.sendQ.Push(initial)

	go func() {
		<-s.ctx.Done()
		if err := tr.Close(); err != nil {
			e.logger.Debug().Err(err).Msg("transport close")
		}
	}()

	wg := &sync.WaitGroup{}
	wg.Add(2)
	go e.sender(s, wg, tr)
	go e.receiver(s, wg, tr)
	if e.tick > 0 {
		wg.Add(1)
		go e.sampler(s, wg)
	}
	wg.Wait()

	if s.failed.Load() {
		e.transition(s, Error)
	}
}

func (e *Engine) finish(s *session) {
	s.cancel()

	e.mx.Lock()
	current := e.sess == s
	if current {
		e.sess = nil
		e.roomID = ""
		e.status = Disconnected
	}
	e.mx.Unlock()

	if current {
		e.notifyStatus(Disconnected)
	}
	e.logger.Info().Msg("session stopped")
	close(s.done)
}

func (e *Engine) transition(s *session, st Status) {
	e.mx.Lock()
	if e.sess != s {
		e.mx.Unlock()
		return
	}
	e.status = st
	e.mx.Unlock()
	e.notifyStatus(st)
}

func (e *Engine) notifyStatus(st Status) {
	e.logger.Debug().Stringer("status", st).Msg("status changed")
	if e.onStatus != nil {
		e.onStatus(st)
	}
}

func (e *Engine) sender(s *session, wg *sync.WaitGroup, tr Transport) {
	defer wg.Done()
	for {
		msg, err := s.sendQ.Pop(s.ctx)
		if err != nil {
			return
		}
		if err = tr.WriteMessage(msg); err != nil {
			if errors.Is(err, transport.ErrMalformed) {
				e.logger.Warn().Err(err).Str("action", msg.Action).Msg("cannot encode message, dropped")
				continue
			}
			if s.ctx.Err() == nil {
				e.logger.Error().Err(err).Msg("send failed")
				s.failed.Store(true)
				s.cancel()
			}
			return
		}
	}
}

func (e *Engine) receiver(s *session, wg *sync.WaitGroup, tr Transport) {
	defer wg.Done()
	for {
		msg, err := tr.ReadMessage()
		if err != nil {
			if errors.Is(err, transport.ErrMalformed) {
				e.logger.Warn().Err(err).Msg("received invalid message, dropped")
				continue
			}
			if s.ctx.Err() == nil {
				e.logger.Error().Err(err).Msg("connection lost")
				s.failed.Store(true)
				s.cancel()
			}
			return
		}
		s.recvQ.Push(msg)
	}
}

func (e *Engine) sampler(s *session, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			e.tickSession(s)
		}
	}
}

// tickSession applies everything received so far, then looks for local
// edits. Both halves run under syncMx so a remote apply and a local check
// never interleave.
func (e *Engine) tickSession(s *session) {
	e.syncMx.Lock()
	defer e.syncMx.Unlock()

	for _, msg := range s.recvQ.Drain() {
		e.handleMessage(s, msg)
	}

	if !e.scene.EditableModeActive() {
		return
	}
	for _, state := range e.observe() {
		delta, ok := s.tracker.DetectChange(state)
		if !ok {
			continue
		}
		e.logger.Debug().Str("object", delta.Name).Msg("sending update")
		s.sendQ.Push(model.UpdateRequest(delta))
	}
}

func (e *Engine) observe() []model.ObjectState {
	if e.trackAll {
		if l, ok := e.scene.(ObjectLister); ok {
			return l.Objects()
		}
	}
	state, ok := e.scene.ActiveObject()
	if !ok {
		return nil
	}
	return []model.ObjectState{state}
}

func (e *Engine) handleMessage(s *session, msg model.Message) {
	switch msg.Type {
	case model.TypeHosted, model.TypeJoined:
		e.setRoom(s, msg.RoomID)
		e.logger.Info().Str("type", msg.Type).Str("roomID", msg.RoomID).Msg("in room")
		if e.onRoom != nil {
			e.onRoom(msg.RoomID)
		}
	case model.TypeLeft:
		e.setRoom(s, "")
		e.logger.Info().Str("roomID", msg.RoomID).Msg("left room")
	case model.TypeError:
		e.logger.Warn().Str("message", msg.Message).Msg("relay error")
		if e.onError != nil {
			e.onError(msg.Message)
		}
	case model.TypeUpdate:
		e.applyRemote(s, msg.Data)
	default:
		e.logger.Debug().Str("type", msg.Type).Msg("unknown message type, dropped")
	}
}

func (e *Engine) setRoom(s *session, roomID string) {
	e.mx.Lock()
	defer e.mx.Unlock()
	if e.sess == s {
		e.roomID = roomID
	}
}

func (e *Engine) applyRemote(s *session, data *model.ObjectState) {
	if data == nil {
		e.logger.Warn().Msg("update without data, dropped")
		return
	}
	h, ok := e.scene.ObjectByName(data.Name)
	if !ok {
		s.tracker.Forget(data.Name)
		if _, seen := s.warned[data.Name]; !seen {
			s.warned[data.Name] = struct{}{}
			e.logger.Warn().Str("object", data.Name).Msg("object not found in this scene")
		}
		return
	}
	delete(s.warned, data.Name)

	e.logger.Debug().Str("object", data.Name).Msg("applying remote update")
	s.tracker.ApplyRemote(data.Name, func() model.Transform {
		return e.scene.ApplyState(h, data.Transform)
	})
}
