package service

import (
	"context"
	"testing"

	"github.com/adwski/scenesync/backend/metrics"
	"github.com/adwski/scenesync/backend/model"
	store "github.com/adwski/scenesync/backend/storage/memory"
	sw "github.com/adwski/scenesync/backend/switch"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type peer struct {
	id   string
	wire model.Wire
}

func newTestService(t *testing.T) (*Service, *store.MemStore) {
	t.Helper()
	logger := zerolog.Nop()
	ms := store.NewMemStore()
	return NewService(Config{
		RoomStore: ms,
		Switch:    sw.NewSwitch(&logger),
		Logger:    &logger,
	}), ms
}

func connect(t *testing.T, svc *Service) *peer {
	t.Helper()
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	wire := model.NewWire(done, 16)
	id, err := svc.Connect(wire)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return &peer{id: id, wire: wire}
}

func (p *peer) next(t *testing.T) model.Message {
	t.Helper()
	select {
	case msg := <-p.wire.TX:
		return msg
	default:
		t.Fatalf("%s: expected a message", p.id)
	}
	return model.Message{}
}

func (p *peer) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case msg := <-p.wire.TX:
		t.Fatalf("%s: unexpected message %+v", p.id, msg)
	default:
	}
}

func host(t *testing.T, svc *Service, p *peer) string {
	t.Helper()
	svc.Handle(context.Background(), p.id, model.HostRequest())
	msg := p.next(t)
	if msg.Type != model.TypeHosted || msg.RoomID == "" {
		t.Fatalf("expected hosted reply, got %+v", msg)
	}
	return msg.RoomID
}

func join(t *testing.T, svc *Service, p *peer, roomID string) {
	t.Helper()
	svc.Handle(context.Background(), p.id, model.JoinRequest(roomID))
	msg := p.next(t)
	if msg.Type != model.TypeJoined || msg.RoomID != roomID {
		t.Fatalf("expected joined(%s), got %+v", roomID, msg)
	}
}

func cube(x, y, z float64) model.ObjectState {
	tr := model.IdentityTransform()
	tr.Location = model.Vec3{x, y, z}
	return model.ObjectState{Name: "Cube", Transform: tr}
}

func TestHostJoinUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	a, b := connect(t, svc), connect(t, svc)

	roomID := host(t, svc, a)
	join(t, svc, b, roomID)

	svc.Handle(context.Background(), a.id, model.UpdateRequest(cube(1, 2, 3)))

	msg := b.next(t)
	if msg.Type != model.TypeUpdate || msg.Data == nil {
		t.Fatalf("expected update, got %+v", msg)
	}
	if *msg.Data != cube(1, 2, 3) {
		t.Fatalf("unexpected payload %+v", *msg.Data)
	}
	a.expectNothing(t)
}

func TestNoSelfEcho(t *testing.T) {
	svc, _ := newTestService(t)
	a, b, c := connect(t, svc), connect(t, svc), connect(t, svc)
	roomID := host(t, svc, a)
	join(t, svc, b, roomID)
	join(t, svc, c, roomID)

	svc.Handle(context.Background(), b.id, model.UpdateRequest(cube(0, 0, 1)))

	a.next(t)
	c.next(t)
	b.expectNothing(t)
}

func TestRoomIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	a1, a2 := connect(t, svc), connect(t, svc)
	b1, b2 := connect(t, svc), connect(t, svc)

	roomA := host(t, svc, a1)
	join(t, svc, a2, roomA)
	roomB := host(t, svc, b1)
	join(t, svc, b2, roomB)
	if roomA == roomB {
		t.Fatal("rooms must have distinct ids")
	}

	svc.Handle(context.Background(), a1.id, model.UpdateRequest(cube(5, 5, 5)))

	a2.next(t)
	b1.expectNothing(t)
	b2.expectNothing(t)
}

func TestJoinMiss(t *testing.T) {
	svc, ms := newTestService(t)
	c := connect(t, svc)

	svc.Handle(context.Background(), c.id, model.JoinRequest("ZZZZZZ"))

	msg := c.next(t)
	if msg.Type != model.TypeError || msg.Message != "Room not found" {
		t.Fatalf("expected Room not found error, got %+v", msg)
	}
	if ms.Len() != 0 {
		t.Fatalf("registry must be unchanged, got %d rooms", ms.Len())
	}
}

func TestUpdateWithoutRoomIsDropped(t *testing.T) {
	svc, _ := newTestService(t)
	a, b := connect(t, svc), connect(t, svc)
	_ = host(t, svc, b)

	svc.Handle(context.Background(), a.id, model.UpdateRequest(cube(1, 1, 1)))

	a.expectNothing(t)
	b.expectNothing(t)
}

func TestMalformedUpdateIsDropped(t *testing.T) {
	svc, _ := newTestService(t)
	a, b := connect(t, svc), connect(t, svc)
	roomID := host(t, svc, a)
	join(t, svc, b, roomID)

	before := testutil.ToFloat64(metrics.MessagesDropped.WithLabelValues(metrics.DropMalformed))
	svc.Handle(context.Background(), a.id, model.Message{Action: model.ActionUpdate})
	after := testutil.ToFloat64(metrics.MessagesDropped.WithLabelValues(metrics.DropMalformed))

	b.expectNothing(t)
	if after-before != 1 {
		t.Fatalf("expected malformed drop to be counted, got %v", after-before)
	}
}

func TestUnknownActionIsDropped(t *testing.T) {
	svc, _ := newTestService(t)
	a := connect(t, svc)

	svc.Handle(context.Background(), a.id, model.Message{Action: "dance"})

	a.expectNothing(t)
}

func TestDisconnectCleansUp(t *testing.T) {
	svc, ms := newTestService(t)
	a, b, c := connect(t, svc), connect(t, svc), connect(t, svc)
	roomID := host(t, svc, a)
	join(t, svc, b, roomID)

	svc.Disconnect(b.id)
	svc.Handle(context.Background(), a.id, model.UpdateRequest(cube(2, 2, 2)))
	b.expectNothing(t)

	svc.Disconnect(a.id)
	if ms.Len() != 0 {
		t.Fatalf("expected the room to be deleted, have %d", ms.Len())
	}

	svc.Handle(context.Background(), c.id, model.JoinRequest(roomID))
	if msg := c.next(t); msg.Type != model.TypeError {
		t.Fatalf("expected error joining a closed room, got %+v", msg)
	}
}

func TestLeave(t *testing.T) {
	svc, ms := newTestService(t)
	a := connect(t, svc)
	roomID := host(t, svc, a)

	svc.Handle(context.Background(), a.id, model.LeaveRequest())
	msg := a.next(t)
	if msg.Type != model.TypeLeft || msg.RoomID != roomID {
		t.Fatalf("expected left(%s), got %+v", roomID, msg)
	}
	if ms.Len() != 0 {
		t.Fatal("room must be deleted after its only member leaves")
	}

	svc.Handle(context.Background(), a.id, model.LeaveRequest())
	a.expectNothing(t)
}

func TestRoomGauge(t *testing.T) {
	svc, _ := newTestService(t)
	a := connect(t, svc)

	before := testutil.ToFloat64(metrics.Rooms)
	_ = host(t, svc, a)
	if got := testutil.ToFloat64(metrics.Rooms); got != before+1 {
		t.Fatalf("expected rooms gauge %v, got %v", before+1, got)
	}
	svc.Disconnect(a.id)
	if got := testutil.ToFloat64(metrics.Rooms); got != before {
		t.Fatalf("expected rooms gauge back to %v, got %v", before, got)
	}
}
