package memory

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestCreateRoom(t *testing.T) {
	ms := NewMemStore()

	id, prev := ms.CreateRoom("a")
	if len(id) != defaultRoomIDLength {
		t.Fatalf("expected %d char room id, got %q", defaultRoomIDLength, id)
	}
	if prev.RoomID != "" {
		t.Fatalf("expected no previous room, got %+v", prev)
	}
	info, err := ms.GetRoom(id)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if info.Members != 1 {
		t.Fatalf("expected 1 member, got %d", info.Members)
	}
	if got, ok := ms.RoomOf("a"); !ok || got != id {
		t.Fatalf("expected a to be in %s, got %q", id, got)
	}
}

func TestCreateRoomRegeneratesOnCollision(t *testing.T) {
	ms := NewMemStore()
	ids := []string{"aaaa", "aaaa", "aaaa", "bbbb"}
	ms.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, _ := ms.CreateRoom("a")
	second, _ := ms.CreateRoom("b")
	if first != "aaaa" || second != "bbbb" {
		t.Fatalf("expected aaaa and bbbb, got %s and %s", first, second)
	}
}

func TestCreateRoomLeavesPrevious(t *testing.T) {
	ms := NewMemStore()

	old, _ := ms.CreateRoom("a")
	_, prev := ms.CreateRoom("a")
	if prev.RoomID != old || !prev.Deleted {
		t.Fatalf("expected previous room %s deleted, got %+v", old, prev)
	}
	if _, err := ms.GetRoom(old); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected old room gone, got %v", err)
	}
	if ms.Len() != 1 {
		t.Fatalf("expected 1 room, got %d", ms.Len())
	}
}

func TestJoinRoomMiss(t *testing.T) {
	ms := NewMemStore()

	if _, err := ms.JoinRoom("ZZZZZZ", "c"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if ms.Len() != 0 {
		t.Fatalf("join miss must not create a room, have %d", ms.Len())
	}
	if _, ok := ms.RoomOf("c"); ok {
		t.Fatal("c must stay unassociated")
	}
}

func TestJoinAndPeers(t *testing.T) {
	ms := NewMemStore()
	id, _ := ms.CreateRoom("a")
	if _, err := ms.JoinRoom(id, "b"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := ms.JoinRoom(id, "c"); err != nil {
		t.Fatalf("join: %v", err)
	}

	roomID, peers, err := ms.Peers("b")
	if err != nil {
		t.Fatalf("peers: %v", err)
	}
	if roomID != id {
		t.Fatalf("expected room %s, got %s", id, roomID)
	}
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers, got %v", peers)
	}
	for _, p := range peers {
		if p == "b" {
			t.Fatal("peers must not include the caller")
		}
	}

	if _, _, err = ms.Peers("nobody"); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	ms := NewMemStore()
	id, _ := ms.CreateRoom("a")
	_, _ = ms.JoinRoom(id, "b")

	dep, err := ms.LeaveRoom("a")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if dep.RoomID != id || dep.Deleted {
		t.Fatalf("room must survive while b is in it, got %+v", dep)
	}

	dep, err = ms.LeaveRoom("b")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !dep.Deleted {
		t.Fatalf("expected room deleted, got %+v", dep)
	}
	if _, err = ms.JoinRoom(id, "c"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected join after cleanup to fail, got %v", err)
	}

	if _, err = ms.LeaveRoom("b"); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember on second leave, got %v", err)
	}
}

func TestListRooms(t *testing.T) {
	ms := NewMemStore()
	a, _ := ms.CreateRoom("a")
	_, _ = ms.JoinRoom(a, "b")
	_, _ = ms.CreateRoom("c")

	rooms := ms.ListRooms()
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %v", rooms)
	}
	total := 0
	for _, r := range rooms {
		total += r.Members
	}
	if total != 3 {
		t.Fatalf("expected 3 members total, got %d", total)
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	ms := NewMemStore()
	id, _ := ms.CreateRoom("owner")

	wg := &sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			if _, err := ms.JoinRoom(id, conn); err != nil {
				t.Errorf("join %s: %v", conn, err)
				return
			}
			if _, err := ms.LeaveRoom(conn); err != nil {
				t.Errorf("leave %s: %v", conn, err)
			}
		}(i)
	}
	wg.Wait()

	info, err := ms.GetRoom(id)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if info.Members != 1 {
		t.Fatalf("expected only the owner left, got %d", info.Members)
	}
}
