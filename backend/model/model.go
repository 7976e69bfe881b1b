package model

import "math"

// Client requests, carried in the "action" field.
const (
	ActionHost   = "host"
	ActionJoin   = "join"
	ActionUpdate = "update"
	ActionLeave  = "leave"
)

// Relay replies and broadcasts, carried in the "type" field.
const (
	TypeHosted = "hosted"
	TypeJoined = "joined"
	TypeLeft   = "left"
	TypeError  = "error"
	TypeUpdate = "update"
)

const ErrMsgRoomNotFound = "Room not found"

type Vec3 [3]float64

type Transform struct {
	Location Vec3 `json:"location"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

// ObjectState is the full transform of one named object. It is the payload
// of every update, there are no partial deltas.
type ObjectState struct {
	Name string `json:"name"`
	Transform
}

// Message is the single envelope for both directions. Client requests set
// Action, relay messages set Type.
type Message struct {
	Action  string       `json:"action,omitempty"`
	Type    string       `json:"type,omitempty"`
	RoomID  string       `json:"room_id,omitempty"`
	Message string       `json:"message,omitempty"`
	Data    *ObjectState `json:"data,omitempty"`
}

type RoomInfo struct {
	ID      string `json:"room_id"`
	Members int    `json:"members"`
}

// Departure describes a connection leaving a room. Zero value means the
// connection was not in any room.
type Departure struct {
	RoomID  string
	Deleted bool
}

// Wire is the outbound side of one relay connection. TX is drained by the
// connection's sender, Done is closed when the connection goes away.
type Wire struct {
	TX   chan Message
	Done <-chan struct{}
}

func NewWire(done <-chan struct{}, buffer int) Wire {
	return Wire{
		TX:   make(chan Message, buffer),
		Done: done,
	}
}

func IdentityTransform() Transform {
	return Transform{Scale: Vec3{1, 1, 1}}
}

// Finite reports whether every component is a real number. NaN and Inf
// cannot be encoded as JSON.
func (v Vec3) Finite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (t Transform) Finite() bool {
	return t.Location.Finite() && t.Rotation.Finite() && t.Scale.Finite()
}

func HostRequest() Message {
	return Message{Action: ActionHost}
}

func JoinRequest(roomID string) Message {
	return Message{Action: ActionJoin, RoomID: roomID}
}

func LeaveRequest() Message {
	return Message{Action: ActionLeave}
}

func UpdateRequest(state ObjectState) Message {
	return Message{Action: ActionUpdate, Data: &state}
}

func Hosted(roomID string) Message {
	return Message{Type: TypeHosted, RoomID: roomID}
}

func Joined(roomID string) Message {
	return Message{Type: TypeJoined, RoomID: roomID}
}

func Left(roomID string) Message {
	return Message{Type: TypeLeft, RoomID: roomID}
}

func Error(msg string) Message {
	return Message{Type: TypeError, Message: msg}
}

func Update(state ObjectState) Message {
	return Message{Type: TypeUpdate, Data: &state}
}
