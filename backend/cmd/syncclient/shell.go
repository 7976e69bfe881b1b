package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/adwski/scenesync/backend/model"
	"github.com/adwski/scenesync/client/engine"
	"github.com/adwski/scenesync/client/scene"
)

const help = `commands:
  add NAME              create an object
  rm NAME               remove an object
  select [NAME]         make NAME the active object, no NAME clears it
  loc|rot|scale NAME X Y Z
  mode edit|view        enable or disable local change detection
  show                  print every object
  room                  print the current room and status
  leave                 leave the room, keep the connection
  connect [ROOM]        start a new session, hosting or joining ROOM
  disconnect            end the session
  quit`

var (
	errUsage     = errors.New("bad arguments, type help")
	errQuit      = errors.New("quit")
	errNonFinite = errors.New("components must be finite numbers")
)

type syncEngine interface {
	Connect(ctx context.Context, role engine.Role, roomCode string) error
	Disconnect()
	RoomID() string
	Status() engine.Status
	Leave() error
}

type shell struct {
	ctx    context.Context
	scene  *scene.Scene
	engine syncEngine
	out    io.Writer
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines <- sc.Text()
	}
}

// exec runs one command line and reports whether the client should exit.
func (sh *shell) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	if err := sh.run(fields[0], fields[1:]); err != nil {
		if errors.Is(err, errQuit) {
			return true
		}
		fmt.Fprintln(sh.out, "error:", err)
	}
	return false
}

func (sh *shell) run(cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(sh.out, help)
	case "quit", "exit":
		return errQuit
	case "add":
		if len(args) != 1 {
			return errUsage
		}
		sh.scene.Add(args[0])
	case "rm":
		if len(args) != 1 {
			return errUsage
		}
		sh.scene.Remove(args[0])
	case "select":
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return sh.scene.Select(name)
	case "loc", "rot", "scale":
		if len(args) != 4 {
			return errUsage
		}
		v, err := parseVec(args[1:])
		if err != nil {
			return err
		}
		switch cmd {
		case "loc":
			return sh.scene.SetLocation(args[0], v)
		case "rot":
			return sh.scene.SetRotation(args[0], v)
		default:
			return sh.scene.SetScale(args[0], v)
		}
	case "mode":
		if len(args) != 1 {
			return errUsage
		}
		switch args[0] {
		case "edit":
			sh.scene.SetEditable(true)
		case "view":
			sh.scene.SetEditable(false)
		default:
			return errUsage
		}
	case "show":
		for _, o := range sh.scene.Objects() {
			fmt.Fprintf(sh.out, "%s loc=%v rot=%v scale=%v\n", o.Name, o.Location, o.Rotation, o.Scale)
		}
	case "room":
		fmt.Fprintf(sh.out, "room=%q status=%s\n", sh.engine.RoomID(), sh.engine.Status())
	case "leave":
		return sh.engine.Leave()
	case "connect":
		switch len(args) {
		case 0:
			return sh.engine.Connect(sh.ctx, engine.RoleHost, "")
		case 1:
			return sh.engine.Connect(sh.ctx, engine.RoleJoin, args[0])
		default:
			return errUsage
		}
	case "disconnect":
		sh.engine.Disconnect()
	default:
		return fmt.Errorf("unknown command %q, type help", cmd)
	}
	return nil
}

func parseVec(args []string) (model.Vec3, error) {
	var v model.Vec3
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return v, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = f
	}
	if !v.Finite() {
		return v, errNonFinite
	}
	return v, nil
}
