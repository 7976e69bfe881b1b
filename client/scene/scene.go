// Package scene is an in-memory object model. It stands in for a 3D host
// application when the sync engine runs headless.
package scene

import (
	"errors"
	"sort"
	"sync"

	"github.com/adwski/scenesync/backend/model"
)

var (
	ErrNoObject = errors.New("no such object")
)

type Object struct {
	name string
	tr   model.Transform
}

func (o *Object) Name() string {
	return o.name
}

// Scene is safe for concurrent use.
type Scene struct {
	mx       sync.RWMutex
	objects  map[string]*Object
	active   string
	editable bool
}

func New() *Scene {
	return &Scene{
		objects:  make(map[string]*Object),
		editable: true,
	}
}

// Add creates an object with the identity transform, or returns the
// existing one of that name.
func (s *Scene) Add(name string) *Object {
	s.mx.Lock()
	defer s.mx.Unlock()

	if o, ok := s.objects[name]; ok {
		return o
	}
	o := &Object{name: name, tr: model.IdentityTransform()}
	s.objects[name] = o
	return o
}

func (s *Scene) Remove(name string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	delete(s.objects, name)
	if s.active == name {
		s.active = ""
	}
}

// Select makes name the active object. An empty name clears the selection.
func (s *Scene) Select(name string) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if name != "" {
		if _, ok := s.objects[name]; !ok {
			return ErrNoObject
		}
	}
	s.active = name
	return nil
}

func (s *Scene) SetEditable(editable bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.editable = editable
}

func (s *Scene) SetTransform(name string, tr model.Transform) error {
	return s.edit(name, func(o *Object) { o.tr = tr })
}

func (s *Scene) SetLocation(name string, v model.Vec3) error {
	return s.edit(name, func(o *Object) { o.tr.Location = v })
}

func (s *Scene) SetRotation(name string, v model.Vec3) error {
	return s.edit(name, func(o *Object) { o.tr.Rotation = v })
}

func (s *Scene) SetScale(name string, v model.Vec3) error {
	return s.edit(name, func(o *Object) { o.tr.Scale = v })
}

func (s *Scene) edit(name string, fn func(o *Object)) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	o, ok := s.objects[name]
	if !ok {
		return ErrNoObject
	}
	fn(o)
	return nil
}

func (s *Scene) Transform(name string) (model.Transform, bool) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	o, ok := s.objects[name]
	if !ok {
		return model.Transform{}, false
	}
	return o.tr, true
}

func (s *Scene) ActiveObject() (model.ObjectState, bool) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	o, ok := s.objects[s.active]
	if !ok {
		return model.ObjectState{}, false
	}
	return model.ObjectState{Name: o.name, Transform: o.tr}, true
}

func (s *Scene) ObjectByName(name string) (any, bool) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	o, ok := s.objects[name]
	if !ok {
		return nil, false
	}
	return o, true
}

// ApplyState writes tr onto an object obtained from ObjectByName and
// returns the transform the object holds afterwards. Handles of removed
// objects are not written.
func (s *Scene) ApplyState(h any, tr model.Transform) model.Transform {
	o, ok := h.(*Object)
	if !ok {
		return tr
	}
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.objects[o.name] == o {
		o.tr = tr
	}
	return o.tr
}

func (s *Scene) EditableModeActive() bool {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.editable
}

// Objects lists every object ordered by name.
func (s *Scene) Objects() []model.ObjectState {
	s.mx.RLock()
	defer s.mx.RUnlock()

	out := make([]model.ObjectState, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, model.ObjectState{Name: o.name, Transform: o.tr})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
