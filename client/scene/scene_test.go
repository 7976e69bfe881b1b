package scene

import (
	"errors"
	"testing"

	"github.com/adwski/scenesync/backend/model"
)

func TestActiveObject(t *testing.T) {
	s := New()
	if _, ok := s.ActiveObject(); ok {
		t.Fatal("expected no active object in an empty scene")
	}

	s.Add("Cube")
	if err := s.Select("Cube"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := s.SetLocation("Cube", model.Vec3{1, 2, 3}); err != nil {
		t.Fatalf("set location: %v", err)
	}

	st, ok := s.ActiveObject()
	if !ok || st.Name != "Cube" || st.Location != (model.Vec3{1, 2, 3}) || st.Scale != (model.Vec3{1, 1, 1}) {
		t.Fatalf("unexpected active state %+v", st)
	}

	if err := s.Select("Nope"); !errors.Is(err, ErrNoObject) {
		t.Fatalf("expected ErrNoObject, got %v", err)
	}
}

func TestApplyState(t *testing.T) {
	s := New()
	s.Add("Cube")

	h, ok := s.ObjectByName("Cube")
	if !ok {
		t.Fatal("expected Cube")
	}
	tr := model.Transform{Location: model.Vec3{4, 5, 6}, Scale: model.Vec3{2, 2, 2}}
	if stored := s.ApplyState(h, tr); stored != tr {
		t.Fatalf("expected stored %+v, got %+v", tr, stored)
	}

	got, _ := s.Transform("Cube")
	if got != tr {
		t.Fatalf("expected %+v, got %+v", tr, got)
	}
}

func TestApplyStateAfterRemove(t *testing.T) {
	s := New()
	s.Add("Cube")
	h, _ := s.ObjectByName("Cube")
	s.Remove("Cube")
	s.Add("Cube")

	if stored := s.ApplyState(h, model.Transform{Location: model.Vec3{9, 9, 9}}); stored != model.IdentityTransform() {
		t.Fatalf("stale handle reports %+v", stored)
	}
	got, _ := s.Transform("Cube")
	if got != model.IdentityTransform() {
		t.Fatalf("stale handle must not write, got %+v", got)
	}
}

func TestObjectsSorted(t *testing.T) {
	s := New()
	s.Add("b")
	s.Add("a")
	s.Add("c")

	objs := s.Objects()
	if len(objs) != 3 || objs[0].Name != "a" || objs[2].Name != "c" {
		t.Fatalf("unexpected order %+v", objs)
	}
}
