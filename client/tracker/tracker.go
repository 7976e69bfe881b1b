// Package tracker keeps the last known transform of every object a client
// has sent or applied, and decides when the object model has drifted from
// it.
package tracker

import "github.com/adwski/scenesync/backend/model"

// Tracker is not safe for concurrent use; the sync engine serializes access.
type Tracker struct {
	snapshots      map[string]model.Transform
	applyingRemote bool
}

func New() *Tracker {
	return &Tracker{snapshots: make(map[string]model.Transform)}
}

// DetectChange compares current against the stored snapshot of the same
// name. On any difference the snapshot is replaced and the full current
// state is returned. Nothing is reported while a remote update is being
// applied, or for a transform with non-finite components.
func (t *Tracker) DetectChange(current model.ObjectState) (model.ObjectState, bool) {
	if t.applyingRemote || !current.Finite() {
		return model.ObjectState{}, false
	}
	last, ok := t.snapshots[current.Name]
	if ok && last == current.Transform {
		return model.ObjectState{}, false
	}
	t.snapshots[current.Name] = current.Transform
	return current, true
}

// ApplyRemote runs apply with change detection suppressed. apply returns
// the transform the object model holds after the write, which becomes the
// snapshot for name; it may differ from what was received when the model
// stores transforms at a lower precision.
func (t *Tracker) ApplyRemote(name string, apply func() model.Transform) {
	t.applyingRemote = true
	defer func() { t.applyingRemote = false }()

	t.snapshots[name] = apply()
}

func (t *Tracker) Snapshot(name string) (model.Transform, bool) {
	tr, ok := t.snapshots[name]
	return tr, ok
}

// Forget drops the snapshot for name, so the object is reported again the
// next time it is observed.
func (t *Tracker) Forget(name string) {
	delete(t.snapshots, name)
}
