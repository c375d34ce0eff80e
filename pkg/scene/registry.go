package scene

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"mriview/internal/models"
	"mriview/pkg/gesture"
)

// Entry is one viewable object.
type Entry struct {
	Name       string
	Visible    bool
	Renderable Renderable

	// Overlay marks a volume blended over the reference in slice views
	Overlay bool
}

// Registry holds the viewable entries in insertion order, the selection and
// the reference entry of the slice views.
type Registry struct {
	entries   []*Entry
	selected  map[string]bool
	reference string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{selected: make(map[string]bool)}
}

// Add registers a visible entry. Names must be unique.
func (r *Registry) Add(name string, obj Renderable) (*Entry, error) {
	if r.Get(name) != nil {
		return nil, fmt.Errorf("entry %q already exists", name)
	}
	e := &Entry{Name: name, Visible: true, Renderable: obj}
	r.entries = append(r.entries, e)
	if r.reference == "" {
		if _, ok := obj.(Planar); ok {
			r.reference = name
		}
	}
	logrus.WithField("dataset", name).Info("added to scene")
	return e, nil
}

// Remove unregisters an entry and disposes its resources.
func (r *Registry) Remove(ctx *Context, name string) bool {
	for i, e := range r.entries {
		if e.Name != name {
			continue
		}
		e.Renderable.Dispose(ctx)
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
		delete(r.selected, name)
		if r.reference == name {
			r.reference = ""
			for _, o := range r.entries {
				if _, ok := o.Renderable.(Planar); ok {
					r.reference = o.Name
					break
				}
			}
		}
		return true
	}
	return false
}

// Get returns an entry by name.
func (r *Registry) Get(name string) *Entry {
	for _, e := range r.entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Entries returns every entry in insertion order.
func (r *Registry) Entries() []*Entry {
	return append([]*Entry(nil), r.entries...)
}

// Visible returns the visible entries in insertion order.
func (r *Registry) Visible() []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if e.Visible {
			out = append(out, e)
		}
	}
	return out
}

// Select replaces the selection.
func (r *Registry) Select(names ...string) {
	r.selected = make(map[string]bool)
	for _, n := range names {
		if r.Get(n) != nil {
			r.selected[n] = true
		}
	}
}

// Selected returns the selected entries in insertion order.
func (r *Registry) Selected() []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if r.selected[e.Name] {
			out = append(out, e)
		}
	}
	return out
}

// Active returns the first selected entry, or nil.
func (r *Registry) Active() *Entry {
	s := r.Selected()
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

// SetReference picks the entry drawn as base layer by the slice views.
func (r *Registry) SetReference(name string) error {
	e := r.Get(name)
	if e == nil {
		return fmt.Errorf("no entry %q", name)
	}
	if _, ok := e.Renderable.(Planar); !ok {
		return fmt.Errorf("entry %q cannot be sliced", name)
	}
	r.reference = name
	return nil
}

// Reference returns the reference entry, or nil.
func (r *Registry) Reference() *Entry {
	if r.reference == "" {
		return nil
	}
	return r.Get(r.reference)
}

// Bounds returns the union of the boxes of the visible entries.
func (r *Registry) Bounds() models.Box {
	return Union(r.Visible())
}

// Union returns the union of the boxes of the entries that have one.
func Union(entries []*Entry) models.Box {
	box := models.EmptyBox()
	for _, e := range entries {
		if e.Renderable.HasBounds() {
			box = box.Union(e.Renderable.Bounds())
		}
	}
	return box
}

// Nearest returns the visible entry closest to the pointer. Ties keep the
// first visible entry.
func (r *Registry) Nearest(ctx *Context, m gesture.WorldMouse) *Entry {
	var best *Entry
	dist := math.Inf(1)
	for _, e := range r.Visible() {
		d, ok := e.Renderable.Distance(ctx, m)
		if ok && d < dist {
			best, dist = e, d
		}
	}
	return best
}
