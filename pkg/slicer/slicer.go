// Package slicer holds the shared slice cursor. Every dataset on a
// compatible grid slices through the same Slicer, so moving the cursor in
// one view moves it in all of them.
package slicer

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"mriview/internal/models"
)

// ErrIncompatibleGrid is returned when two datasets cannot share a cursor.
var ErrIncompatibleGrid = errors.New("incompatible sampling grids")

// Slicer is the cursor shared by datasets on compatible grids. Indices start
// at zero and always lie inside the grid; the visibility flags start on.
//
// Each axis carries a generation counter that increments whenever its index
// changes. Renderers compare it with the generation they last drew.
type Slicer struct {
	grid models.Grid
	idx  [3]int
	show [3]bool
	gen  [3]uint64
}

// New creates a cursor for grid.
func New(grid models.Grid) *Slicer {
	return &Slicer{grid: grid, show: [3]bool{true, true, true}}
}

// Grid returns the reference grid of the cursor.
func (s *Slicer) Grid() models.Grid { return s.grid }

// Index returns the slice index of an axis.
func (s *Slicer) Index(a models.Axis) int { return s.idx[a] }

// Shown reports whether the plane of an axis is visible.
func (s *Slicer) Shown(a models.Axis) bool { return s.show[a] }

// Generation returns the change counter of an axis.
func (s *Slicer) Generation(a models.Axis) uint64 { return s.gen[a] }

// Sample returns the cursor as a voxel.
func (s *Slicer) Sample() models.Sample {
	return models.Sample{I: s.idx[0], J: s.idx[1], K: s.idx[2]}
}

// Contains reports whether the voxel lies on the current slice of a shown
// axis.
func (s *Slicer) Contains(v models.Sample) bool {
	for _, a := range models.Axes {
		if s.show[a] && s.OnSlice(a, v) {
			return true
		}
	}
	return false
}

// OnSlice reports whether the voxel lies on the current slice of one axis.
func (s *Slicer) OnSlice(a models.Axis, v models.Sample) bool {
	return s.idx[a] == v.Get(a)
}

// SetIndex moves one axis. Out-of-range indices are ignored. It reports
// whether the index changed.
func (s *Slicer) SetIndex(a models.Axis, i int) bool {
	if i == s.idx[a] || i < 0 || i >= s.grid.NumAxis(a) {
		return false
	}
	s.idx[a] = i
	s.gen[a]++
	logrus.WithFields(logrus.Fields{"axis": a.String(), "index": i}).Debug("slice changed")
	return true
}

// Step moves one axis by n slices.
func (s *Slicer) Step(a models.Axis, n int) bool {
	return s.SetIndex(a, s.idx[a]+n)
}

// SetSample moves every axis to the voxel. Axes with out-of-range
// coordinates keep their index.
func (s *Slicer) SetSample(v models.Sample) bool {
	changed := false
	for _, a := range models.Axes {
		if s.SetIndex(a, v.Get(a)) {
			changed = true
		}
	}
	return changed
}

// SetShown changes the visibility of one plane. Visibility does not bump
// the generation: renderers read it every frame.
func (s *Slicer) SetShown(a models.Axis, v bool) { s.show[a] = v }

// ToggleShown flips the visibility of one plane.
func (s *Slicer) ToggleShown(a models.Axis) { s.show[a] = !s.show[a] }

// ShownAxes lists the visible planes in I, J, K order.
func (s *Slicer) ShownAxes() []models.Axis {
	var out []models.Axis
	for _, a := range models.Axes {
		if s.show[a] {
			out = append(out, a)
		}
	}
	return out
}

// Compatible reports whether a dataset on grid may share this cursor.
func (s *Slicer) Compatible(grid models.Grid) bool {
	return s.grid.Compatible(grid)
}

func (s *Slicer) String() string {
	return fmt.Sprintf("slicer %s at %s", s.grid, s.Sample())
}

// Registry hands out one Slicer per family of compatible grids. It is not
// safe for concurrent use; it belongs to the render thread.
type Registry struct {
	slicers []*Slicer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Get returns the cursor shared by grid, creating it on first use.
func (r *Registry) Get(grid models.Grid) *Slicer {
	for _, s := range r.slicers {
		if s.Compatible(grid) {
			return s
		}
	}
	s := New(grid)
	r.slicers = append(r.slicers, s)
	logrus.WithField("grid", grid.String()).Debug("created slicer")
	return s
}

// Len returns the number of distinct cursors.
func (r *Registry) Len() int { return len(r.slicers) }

// Check returns ErrIncompatibleGrid when b cannot be drawn on a's cursor.
func Check(a, b models.Grid) error {
	if !a.Compatible(b) {
		return fmt.Errorf("%s vs %s: %w", a, b, ErrIncompatibleGrid)
	}
	return nil
}
