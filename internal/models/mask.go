package models

import "fmt"

// Mask is an integer label map on a Grid. Label zero is background.
type Mask struct {
	Name   string
	Grid   Grid
	Labels []int
}

// NewMask allocates an all-background mask.
func NewMask(name string, grid Grid) *Mask {
	return &Mask{Name: name, Grid: grid, Labels: make([]int, grid.Size())}
}

// Sampling returns the grid of the mask.
func (m *Mask) Sampling() Grid { return m.Grid }

// Dim returns 1: a mask has one label per voxel.
func (m *Mask) Dim() int { return 1 }

// Label returns the label at s; samples outside of the grid are background.
func (m *Mask) Label(s Sample) int {
	if !m.Grid.Contains(s) {
		return 0
	}
	return m.Labels[m.Grid.Index(s)]
}

// SetLabel writes the label at s.
func (m *Mask) SetLabel(s Sample, label int) error {
	if !m.Grid.Contains(s) {
		return fmt.Errorf("mask %s: set %v: %w", m.Name, s, ErrOutOfBounds)
	}
	m.Labels[m.Grid.Index(s)] = label
	return nil
}

// Background reports whether s holds label zero.
func (m *Mask) Background(s Sample) bool {
	return m.Label(s) == 0
}

// Value returns the label as a one-element vector.
func (m *Mask) Value(s Sample) []float64 {
	return []float64{float64(m.Label(s))}
}

// SetValue writes the rounded first element of value as the label.
func (m *Mask) SetValue(s Sample, value []float64) error {
	label := 0
	if len(value) > 0 {
		label = int(value[0] + 0.5)
		if value[0] < 0 {
			label = int(value[0] - 0.5)
		}
	}
	return m.SetLabel(s, label)
}

// Count returns the number of voxels holding the label.
func (m *Mask) Count(label int) int {
	n := 0
	for _, l := range m.Labels {
		if l == label {
			n++
		}
	}
	return n
}
