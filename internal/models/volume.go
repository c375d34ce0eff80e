package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Volume is a multi-channel scalar field sampled on a Grid.
type Volume struct {
	// Name identifies the volume in logs and status messages
	Name string

	// Grid is the voxel lattice the data is sampled on
	Grid Grid

	// Channels is the number of values stored per voxel
	Channels int

	// Data stores the voxel values, channel varying fastest, then I, J and K
	Data []float64
}

// NewVolume allocates a zero-filled volume.
func NewVolume(name string, grid Grid, channels int) *Volume {
	if channels < 1 {
		channels = 1
	}
	return &Volume{
		Name:     name,
		Grid:     grid,
		Channels: channels,
		Data:     make([]float64, grid.Size()*channels),
	}
}

// Sampling returns the grid of the volume.
func (v *Volume) Sampling() Grid { return v.Grid }

// Dim returns the number of channels.
func (v *Volume) Dim() int { return v.Channels }

// At returns one channel of one voxel; samples outside of the grid read as zero.
func (v *Volume) At(s Sample, c int) float64 {
	if !v.Grid.Contains(s) || c < 0 || c >= v.Channels {
		return 0
	}
	return v.Data[v.Grid.Index(s)*v.Channels+c]
}

// Set writes one channel of one voxel.
func (v *Volume) Set(s Sample, c int, value float64) error {
	if !v.Grid.Contains(s) {
		return fmt.Errorf("volume %s: set %v: %w", v.Name, s, ErrOutOfBounds)
	}
	if c < 0 || c >= v.Channels {
		return fmt.Errorf("volume %s: channel %d of %d", v.Name, c, v.Channels)
	}
	v.Data[v.Grid.Index(s)*v.Channels+c] = value
	return nil
}

// Value returns a copy of every channel at the sample.
func (v *Volume) Value(s Sample) []float64 {
	out := make([]float64, v.Channels)
	if !v.Grid.Contains(s) {
		return out
	}
	off := v.Grid.Index(s) * v.Channels
	copy(out, v.Data[off:off+v.Channels])
	return out
}

// SetValue writes every channel at the sample; missing channels are zeroed.
func (v *Volume) SetValue(s Sample, value []float64) error {
	if !v.Grid.Contains(s) {
		return fmt.Errorf("volume %s: set %v: %w", v.Name, s, ErrOutOfBounds)
	}
	off := v.Grid.Index(s) * v.Channels
	for c := 0; c < v.Channels; c++ {
		if c < len(value) {
			v.Data[off+c] = value[c]
		} else {
			v.Data[off+c] = 0
		}
	}
	return nil
}

// Range returns the minimum and maximum finite value of a channel.
func (v *Volume) Range(c int) (lo, hi float64) {
	if c < 0 || c >= v.Channels || len(v.Data) == 0 {
		return 0, 0
	}
	values := make([]float64, 0, v.Grid.Size())
	for i := c; i < len(v.Data); i += v.Channels {
		x := v.Data[i]
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			values = append(values, x)
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	return floats.Min(values), floats.Max(values)
}

// Plane copies the values of one channel on the plane orthogonal to axis at
// index. The returned slice is row-major with the plane's width axis varying
// fastest (see Axis.InPlane).
func (v *Volume) Plane(axis Axis, index, c int) ([]float64, int, int, error) {
	if !v.Grid.ContainsAxis(axis, index) {
		return nil, 0, 0, fmt.Errorf("position %d exceeds %s dimension %d: %w",
			index, axis, v.Grid.NumAxis(axis), ErrOutOfBounds)
	}
	wa, ha := axis.InPlane()
	w, h := v.Grid.NumAxis(wa), v.Grid.NumAxis(ha)
	out := make([]float64, w*h)
	base := Sample{}.With(axis, index)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = v.At(base.With(wa, x).With(ha, y), c)
		}
	}
	return out, w, h, nil
}
