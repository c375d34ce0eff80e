package slice

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mriview/internal/models"
)

// SlabType is the reduction applied across the slices of a slab.
type SlabType int

const (
	SlabMean SlabType = iota
	SlabMin
	SlabMax
)

func (t SlabType) String() string {
	switch t {
	case SlabMin:
		return "min"
	case SlabMax:
		return "max"
	}
	return "mean"
}

// ParseSlabType parses mean, min or max.
func ParseSlabType(s string) (SlabType, error) {
	switch s {
	case "mean", "":
		return SlabMean, nil
	case "min":
		return SlabMin, nil
	case "max":
		return SlabMax, nil
	}
	return SlabMean, fmt.Errorf("unknown slab type %q", s)
}

// Data is the voxel data a renderer slices.
type Data interface {
	Sampling() models.Grid
	Dim() int
	Value(s models.Sample) []float64
	SetValue(s models.Sample, v []float64) error
}

// plane caches the values of one slice, aggregated over the slab. It is
// rebuilt when the slice index or the slab settings change, and patched in
// place by voxel edits.
type plane struct {
	axis    models.Axis
	index   int
	version uint64
	w, h    int
	values  [][]float64
}

// planeSize returns the texture width and height of the plane orthogonal
// to axis.
func planeSize(g models.Grid, axis models.Axis) (int, int) {
	wa, ha := axis.InPlane()
	return g.NumAxis(wa), g.NumAxis(ha)
}

// planeCoords returns the texel of a voxel on the plane orthogonal to axis.
func planeCoords(axis models.Axis, s models.Sample) (int, int) {
	wa, ha := axis.InPlane()
	return s.Get(wa), s.Get(ha)
}

// planeSample returns the voxel of texel (x, y) on slice index.
func planeSample(axis models.Axis, index, x, y int) models.Sample {
	wa, ha := axis.InPlane()
	return models.Sample{}.With(axis, index).With(wa, x).With(ha, y)
}

// aggregate reads the value at s, reduced over [idx-slab, idx+slab] along
// axis when slab is not 1. Samples outside of the grid are skipped.
func aggregate(d Data, axis models.Axis, s models.Sample, slab int, kind SlabType) []float64 {
	if slab == 1 || slab == 0 {
		return d.Value(s)
	}
	g := d.Sampling()
	center := s.Get(axis)
	var rows [][]float64
	for i := center - slab; i <= center+slab; i++ {
		n := s.With(axis, i)
		if g.Contains(n) {
			rows = append(rows, d.Value(n))
		}
	}
	if len(rows) == 0 {
		return d.Value(s)
	}
	out := make([]float64, len(rows[0]))
	column := make([]float64, len(rows))
	for c := range out {
		for r, row := range rows {
			column[r] = row[c]
		}
		switch kind {
		case SlabMin:
			out[c] = floats.Min(column)
		case SlabMax:
			out[c] = floats.Max(column)
		default:
			out[c] = stat.Mean(column, nil)
		}
	}
	return out
}

func finite(v []float64) bool {
	if floats.HasNaN(v) {
		return false
	}
	for _, x := range v {
		if math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
