package layout

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionTilesExactly(t *testing.T) {
	sizes := [][2]int{{1, 1}, {2, 1}, {1, 3}, {3, 3}, {7, 5}, {100, 61}, {640, 480}, {1001, 333}}
	ratios := []Ratios{DefaultRatios(), {Horizontal: 0, Vertical: 1}, {Horizontal: 1, Vertical: 0}, {Horizontal: 0.271, Vertical: 0.77}}

	for _, l := range All {
		for _, size := range sizes {
			for _, r := range ratios {
				w, h := size[0], size[1]
				regions := Partition(l, w, h, r)
				require.NotEmpty(t, regions)

				cover := make([]int, w*h)
				for _, reg := range regions {
					require.True(t, reg.Rect.In(image.Rect(0, 0, w, h)), "%v %dx%d %v", l, w, h, reg)
					for y := reg.Rect.Min.Y; y < reg.Rect.Max.Y; y++ {
						for x := reg.Rect.Min.X; x < reg.Rect.Max.X; x++ {
							cover[y*w+x]++
						}
					}
				}
				for i, c := range cover {
					if c != 1 {
						t.Fatalf("%v %dx%d %+v: pixel (%d, %d) covered %d times", l, w, h, r, i%w, i/w, c)
					}
				}
			}
		}
	}
}

func TestPartitionRenderOrder(t *testing.T) {
	for _, l := range []Layout{SliceI3D, SliceJ3D, SliceK3D, OneByThree, TwoByTwo} {
		regions := Partition(l, 300, 200, DefaultRatios())
		assert.Equal(t, View3D, regions[0].View, l.String())
	}
	assert.Equal(t, []View{View3D, ViewI, ViewJ, ViewK}, OneByThree.Views())
	assert.Equal(t, []View{ViewK}, SliceK.Views())
}

func TestRouteOffsetsPointer(t *testing.T) {
	regions := Partition(SliceJ3D, 200, 100, DefaultRatios())

	reg, local, ok := Route(regions, image.Pt(150, 40))
	require.True(t, ok)
	assert.Equal(t, ViewJ, reg.View)
	assert.Equal(t, image.Pt(50, 40), local)

	reg, local, ok = Route(regions, image.Pt(99, 99))
	require.True(t, ok)
	assert.Equal(t, View3D, reg.View)
	assert.Equal(t, image.Pt(99, 99), local)

	_, _, ok = Route(regions, image.Pt(200, 0))
	assert.False(t, ok)
}

func TestRouteMatchesPartition(t *testing.T) {
	for _, l := range All {
		regions := Partition(l, 123, 77, DefaultRatios())
		for _, reg := range regions {
			got, local, ok := Route(regions, reg.Rect.Min)
			require.True(t, ok)
			assert.Equal(t, reg.View, got.View)
			assert.Equal(t, image.Point{}, local)
		}
	}
}

func TestParse(t *testing.T) {
	for _, l := range All {
		got, err := Parse(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := Parse("3x3")
	assert.Error(t, err)
}
