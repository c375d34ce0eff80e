package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/colormap"
	"mriview/pkg/config"
	"mriview/pkg/gpu"
	"mriview/pkg/gpu/soft"
	"mriview/pkg/scene"
	"mriview/pkg/slice"
)

func TestTicks(t *testing.T) {
	g := NewGeometry(100, 150)
	require.Equal(t, 8, g.Bar.Min.Y)
	require.Equal(t, 143, g.Bar.Max.Y)

	ticks := g.Ticks(0, 10)
	require.Len(t, ticks, majorTicks+minorTicks)

	var majors []Tick
	for _, tk := range ticks {
		if tk.Major {
			majors = append(majors, tk)
			continue
		}
		assert.Greater(t, tk.Y, g.Bar.Min.Y)
		assert.Less(t, tk.Y, g.Bar.Max.Y)
	}
	require.Len(t, majors, 2)
	assert.Equal(t, 8, majors[0].Y)
	assert.Equal(t, 10.0, majors[0].Value)
	assert.Equal(t, 143, majors[1].Y)
	assert.Equal(t, 0.0, majors[1].Value)
}

func TestColorbarRunsFromMaxToMin(t *testing.T) {
	g := NewGeometry(100, 150)
	img, err := Colorbar(colormap.MustScalar(colormap.Grayscale), g, gpu.RGB(1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())

	x := (g.Bar.Min.X + g.Bar.Max.X) / 2
	top := img.NRGBAAt(x, g.Bar.Min.Y+1)
	bottom := img.NRGBAAt(x, g.Bar.Max.Y-2)
	assert.GreaterOrEqual(t, top.R, uint8(245))
	assert.Equal(t, uint8(255), top.A)
	assert.LessOrEqual(t, bottom.R, uint8(10))
	assert.Equal(t, uint8(255), bottom.A)

	assert.Zero(t, img.NRGBAAt(g.W-1, g.H/2).A, "outside the bar stays transparent")
	assert.Greater(t, img.NRGBAAt(g.TickX()+1, g.Bar.Min.Y).A, uint8(128), "major tick at the top")
}

func legendScene(t *testing.T, w, h int) (*scene.Context, *colormap.Scalar) {
	ctx := scene.NewContext(soft.New(w, h), config.DefaultSettings())
	grid := models.NewGrid(4, 4, 4, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{})
	cmap := colormap.MustScalar(colormap.Hot)
	r := slice.New("t1", models.NewVolume("t1", grid, 1), ctx.Slicers, slice.Options{Slab: 1, Opacity: 1}, cmap)
	_, err := ctx.Registry.Add("t1", r)
	require.NoError(t, err)
	return ctx, cmap
}

func TestLegendPaintsOncePerColormap(t *testing.T) {
	ctx, cmap := legendScene(t, 200, 200)
	l := NewLegend()

	require.NoError(t, l.Draw(ctx))
	require.NoError(t, l.Draw(ctx))
	assert.Equal(t, 1, l.Paints)

	// 80 x 53 legend anchored 8 pixels from the top right corner
	c := ctx.Device.(*soft.Device).Framebuffer().RGBAAt(200-53-8+9, 8+40)
	assert.Greater(t, c.R, uint8(200))
	assert.Less(t, c.B, uint8(50))

	cmap.Max = 2
	require.NoError(t, l.Draw(ctx))
	assert.Equal(t, 2, l.Paints)
}

func TestLegendSkipped(t *testing.T) {
	l := NewLegend()

	empty := scene.NewContext(soft.New(200, 200), config.DefaultSettings())
	require.NoError(t, l.Draw(empty))

	small, _ := legendScene(t, 40, 40)
	require.NoError(t, l.Draw(small))

	hidden, _ := legendScene(t, 200, 200)
	hidden.Registry.Reference().Visible = false
	require.NoError(t, l.Draw(hidden))

	assert.Zero(t, l.Paints)
}
