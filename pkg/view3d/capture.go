package view3d

import (
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"mriview/pkg/scene"
	"mriview/pkg/screenshot"
)

// Screenshot renders the scene in zoom x zoom tiles of the current viewport
// and returns the composed image, zoom times the viewport size. Each tile is
// drawn with its exact fraction of the frustum. Entries that fail to draw
// are logged and left out; a lost device aborts the capture.
func (r *Renderer) Screenshot(ctx *scene.Context, zoom int) (*image.RGBA, error) {
	dev := ctx.Device
	rect := dev.Viewport()
	if rect.Empty() {
		return nil, errors.New("screenshot of an empty viewport")
	}
	zoom = max(zoom, 1)

	out := screenshot.Mosaic(rect.Dx(), rect.Dy(), zoom)
	for _, t := range screenshot.Tiles(zoom) {
		if err := r.render(ctx, t, nil); err != nil {
			logrus.WithError(err).WithField("tile", t).Warn("incomplete screenshot tile")
		}
		if err := dev.Err(); err != nil {
			return nil, fmt.Errorf("screenshot tile %d,%d: %w", t.Col, t.Row, err)
		}
		frame := dev.ReadPixels()
		screenshot.Place(out, t, frame.SubImage(rect))
	}

	logrus.WithFields(logrus.Fields{
		"zoom":   zoom,
		"width":  out.Bounds().Dx(),
		"height": out.Bounds().Dy(),
	}).Debug("captured scene")
	return out, nil
}
