package loader

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"mriview/internal/models"
)

// ExtractSlice returns the plane of one volume channel orthogonal to axis
// as a 16-bit gray image, values in [0, 1] mapping to the full range. Rows
// run from the highest in-plane index down, matching Load.
func ExtractSlice(vol *models.Volume, axis models.Axis, position int) (*image.Gray16, error) {
	data, w, h, err := vol.Plane(axis, position, 0)
	if err != nil {
		return nil, err
	}
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			value := math.Max(0, math.Min(65535, data[(h-1-y)*w+x]*65535))
			img.SetGray16(x, y, color.Gray16{Y: uint16(value)})
		}
	}
	return img, nil
}

// SaveSliceSequence writes every slice of the volume along axis into
// outputDir as slice_<axis>_NNN.<format>, format being png or jpg.
func SaveSliceSequence(vol *models.Volume, axis models.Axis, outputDir, format string) error {
	format = strings.ToLower(format)
	if format != "png" && format != "jpg" {
		return fmt.Errorf("slice format %q: %w", format, ErrUnsupported)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	n := vol.Grid.NumAxis(axis)
	for pos := 0; pos < n; pos++ {
		img, err := ExtractSlice(vol, axis, pos)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("slice_%s_%03d.%s", strings.ToLower(axis.String()), pos, format)
		if err := saveSlice(img, filepath.Join(outputDir, name), format); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"dataset": vol.Name,
		"axis":    axis.String(),
		"slices":  n,
		"dir":     outputDir,
	}).Info("saved slice sequence")
	return nil
}

func saveSlice(img image.Image, filename, format string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if format == "jpg" {
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	}
	return png.Encode(file, img)
}
