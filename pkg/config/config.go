// Package config provides settings loading and management for mriview.
// It handles loading settings from YAML or TOML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the settings file used when none is given.
const DefaultPath = "~/.mriview.yaml"

// Settings represents the viewer settings loaded from YAML or TOML
type Settings struct {
	// Render parameters
	Render struct {
		// Background is the clear colour, RGB in [0, 1]
		Background [3]float64 `yaml:"background" toml:"background"`

		// TransparentBackground clears to zero alpha for screenshots
		TransparentBackground bool `yaml:"transparentBackground" toml:"transparentBackground"`

		// Perspective selects a perspective projection in 3D, orthographic otherwise
		Perspective bool `yaml:"perspective" toml:"perspective"`

		// FPS is the target frame rate of the render loop
		FPS int `yaml:"fps" toml:"fps"`

		ShowFPS bool `yaml:"showFPS" toml:"showFPS"`
	} `yaml:"render" toml:"render"`

	// Overlay parameters for the reference objects of the 3D view
	Overlay struct {
		Box        bool `yaml:"box" toml:"box"`
		ScaleGrid  bool `yaml:"scaleGrid" toml:"scaleGrid"`
		ScaleBox   bool `yaml:"scaleBox" toml:"scaleBox"`
		Axes       bool `yaml:"axes" toml:"axes"`
		Anatomical bool `yaml:"anatomical" toml:"anatomical"`
		Crosshair  bool `yaml:"crosshair" toml:"crosshair"`
		Legend     bool `yaml:"legend" toml:"legend"`

		// LineWidth is the width of box and grid lines in pixels
		LineWidth float64 `yaml:"lineWidth" toml:"lineWidth"`

		// ScaleStep is the spacing of the scale grid in world units; 0 picks a round step
		ScaleStep float64 `yaml:"scaleStep" toml:"scaleStep"`

		BoxColor   [3]float64 `yaml:"boxColor" toml:"boxColor"`
		ScaleColor [3]float64 `yaml:"scaleColor" toml:"scaleColor"`
	} `yaml:"overlay" toml:"overlay"`

	// Mouse factors converting pointer pixels into camera changes
	Mouse struct {
		XPos  float64 `yaml:"xpos" toml:"xpos"`
		YPos  float64 `yaml:"ypos" toml:"ypos"`
		ZPos  float64 `yaml:"zpos" toml:"zpos"`
		Scale float64 `yaml:"scale" toml:"scale"`
		XRot  float64 `yaml:"xrot" toml:"xrot"`
		YRot  float64 `yaml:"yrot" toml:"yrot"`

		XPos2D  float64 `yaml:"xpos2d" toml:"xpos2d"`
		YPos2D  float64 `yaml:"ypos2d" toml:"ypos2d"`
		Scale2D float64 `yaml:"scale2d" toml:"scale2d"`
	} `yaml:"mouse" toml:"mouse"`

	// Layout parameters
	Layout struct {
		// Name is one of 3d, i, j, k, i3d, j3d, k3d, 1x3, 2x2
		Name string `yaml:"name" toml:"name"`

		// Halve is the horizontal split fraction of the side-by-side layouts
		Halve float64 `yaml:"halve" toml:"halve"`

		// Split is the height fraction of the slice row in the 1x3 layout
		Split float64 `yaml:"split" toml:"split"`
	} `yaml:"layout" toml:"layout"`

	// Screenshot parameters
	Screenshot struct {
		// Zoom renders the view in Zoom x Zoom tiles
		Zoom int `yaml:"zoom" toml:"zoom"`

		// Overwrite skips the confirmation when the output exists
		Overwrite bool `yaml:"overwrite" toml:"overwrite"`
	} `yaml:"screenshot" toml:"screenshot"`

	// Slice rendering parameters
	Slice struct {
		// Slab is the half thickness of the aggregated slab in slices; 0 or 1 draws a single slice
		Slab int `yaml:"slab" toml:"slab"`

		// SlabType is mean, min or max
		SlabType string `yaml:"slabType" toml:"slabType"`

		Opacity float64 `yaml:"opacity" toml:"opacity"`

		// NoBackground makes voxels with |value| <= BackgroundLevel transparent
		NoBackground    bool    `yaml:"noBackground" toml:"noBackground"`
		BackgroundLevel float64 `yaml:"backgroundLevel" toml:"backgroundLevel"`

		Coloring string `yaml:"coloring" toml:"coloring"`
		Smooth   bool   `yaml:"smooth" toml:"smooth"`
		Grid     bool   `yaml:"grid" toml:"grid"`
		Tubes    bool   `yaml:"tubes" toml:"tubes"`
	} `yaml:"slice" toml:"slice"`

	// Mask tool parameters
	Mask struct {
		// Shape is circle or square
		Shape string `yaml:"shape" toml:"shape"`

		// Size is the stencil radius in voxels
		Size int `yaml:"size" toml:"size"`

		// Label is written by the draw tool
		Label int `yaml:"label" toml:"label"`

		// Which restricts the rendered labels; empty renders all
		Which []int `yaml:"which" toml:"which"`
	} `yaml:"mask" toml:"mask"`

	// Loader parameters
	Loader struct {
		// Workers specifies how many goroutines decode slice images
		Workers int `yaml:"workers" toml:"workers"`

		// SliceGap represents the physical distance between consecutive MRI slices in mm
		SliceGap float64 `yaml:"sliceGap" toml:"sliceGap"`

		// PixelSize is the in-plane voxel size in mm
		PixelSize float64 `yaml:"pixelSize" toml:"pixelSize"`
	} `yaml:"loader" toml:"loader"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose" toml:"verbose"`
	} `yaml:"output" toml:"output"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	s := &Settings{}

	s.Render.Background = [3]float64{84.0 / 255, 88.0 / 255, 109.0 / 255}
	s.Render.Perspective = true
	s.Render.FPS = 60

	s.Overlay.Box = true
	s.Overlay.Crosshair = true
	s.Overlay.Anatomical = true
	s.Overlay.LineWidth = 1
	s.Overlay.BoxColor = [3]float64{1, 1, 1}
	s.Overlay.ScaleColor = [3]float64{0.8, 0.8, 0.8}

	s.Mouse.XPos = 0.0005
	s.Mouse.YPos = 0.0005
	s.Mouse.ZPos = -0.001
	s.Mouse.Scale = 0.0045
	s.Mouse.XRot = -0.005
	s.Mouse.YRot = 0.005
	s.Mouse.XPos2D = 10 * s.Mouse.XPos
	s.Mouse.YPos2D = 10 * s.Mouse.YPos
	s.Mouse.Scale2D = -1.5 * s.Mouse.Scale

	s.Layout.Name = "3d"
	s.Layout.Halve = 0.5
	s.Layout.Split = 0.33

	s.Screenshot.Zoom = 1

	s.Slice.Slab = 1
	s.Slice.SlabType = "mean"
	s.Slice.Opacity = 1
	s.Slice.Coloring = "grayscale"

	s.Mask.Shape = "circle"
	s.Mask.Size = 1
	s.Mask.Label = 1

	s.Loader.Workers = runtime.NumCPU() // Use all available cores by default
	s.Loader.SliceGap = 1.0
	s.Loader.PixelSize = 1.0

	s.Output.Verbose = false

	return s
}

// Clone returns a deep copy, so the render thread can work on a snapshot
// while a new file is being loaded.
func (s *Settings) Clone() *Settings {
	out := &Settings{}
	if err := copier.CopyWithOption(out, s, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on mismatched kinds, which cannot happen here
		panic(fmt.Sprintf("cloning settings: %v", err))
	}
	return out
}

// Validate checks ranges that would break rendering.
func (s *Settings) Validate() error {
	if s.Layout.Halve < 0 || s.Layout.Halve > 1 {
		return fmt.Errorf("layout.halve %g outside of [0, 1]", s.Layout.Halve)
	}
	if s.Layout.Split < 0 || s.Layout.Split > 1 {
		return fmt.Errorf("layout.split %g outside of [0, 1]", s.Layout.Split)
	}
	if s.Screenshot.Zoom < 1 {
		return fmt.Errorf("screenshot.zoom must be at least 1, got %d", s.Screenshot.Zoom)
	}
	if s.Slice.Opacity < 0 || s.Slice.Opacity > 1 {
		return fmt.Errorf("slice.opacity %g outside of [0, 1]", s.Slice.Opacity)
	}
	switch s.Slice.SlabType {
	case "mean", "min", "max":
	default:
		return fmt.Errorf("unknown slice.slabType %q", s.Slice.SlabType)
	}
	switch s.Mask.Shape {
	case "circle", "square":
	default:
		return fmt.Errorf("unknown mask.shape %q", s.Mask.Shape)
	}
	return nil
}

// Expand resolves a leading ~ in path.
func Expand(path string) (string, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("error expanding path %q: %w", path, err)
	}
	return p, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadSettings loads settings from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default settings
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	path, err := Expand(path)
	if err != nil {
		return nil, err
	}

	// Check if settings file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, s)
	} else {
		err = yaml.Unmarshal(data, s)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing settings file: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}

	return s, nil
}

// SaveSettings saves the settings to a YAML or TOML file
func SaveSettings(s *Settings, path string) error {
	path, err := Expand(path)
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating settings directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		data, err = toml.Marshal(s)
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("error marshaling settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}

	return nil
}

// CreateDefaultSettingsFile creates a default settings file at the specified path
func CreateDefaultSettingsFile(path string) error {
	return SaveSettings(DefaultSettings(), path)
}
