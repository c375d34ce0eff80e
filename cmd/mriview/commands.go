package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mriview/internal/models"
	"mriview/internal/window"
	"mriview/pkg/config"
	"mriview/pkg/gpu/soft"
	"mriview/pkg/layout"
	"mriview/pkg/loader"
	"mriview/pkg/viewer"
)

// source selects the dataset of a command: a slice directory argument or a
// phantom.
type source struct {
	phantom string
	size    int
	mask    bool
}

func (src *source) flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&src.phantom, "phantom", "", "show a phantom instead of a slice directory ("+strings.Join(loader.Phantoms, ", ")+")")
	cmd.Flags().IntVar(&src.size, "size", 64, "phantom size in voxels per side")
	cmd.Flags().BoolVar(&src.mask, "mask", false, "add an editable sphere mask over a phantom")
}

func (src *source) requests(args []string) ([]viewer.LoadRequest, error) {
	var out []viewer.LoadRequest
	switch {
	case len(args) == 1:
		out = append(out, viewer.LoadRequest{Dir: args[0], Reference: true})
	case src.phantom != "":
		out = append(out, viewer.LoadRequest{Phantom: src.phantom, Size: src.size, Reference: true})
	default:
		return nil, errors.New("a slice directory or --phantom is required")
	}
	if src.mask {
		if src.phantom == "" {
			return nil, errors.New("--mask needs --phantom")
		}
		out = append(out, viewer.LoadRequest{Mask: true, Size: src.size})
	}
	return out, nil
}

func newViewCmd(a *app) *cobra.Command {
	var src source
	var width, height int
	var shots string
	cmd := &cobra.Command{
		Use:   "view [dir]",
		Short: "Open a slice stack in a window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := src.requests(args)
			if err != nil {
				return err
			}
			banner(cmd, "MRI VOLUME VIEWER")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			w := window.Open(window.Options{
				Title:          "mriview",
				Width:          width,
				Height:         height,
				FPS:            a.settings.Render.FPS,
				ScreenshotPath: shots,
			}, func(dev *soft.Device) *viewer.Canvas {
				return viewer.New(dev, a.settings)
			})
			for _, r := range reqs {
				w.Canvas().RequestLoad(r)
			}

			go func() {
				err := config.Watch(ctx, a.settingsPath, w.Canvas().UpdateSettings)
				if err != nil && !errors.Is(err, context.Canceled) {
					logrus.WithError(err).Warn("settings are not watched")
				}
			}()
			return w.Run(ctx)
		},
	}
	src.flags(cmd)
	cmd.Flags().IntVar(&width, "width", 1024, "window width")
	cmd.Flags().IntVar(&height, "height", 768, "window height")
	cmd.Flags().StringVar(&shots, "screenshots", "mriview-{20060102-150405}.png", "screenshot file name; braces hold a time layout")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	var src source
	var output, layoutName, view string
	var width, height, zoom int
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "snapshot [dir]",
		Short: "Render the 3D view of a slice stack into an image without a window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := src.requests(args)
			if err != nil {
				return err
			}
			s := a.settings.Clone()
			if layoutName != "" {
				s.Layout.Name = layoutName
			}
			if _, err := layout.Parse(s.Layout.Name); err != nil {
				return err
			}

			banner(cmd, "MRI VOLUME SNAPSHOT")
			start := time.Now()
			c := viewer.New(soft.New(width, height), s)
			for _, r := range reqs {
				c.RequestLoad(r)
			}
			// one frame starts the loads, the next registers them
			if err := c.Frame(); err != nil {
				return err
			}
			c.WaitLoads()
			if err := c.Frame(); err != nil {
				return err
			}
			if len(c.Context().Registry.Entries()) != len(reqs) {
				return fmt.Errorf("loading failed: %s", c.Context().Status())
			}
			if view != "" {
				if err := c.ShowView(view); err != nil {
					return err
				}
			}

			done := make(chan error, 1)
			c.RequestScreenshot(viewer.ScreenshotRequest{Path: output, Zoom: zoom, Overwrite: overwrite, Done: done})
			if err := c.Frame(); err != nil {
				return err
			}
			if err := <-done; err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot saved to %s in %.2f seconds\n", output, time.Since(start).Seconds())
			return nil
		},
	}
	src.flags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "snapshot.png", "output image (png, tif or bmp)")
	cmd.Flags().StringVar(&layoutName, "layout", "", "layout name (3d, i3d, 1x3, 2x2, ...)")
	cmd.Flags().StringVar(&view, "view", "", "camera pose (top, bottom, left, right, front, back)")
	cmd.Flags().IntVar(&width, "width", 512, "render width")
	cmd.Flags().IntVar(&height, "height", 512, "render height")
	cmd.Flags().IntVar(&zoom, "zoom", 0, "tiles per side; 0 uses the settings")
	cmd.Flags().BoolVarP(&overwrite, "force", "f", false, "overwrite an existing output")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var src source
	var axes, format string
	cmd := &cobra.Command{
		Use:   "export <output-dir> [dir]",
		Short: "Write the slices of a volume along each axis as images",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := args[0]
			var vol *models.Volume
			switch {
			case len(args) == 2:
				v, err := loader.Load(loader.Params{
					InputDir:   args[1],
					NumWorkers: a.settings.Loader.Workers,
					SliceGap:   a.settings.Loader.SliceGap,
					PixelSize:  a.settings.Loader.PixelSize,
					Resample:   true,
				})
				if err != nil {
					return err
				}
				vol = v
			case src.phantom != "":
				v, ok := loader.NewPhantom(src.phantom, src.size)
				if !ok {
					return fmt.Errorf("unknown phantom %q", src.phantom)
				}
				vol = v
			default:
				return errors.New("a slice directory or --phantom is required")
			}

			banner(cmd, "MRI SLICE EXPORT")
			for _, name := range strings.Split(axes, ",") {
				axis, err := parseAxis(name)
				if err != nil {
					return err
				}
				dir := filepath.Join(out, strings.ToLower(axis.String()))
				fmt.Fprintf(cmd.OutOrStdout(), "Saving %s-axis slices to: %s\n", axis, dir)
				if err := loader.SaveSliceSequence(vol, axis, dir, format); err != nil {
					return fmt.Errorf("saving %s-axis slices: %w", axis, err)
				}
			}
			return nil
		},
	}
	src.flags(cmd)
	cmd.Flags().StringVar(&axes, "axes", "i,j,k", "comma separated axes to export")
	cmd.Flags().StringVar(&format, "format", "png", "image format (png or jpg)")
	return cmd
}

func parseAxis(name string) (models.Axis, error) {
	for _, a := range models.Axes {
		if strings.EqualFold(strings.TrimSpace(name), a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", name)
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Expand(a.settingsPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists, use --force to replace it", path)
			}
			if err := config.CreateDefaultSettingsFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default settings written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
