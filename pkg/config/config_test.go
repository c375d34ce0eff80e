package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadSettingsMissingFile tests that a missing file yields the defaults
func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s.Layout.Name != "3d" {
		t.Errorf("Expected layout 3d, got %s", s.Layout.Name)
	}
	if s.Render.FPS != 60 {
		t.Errorf("Expected 60 FPS, got %d", s.Render.FPS)
	}
}

// TestSaveLoadFormats tests that both file formats keep the values
func TestSaveLoadFormats(t *testing.T) {
	for _, name := range []string{"settings.yaml", "settings.toml"} {
		path := filepath.Join(t.TempDir(), "nested", name)
		s := DefaultSettings()
		s.Layout.Name = "2x2"
		s.Slice.Slab = 3
		s.Mask.Which = []int{2, 5}

		if err := SaveSettings(s, path); err != nil {
			t.Fatalf("Expected no error saving %s, got %v", name, err)
		}
		loaded, err := LoadSettings(path)
		if err != nil {
			t.Fatalf("Expected no error loading %s, got %v", name, err)
		}
		if loaded.Layout.Name != "2x2" || loaded.Slice.Slab != 3 {
			t.Errorf("Expected 2x2 and slab 3 from %s, got %s and %d", name, loaded.Layout.Name, loaded.Slice.Slab)
		}
		if len(loaded.Mask.Which) != 2 || loaded.Mask.Which[1] != 5 {
			t.Errorf("Expected which [2 5] from %s, got %v", name, loaded.Mask.Which)
		}
	}
}

// TestLoadSettingsPartialFile tests that unspecified values keep their defaults
func TestLoadSettingsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("layout:\n  name: i3d\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s.Layout.Name != "i3d" {
		t.Errorf("Expected layout i3d, got %s", s.Layout.Name)
	}
	if s.Layout.Halve != 0.5 {
		t.Errorf("Expected default halve 0.5, got %g", s.Layout.Halve)
	}
}

// TestLoadSettingsInvalid tests that out-of-range values are rejected
func TestLoadSettingsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("slice:\n  slabType: median\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Errorf("Expected an error for an unknown slab type")
	}
}

// TestClone tests that a clone shares no slices with the original
func TestClone(t *testing.T) {
	s := DefaultSettings()
	s.Mask.Which = []int{1}
	c := s.Clone()
	c.Mask.Which[0] = 7
	c.Layout.Name = "k"

	if s.Mask.Which[0] != 1 {
		t.Errorf("Expected original which to stay 1, got %d", s.Mask.Which[0])
	}
	if s.Layout.Name != "3d" {
		t.Errorf("Expected original layout to stay 3d, got %s", s.Layout.Name)
	}
	if c.Mouse.XRot != s.Mouse.XRot {
		t.Errorf("Expected xrot %g, got %g", s.Mouse.XRot, c.Mouse.XRot)
	}
}

// TestWatchReloads tests that a write to the watched file reaches the sink
func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.yaml")
	if err := CreateDefaultSettingsFile(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *Settings, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(s *Settings) { got <- s })
	}()

	changed := DefaultSettings()
	changed.Layout.Name = "1x3"
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case s := <-got:
			if s.Layout.Name != "1x3" {
				continue
			}
			cancel()
			<-done
			return
		case <-ticker.C:
			if err := SaveSettings(changed, path); err != nil {
				t.Fatal(err)
			}
		case <-ctx.Done():
			t.Fatalf("Expected a reload before the timeout")
		}
	}
}
