package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Window.Width != 1280 || cfg.Renderer.FramesInFlight != FramesInFlight {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lumen.toml")
	doc := `
[window]
width = 800
height = 600

[renderer]
preferred_present_mode = "fifo"
clear_color = [0.1, 0.2, 0.3, 1.0]

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Window.Width != 800 || cfg.Window.Height != 600 {
		t.Errorf("window = %dx%d, want 800x600", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.Title != "Lumen" {
		t.Errorf("title = %q, default should be kept", cfg.Window.Title)
	}
	if cfg.Renderer.PreferredPresentMode != "fifo" {
		t.Errorf("present mode = %q", cfg.Renderer.PreferredPresentMode)
	}
	if cfg.Renderer.ClearColor != [4]float32{0.1, 0.2, 0.3, 1.0} {
		t.Errorf("clear color = %v", cfg.Renderer.ClearColor)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"zero width", "[window]\nwidth = 0\n", "window size"},
		{"frames in flight", "[renderer]\nframes_in_flight = 3\n", "frames_in_flight"},
		{"present mode", "[renderer]\npreferred_present_mode = \"immediate\"\n", "present mode"},
		{"camera planes", "[camera]\nnear = 10.0\nfar = 1.0\n", "camera near"},
		{"syntax", "[window\n", "line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse([]byte(tt.doc), Default())
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
