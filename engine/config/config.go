package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// FramesInFlight is the only supported number of frame slots.
const FramesInFlight = 2

type Config struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Shaders  Shaders  `toml:"shaders"`
	Log      Log      `toml:"log"`
	Camera   Camera   `toml:"camera"`
	Assets   Assets   `toml:"assets"`
}

type Window struct {
	Title     string `toml:"title"`
	X         uint32 `toml:"x"`
	Y         uint32 `toml:"y"`
	Width     uint32 `toml:"width"`
	Height    uint32 `toml:"height"`
	Resizable bool   `toml:"resizable"`
}

type Renderer struct {
	Validation           bool       `toml:"validation"`
	PreferredPresentMode string     `toml:"preferred_present_mode"`
	ClearColor           [4]float32 `toml:"clear_color"`
	FramesInFlight       int        `toml:"frames_in_flight"`
	Anisotropy           bool       `toml:"anisotropy"`
}

type Shaders struct {
	Dir      string `toml:"dir"`
	CacheDir string `toml:"cache_dir"`
	GLSLC    string `toml:"glslc"`
	Watch    bool   `toml:"watch"`
}

type Log struct {
	Level string `toml:"level"`
}

type Camera struct {
	FovY        float32 `toml:"fov_y"`
	Near        float32 `toml:"near"`
	Far         float32 `toml:"far"`
	Sensitivity float32 `toml:"sensitivity"`
	Speed       float32 `toml:"speed"`
}

// Assets points the testbed at optional files; empty paths select generated content.
type Assets struct {
	Mesh    string `toml:"mesh"`
	Texture string `toml:"texture"`
}

func Default() *Config {
	return &Config{
		Window: Window{
			Title:     "Lumen",
			X:         100,
			Y:         100,
			Width:     1280,
			Height:    720,
			Resizable: true,
		},
		Renderer: Renderer{
			Validation:           false,
			PreferredPresentMode: "mailbox",
			ClearColor:           [4]float32{0.0, 0.0, 0.2, 1.0},
			FramesInFlight:       FramesInFlight,
			Anisotropy:           true,
		},
		Shaders: Shaders{
			Dir:      "assets/shaders",
			CacheDir: "assets/shaders/cache",
			GLSLC:    "glslc",
		},
		Log: Log{Level: "info"},
		Camera: Camera{
			FovY:        60.0,
			Near:        0.05,
			Far:         1000.0,
			Sensitivity: 0.005,
			Speed:       2.5,
		},
	}
}

// Load reads a TOML file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes data into cfg, keeping fields the document does not set.
func Parse(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return errors.Newf("line %d column %d: %s", row, col, derr.Error())
		}
		return errors.Wrap(err, "decoding toml")
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Newf("window size must be non-zero, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.FramesInFlight != FramesInFlight {
		return errors.Newf("frames_in_flight must be %d, got %d", FramesInFlight, c.Renderer.FramesInFlight)
	}
	switch c.Renderer.PreferredPresentMode {
	case "mailbox", "fifo":
	default:
		return errors.Newf("unknown present mode %q", c.Renderer.PreferredPresentMode)
	}
	if c.Camera.Near <= 0 || c.Camera.Near >= c.Camera.Far {
		return errors.Newf("camera near (%v) must be positive and below far (%v)", c.Camera.Near, c.Camera.Far)
	}
	return nil
}
