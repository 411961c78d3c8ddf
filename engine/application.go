package engine

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
)

func windowConfig(cfg config.Window) platform.WindowConfig {
	return platform.WindowConfig{
		Title:     cfg.Title,
		X:         cfg.X,
		Y:         cfg.Y,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Resizable: cfg.Resizable,
	}
}

// NewShaderLibrary registers the built-in programs and overrides their sources
// with the files found in cfg.Dir.
func NewShaderLibrary(cfg config.Shaders) (*shader.Library, error) {
	library, err := shader.NewBuiltinLibrary(cfg.CacheDir, shader.DefaultCompilers(cfg.GLSLC))
	if err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return library, nil
	}
	if _, err := os.Stat(cfg.Dir); errors.Is(err, os.ErrNotExist) {
		core.LogDebug("Shader directory %s not found, using embedded sources.", cfg.Dir)
		return library, nil
	}
	if err := library.LoadDir(cfg.Dir); err != nil {
		return nil, errors.Wrap(err, "loading shader sources")
	}
	return library, nil
}
