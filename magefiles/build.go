//go:build mage

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/magefile/mage/mg"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
)

type Build mg.Namespace

// Compiles every shader program to SPIR-V and fills the cache directory.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/lumen", "."), withStream())
	return err
}

func buildShaders() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	library, err := shader.NewBuiltinLibrary(cfg.Shaders.CacheDir, shader.DefaultCompilers(cfg.Shaders.GLSLC))
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Shaders.Dir); err == nil {
		if err := library.LoadDir(cfg.Shaders.Dir); err != nil {
			return err
		}
	}
	compiled, err := library.Compile(context.Background())
	if err != nil {
		return err
	}
	if err := library.WriteCache(compiled); err != nil {
		return err
	}
	fmt.Printf("Compiled %d shader programs into %s\n", len(compiled), cfg.Shaders.CacheDir)
	return nil
}

func configPath() string {
	if p := os.Getenv("LUMEN_CONFIG"); p != "" {
		return p
	}
	return "lumen.toml"
}
