package shader

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/naga"

	"github.com/spaghettifunk/lumen/engine/core"
)

// Compiler turns one stage into SPIR-V. A failure wraps core.ErrShaderCompile
// and carries the compiler's diagnostic text.
type Compiler interface {
	Compile(ctx context.Context, src Source) ([]byte, error)
}

func compileError(src Source, diagnostic string) error {
	return errors.Wrapf(core.ErrShaderCompile, "%s.%s: %s", src.Program, src.Stage, strings.TrimSpace(diagnostic))
}

// NagaCompiler compiles WGSL in-process.
type NagaCompiler struct{}

func (NagaCompiler) Compile(ctx context.Context, src Source) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spirv, err := naga.Compile(src.Code)
	if err != nil {
		return nil, compileError(src, err.Error())
	}
	return spirv, nil
}

// GLSLCCompiler runs the glslc binary, feeding the source on stdin and reading
// the module from stdout.
type GLSLCCompiler struct {
	// Path of the glslc executable; "glslc" resolves through PATH.
	Path string
}

func (c GLSLCCompiler) Compile(ctx context.Context, src Source) ([]byte, error) {
	path := c.Path
	if path == "" {
		path = "glslc"
	}
	cmd := exec.CommandContext(ctx, path,
		"-fshader-stage="+src.Stage.Ext(),
		"--target-env=vulkan1.0",
		"-o", "-",
		"-",
	)
	cmd.Stdin = strings.NewReader(src.Code)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, compileError(src, stderr.String())
		}
		return nil, errors.Wrapf(err, "running %s", path)
	}
	return stdout.Bytes(), nil
}

// DefaultCompilers wires glslc for GLSL and naga for WGSL.
func DefaultCompilers(glslc string) map[Language]Compiler {
	return map[Language]Compiler{
		GLSL: GLSLCCompiler{Path: glslc},
		WGSL: NagaCompiler{},
	}
}
