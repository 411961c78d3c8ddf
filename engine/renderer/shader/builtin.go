package shader

import (
	"embed"
)

const (
	ProgramGeometry    = "geometry"
	ProgramPostProcess = "postprocess"
)

//go:embed builtin/*
var builtinFS embed.FS

func builtinSource(file string) string {
	data, err := builtinFS.ReadFile("builtin/" + file)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Builtins returns the programs the renderer cannot run without.
func Builtins() []Program {
	geometry, err := NewSectionedProgram(ProgramGeometry, "geometry.glsl", GLSL, builtinSource("geometry.glsl"))
	if err != nil {
		panic(err)
	}
	post := Program{
		Name: ProgramPostProcess,
		Stages: []Source{
			{
				Stage:    StageVertex,
				Language: WGSL,
				Entry:    "vs_main",
				Code:     builtinSource("fullscreen.vert.wgsl"),
				File:     "fullscreen.vert.wgsl",
			},
			{
				Stage:    StageFragment,
				Language: GLSL,
				Code:     builtinSource("tonemap.frag.glsl"),
				File:     "tonemap.frag.glsl",
			},
		},
	}
	return []Program{geometry, post}
}

// NewBuiltinLibrary registers the built-in programs with the given compilers.
func NewBuiltinLibrary(cacheDir string, compilers map[Language]Compiler) (*Library, error) {
	lib := NewLibrary(cacheDir, compilers)
	for _, p := range Builtins() {
		if err := lib.Register(p); err != nil {
			return nil, err
		}
	}
	return lib, nil
}
