// Package shader turns shader sources into SPIR-V. GLSL stages go through
// glslc, WGSL stages through naga, and results can be cached on disk.
package shader

import (
	"bufio"
	"encoding/binary"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

type Language int

const (
	GLSL Language = iota
	WGSL
)

func (l Language) String() string {
	if l == WGSL {
		return "wgsl"
	}
	return "glsl"
}

type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

// Ext is the short stage name glslc and the cache files use.
func (s Stage) Ext() string {
	if s == StageFragment {
		return "frag"
	}
	return "vert"
}

func (s Stage) String() string { return s.Ext() }

func (s Stage) Flag() vk.ShaderStageFlagBits {
	if s == StageFragment {
		return vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageVertexBit
}

// Source is one stage of a program.
type Source struct {
	Program  string
	Stage    Stage
	Language Language
	// Entry is the entry point name; GLSL always uses main.
	Entry string
	Code  string
	// File is the source file name relative to the shader directory.
	File string
	// Path is set once the code has been read from disk.
	Path string
}

func (s Source) entry() string {
	if s.Entry == "" {
		return "main"
	}
	return s.Entry
}

// Program is a named set of stages linked into one pipeline.
type Program struct {
	Name   string
	Stages []Source
}

type Binary struct {
	Stage Stage
	Entry string
	Code  []byte
}

type Compiled struct {
	Name   string
	Stages []Binary
}

// Stage returns the binary for stage, if the program has one.
func (c *Compiled) Stage(stage Stage) (Binary, bool) {
	for _, b := range c.Stages {
		if b.Stage == stage {
			return b, true
		}
	}
	return Binary{}, false
}

// ValidateSPIRV checks the module header the driver will reject anyway.
func ValidateSPIRV(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return errors.Newf("SPIR-V module of %d bytes is not a whole header of 32-bit words", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != SPIRVMagic {
		return errors.Newf("bad SPIR-V magic 0x%08x", magic)
	}
	return nil
}

var sectionMarkers = map[string]Stage{
	"#[vertex]":   StageVertex,
	"#[fragment]": StageFragment,
}

// SplitSections separates a sectioned source into its stages. A section starts
// at a line holding only its marker and runs to the next marker. Text before
// the first marker is not part of any stage.
func SplitSections(code string) (map[Stage]string, error) {
	sections := map[Stage]*strings.Builder{}
	var current *strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(code))
	for scanner.Scan() {
		line := scanner.Text()
		if stage, ok := sectionMarkers[strings.ToLower(strings.TrimSpace(line))]; ok {
			if _, dup := sections[stage]; dup {
				return nil, errors.Newf("duplicate %s section", stage)
			}
			current = &strings.Builder{}
			sections[stage] = current
			continue
		}
		if current != nil {
			current.WriteString(strings.TrimRight(line, "\r"))
			current.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading sectioned source")
	}
	if len(sections) == 0 {
		return nil, errors.New("source has no #[vertex] or #[fragment] section")
	}
	out := make(map[Stage]string, len(sections))
	for stage, b := range sections {
		out[stage] = b.String()
	}
	return out, nil
}

// IsSectioned reports whether code contains any stage marker line.
func IsSectioned(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		if _, ok := sectionMarkers[strings.ToLower(strings.TrimSpace(line))]; ok {
			return true
		}
	}
	return false
}

// NewSectionedProgram builds a program whose stages all come from one sectioned file.
func NewSectionedProgram(name, file string, lang Language, code string) (Program, error) {
	sections, err := SplitSections(code)
	if err != nil {
		return Program{}, errors.Wrapf(err, "program %s", name)
	}
	p := Program{Name: name}
	for _, stage := range []Stage{StageVertex, StageFragment} {
		body, ok := sections[stage]
		if !ok {
			continue
		}
		p.Stages = append(p.Stages, Source{
			Program:  name,
			Stage:    stage,
			Language: lang,
			Code:     body,
			File:     file,
		})
	}
	return p, nil
}
