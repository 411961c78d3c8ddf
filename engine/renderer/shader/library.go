package shader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/lumen/engine/core"
)

// Library holds the registered programs and compiles them on demand.
type Library struct {
	compilers map[Language]Compiler
	cacheDir  string

	mu       sync.RWMutex
	programs map[string]Program
	order    []string
}

// NewLibrary creates an empty library. An empty cacheDir disables the SPIR-V cache.
func NewLibrary(cacheDir string, compilers map[Language]Compiler) *Library {
	return &Library{
		compilers: compilers,
		cacheDir:  cacheDir,
		programs:  map[string]Program{},
	}
}

func (l *Library) Register(p Program) error {
	if p.Name == "" {
		return errors.New("program has no name")
	}
	if len(p.Stages) == 0 {
		return errors.Newf("program %s has no stages", p.Name)
	}
	p.Stages = slices.Clone(p.Stages)
	for i := range p.Stages {
		p.Stages[i].Program = p.Name
		if _, ok := l.compilers[p.Stages[i].Language]; !ok {
			return errors.Newf("program %s: no compiler for %s", p.Name, p.Stages[i].Language)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.programs[p.Name]; !exists {
		l.order = append(l.order, p.Name)
	}
	l.programs[p.Name] = p
	return nil
}

func (l *Library) Program(name string) (Program, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.programs[name]
	return p, ok
}

// Names lists programs in registration order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// ProgramsUsing returns the programs with a stage read from file.
func (l *Library) ProgramsUsing(file string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for _, name := range l.order {
		for _, s := range l.programs[name].Stages {
			if s.File == file {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// LoadDir replaces the code of every stage whose File exists in dir. Missing
// files keep their current (embedded) code.
func (l *Library) LoadDir(dir string) error {
	for _, name := range l.Names() {
		if err := l.reload(name, dir); err != nil {
			return err
		}
	}
	return nil
}

// Reload rereads the files of one program from dir.
func (l *Library) Reload(name, dir string) error {
	return l.reload(name, dir)
}

func (l *Library) reload(name, dir string) error {
	p, ok := l.Program(name)
	if !ok {
		return errors.Newf("unknown program %s", name)
	}
	// Stages are swapped in only once every file has been read.
	p.Stages = slices.Clone(p.Stages)
	for i, s := range p.Stages {
		if s.File == "" {
			continue
		}
		path := filepath.Join(dir, s.File)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
		code := string(data)
		if IsSectioned(code) {
			sections, err := SplitSections(code)
			if err != nil {
				return errors.Wrapf(err, "splitting %s", path)
			}
			if code, ok = sections[s.Stage]; !ok {
				return errors.Newf("%s has no %s section", path, s.Stage)
			}
		}
		p.Stages[i].Code = code
		p.Stages[i].Path = path
	}
	l.mu.Lock()
	l.programs[name] = p
	l.mu.Unlock()
	return nil
}

// Compile compiles every stage of the named programs (all of them when none
// are named) in parallel. The first failure cancels the rest.
func (l *Library) Compile(ctx context.Context, names ...string) (map[string]*Compiled, error) {
	if len(names) == 0 {
		names = l.Names()
	}
	type job struct {
		src Source
		out *Binary
	}
	results := make(map[string]*Compiled, len(names))
	var jobs []job
	for _, name := range names {
		p, ok := l.Program(name)
		if !ok {
			return nil, errors.Newf("unknown program %s", name)
		}
		c := &Compiled{Name: name, Stages: make([]Binary, len(p.Stages))}
		results[name] = c
		for i, s := range p.Stages {
			jobs = append(jobs, job{src: s, out: &c.Stages[i]})
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		group.Go(func() error {
			code, err := l.compileStage(gctx, j.src)
			if err != nil {
				return err
			}
			*j.out = Binary{Stage: j.src.Stage, Entry: j.src.entry(), Code: code}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		core.LogError("Shader compilation failed: %s", err)
		return nil, err
	}
	return results, nil
}

func (l *Library) compileStage(ctx context.Context, src Source) ([]byte, error) {
	if code, ok := l.cached(src); ok {
		core.LogDebug("Using cached SPIR-V for %s.%s", src.Program, src.Stage)
		return code, nil
	}
	compiler := l.compilers[src.Language]
	code, err := compiler.Compile(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := ValidateSPIRV(code); err != nil {
		return nil, compileError(src, err.Error())
	}
	return code, nil
}

// CachePath is where the SPIR-V of a stage read from file is cached:
// the file name without extensions plus the stage, e.g. geometry.frag.spv.
func (l *Library) CachePath(src Source) string {
	if l.cacheDir == "" || src.File == "" {
		return ""
	}
	base := filepath.Base(src.File)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return filepath.Join(l.cacheDir, base+"."+src.Stage.Ext()+".spv")
}

// cached returns the cache entry of a stage read from disk when it is newer
// than its source.
func (l *Library) cached(src Source) ([]byte, bool) {
	path := l.CachePath(src)
	if path == "" || src.Path == "" {
		return nil, false
	}
	cacheInfo, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	srcInfo, err := os.Stat(src.Path)
	if err != nil || !cacheInfo.ModTime().After(srcInfo.ModTime()) {
		return nil, false
	}
	code, err := os.ReadFile(path)
	if err != nil || ValidateSPIRV(code) != nil {
		return nil, false
	}
	return code, true
}

// WriteCache stores compiled stages so later runs can skip compilation.
func (l *Library) WriteCache(compiled map[string]*Compiled) error {
	if l.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.cacheDir, 0o755); err != nil {
		return errors.Wrap(err, "creating shader cache directory")
	}
	for name, c := range compiled {
		p, ok := l.Program(name)
		if !ok {
			continue
		}
		for i, s := range p.Stages {
			path := l.CachePath(s)
			if path == "" || i >= len(c.Stages) {
				continue
			}
			if err := os.WriteFile(path, c.Stages[i].Code, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", path)
			}
		}
	}
	return nil
}
