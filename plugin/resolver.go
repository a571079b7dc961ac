package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultExtensions are the encrypted record extensions finders look for.
var DefaultExtensions = []string{".wbce"}

// PackageIndex is the base name of a package's own record.
const PackageIndex = "index"

// ErrModuleNotFound is matched by every failed import.
var ErrModuleNotFound = errors.New("module not found")

// ModuleNotFoundError reports a name no finder could locate.
type ModuleNotFoundError struct {
	Name string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("no module named %q", e.Name)
}

// Is makes errors.Is(err, ErrModuleNotFound) succeed.
func (e *ModuleNotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}

// Finder locates modules by name. It returns a nil spec when it has
// nothing for name. path overrides the finder's own search locations when
// non-empty.
type Finder interface {
	FindSpec(name string, path []string) (*ModuleSpec, error)
}

// FileFinder looks for a module in a single directory.
type FileFinder struct {
	Entry      string
	Loader     Loader
	Extensions []string // Empty means DefaultExtensions
}

// FindSpec checks, for the last dotted segment tail of name:
//  1. a directory entry/tail holding an index record, which is a package
//  2. a record entry/tail plus an extension, which is a module
//  3. a directory entry/tail without an index, which is a namespace with no
//     origin
func (f *FileFinder) FindSpec(name string, _ []string) (*ModuleSpec, error) {
	tail := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		tail = name[i+1:]
	}
	if tail == "" {
		return nil, nil
	}

	extensions := f.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	dir := filepath.Join(f.Entry, tail)
	isDir, err := statDir(dir)
	if err != nil {
		return nil, err
	}
	if isDir {
		for _, ext := range extensions {
			index := filepath.Join(dir, PackageIndex+ext)
			ok, err := statFile(index)
			if err != nil {
				return nil, err
			}
			if ok {
				return &ModuleSpec{
					Name:            name,
					Origin:          index,
					Loader:          f.Loader,
					IsPackage:       true,
					SearchLocations: []string{dir},
				}, nil
			}
		}
	}

	for _, ext := range extensions {
		file := filepath.Join(f.Entry, tail+ext)
		ok, err := statFile(file)
		if err != nil {
			return nil, err
		}
		if ok {
			return &ModuleSpec{
				Name:   name,
				Origin: file,
				Loader: f.Loader,
			}, nil
		}
	}

	if isDir {
		return &ModuleSpec{
			Name:            name,
			IsPackage:       true,
			SearchLocations: []string{dir},
		}, nil
	}
	return nil, nil
}

func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func statFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// PathFinder searches a list of directories with a FileFinder each.
type PathFinder struct {
	Loader     Loader
	SearchPath []string
	Extensions []string
}

// FindSpec searches path, or SearchPath when path is empty, in order.
// Namespace directories are skipped and the search continues; the first
// spec with an origin wins.
func (p *PathFinder) FindSpec(name string, path []string) (*ModuleSpec, error) {
	entries := path
	if len(entries) == 0 {
		entries = p.SearchPath
	}

	for _, entry := range entries {
		finder := &FileFinder{Entry: entry, Loader: p.Loader, Extensions: p.Extensions}
		spec, err := finder.FindSpec(name, nil)
		if err != nil {
			return nil, err
		}
		if spec == nil || spec.Origin == "" {
			continue
		}
		return spec, nil
	}
	return nil, nil
}

// Chain is the ordered list of finders an application imports through.
// Earlier finders take precedence. It is safe for concurrent use.
type Chain struct {
	mu      sync.RWMutex
	finders []Finder
}

// NewChain returns a chain holding finders in order.
func NewChain(finders ...Finder) *Chain {
	return &Chain{finders: append([]Finder(nil), finders...)}
}

// Insert places f at position priority, clamped to the chain length.
// Priority 0 puts f ahead of every other finder.
func (c *Chain) Insert(priority int, f Finder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	priority = max(0, min(priority, len(c.finders)))
	c.finders = append(c.finders, nil)
	copy(c.finders[priority+1:], c.finders[priority:])
	c.finders[priority] = f
}

// Append places f after every other finder.
func (c *Chain) Append(f Finder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finders = append(c.finders, f)
}

// Finders returns a copy of the chain in order.
func (c *Chain) Finders() []Finder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Finder(nil), c.finders...)
}

// FindSpec asks every finder in order and returns the first spec that has
// an origin, or nil.
//
// A dotted name is a submodule: its parent is found first, and the child is
// searched for only in the parent package's SearchLocations. A parent that is
// missing or not a package leaves the child unfound.
func (c *Chain) FindSpec(name string) (*ModuleSpec, error) {
	var path []string
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		parent, err := c.FindSpec(name[:i])
		if err != nil {
			return nil, err
		}
		if parent == nil || !parent.IsPackage || len(parent.SearchLocations) == 0 {
			return nil, nil
		}
		path = parent.SearchLocations
	}

	for _, f := range c.Finders() {
		spec, err := f.FindSpec(name, path)
		if err != nil {
			return nil, fmt.Errorf("failed to find module %s: %w", name, err)
		}
		if spec != nil && spec.Origin != "" {
			return spec, nil
		}
	}
	return nil, nil
}

// Import finds name and loads it with the spec's loader.
func (c *Chain) Import(ctx context.Context, name string) (*LoadedModule, error) {
	spec, err := c.FindSpec(name)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, &ModuleNotFoundError{Name: name}
	}
	if spec.Loader == nil {
		return nil, fmt.Errorf("module %s has no loader", name)
	}
	return spec.Loader.Load(ctx, spec)
}
