// Package manifest models a build.zig.zon dependency manifest.
//
// A manifest is produced by parsing the ZON document (pkg/zon) and binding
// the generic value tree to the typed model here. Binding validates the
// document once: field types, required fields, and the mutually exclusive
// url/path dependency storage forms. Downstream code never sees a
// half-valid manifest.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
	"github.com/zonrecipe/zonrecipe/pkg/zon"
)

// Filename is the canonical manifest file name inside a package root.
const Filename = "build.zig.zon"

// Manifest is one parsed dependency manifest.
type Manifest struct {
	Name              string
	Version           string
	MinimumZigVersion string       // optional, empty when absent
	Dependencies      []Dependency // declaration order
	Paths             []string
}

// Dependency is one declared dependency edge.
type Dependency struct {
	Name    string
	Storage Storage
	Lazy    bool
}

// Storage is the tagged source variant of a dependency: either a local
// path relative to the declaring package, or a remote URL with a content
// hash. Exactly one variant exists per dependency.
type Storage interface {
	storage()
}

// Local is a dependency vendored inside the project tree.
type Local struct {
	Path string
}

// Remote is a dependency fetched from a URL, identified by content hash.
type Remote struct {
	URL  string
	Hash string
}

func (Local) storage()  {}
func (Remote) storage() {}

// Synthesize returns a minimal leaf manifest for a fetched package that
// ships no manifest of its own. The package keeps the name its parent
// declared for it and has no dependencies.
func Synthesize(name string) *Manifest {
	return &Manifest{Name: name}
}

// ParseFile reads and parses the manifest at path. If path is a
// directory, the canonical manifest file inside it is used.
func ParseFile(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "manifest %s", path)
	}
	if info.IsDir() {
		path = filepath.Join(path, Filename)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "manifest %s", path)
	}
	m, err := Parse(src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "manifest %s", path)
	}
	return m, nil
}

// Parse parses manifest source text into the typed model.
func Parse(src []byte) (*Manifest, error) {
	v, err := zon.Parse(src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "malformed manifest")
	}
	root, ok := v.(*zon.Struct)
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, "manifest root must be a struct literal")
	}
	return bind(root)
}

func bind(root *zon.Struct) (*Manifest, error) {
	m := &Manifest{}

	name, ok := root.Get("name")
	if !ok {
		return nil, missing("name")
	}
	switch n := name.(type) {
	case *zon.String:
		m.Name = n.Value
	case *zon.Enum: // zig >= 0.14 spells the name as an enum literal
		m.Name = n.Name
	default:
		return nil, badType("name", "string")
	}
	if m.Name == "" {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "field name must not be empty")
	}

	version, ok := root.Get("version")
	if !ok {
		return nil, missing("version")
	}
	vs, ok := version.(*zon.String)
	if !ok {
		return nil, badType("version", "string")
	}
	m.Version = vs.Value

	if v, ok := root.Get("minimum_zig_version"); ok {
		s, ok := v.(*zon.String)
		if !ok {
			return nil, badType("minimum_zig_version", "string")
		}
		m.MinimumZigVersion = s.Value
	}

	if v, ok := root.Get("dependencies"); ok {
		deps, ok := v.(*zon.Struct)
		if !ok {
			return nil, badType("dependencies", "struct")
		}
		for _, f := range deps.Fields {
			dep, err := bindDependency(f.Name, f.Value)
			if err != nil {
				return nil, err
			}
			m.Dependencies = append(m.Dependencies, dep)
		}
	}

	if v, ok := root.Get("paths"); ok {
		switch paths := v.(type) {
		case *zon.List:
			for _, item := range paths.Items {
				s, ok := item.(*zon.String)
				if !ok {
					return nil, badType("paths", "list of strings")
				}
				m.Paths = append(m.Paths, s.Value)
			}
		case *zon.Struct:
			if len(paths.Fields) > 0 {
				return nil, badType("paths", "list of strings")
			}
		default:
			return nil, badType("paths", "list of strings")
		}
	}

	return m, nil
}

func bindDependency(name string, v zon.Value) (Dependency, error) {
	if err := errors.ValidateDependencyName(name); err != nil {
		return Dependency{}, err
	}
	body, ok := v.(*zon.Struct)
	if !ok {
		return Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
			"dependency %s must be a struct literal", name)
	}

	var url, hash, path string
	dep := Dependency{Name: name}

	for _, f := range body.Fields {
		switch f.Name {
		case "url":
			s, ok := f.Value.(*zon.String)
			if !ok {
				return Dependency{}, badType("url", "string")
			}
			url = s.Value
		case "hash":
			s, ok := f.Value.(*zon.String)
			if !ok {
				return Dependency{}, badType("hash", "string")
			}
			hash = s.Value
		case "path":
			s, ok := f.Value.(*zon.String)
			if !ok {
				return Dependency{}, badType("path", "string")
			}
			path = s.Value
		case "lazy":
			b, ok := f.Value.(*zon.Bool)
			if !ok {
				return Dependency{}, badType("lazy", "bool")
			}
			dep.Lazy = b.Value
		}
	}

	switch {
	case url != "" && path != "":
		return Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
			"dependency %s declares both url and path", name)
	case path != "" && hash != "":
		return Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
			"dependency %s declares a hash for a local path", name)
	case url != "" && hash == "":
		return Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
			"dependency %s declares a url without a hash", name)
	case url != "":
		dep.Storage = Remote{URL: url, Hash: hash}
	case path != "":
		if err := errors.ValidateLocalPath(path); err != nil {
			return Dependency{}, err
		}
		dep.Storage = Local{Path: path}
	default:
		return Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
			"dependency %s declares neither url nor path", name)
	}

	return dep, nil
}

func missing(field string) error {
	return errors.New(errors.ErrCodeInvalidManifest, "missing required field %s", field)
}

func badType(field, want string) error {
	return errors.New(errors.ErrCodeInvalidManifest, "field %s must be a %s", field, want)
}
