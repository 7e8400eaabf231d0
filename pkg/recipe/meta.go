// Package recipe renders a packaging recipe from a resolved dependency
// set, the collected build report, and optional maintainer metadata.
package recipe

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
)

// MetaFilename is the optional per-project metadata file read from the
// project root.
const MetaFilename = "zonrecipe.toml"

// Meta carries recipe fields that cannot be derived from the build:
// maintainer identity and distribution policy.
type Meta struct {
	Maintainer  string `toml:"maintainer"`
	Email       string `toml:"email"`
	License     string `toml:"license"`
	Homepage    string `toml:"homepage"`
	Description string `toml:"description"`
	Slot        string `toml:"slot"`
}

// LoadMeta reads the project metadata file from dir. A missing file is
// not an error: every field has a placeholder in the template.
func LoadMeta(dir string) (*Meta, error) {
	path := filepath.Join(dir, MetaFilename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Meta{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", MetaFilename)
	}

	var m Meta
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse %s", MetaFilename)
	}
	return &m, nil
}
