package recipe

import (
	_ "embed"
	"io"
	"os"
	"text/template"
	"time"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
	"github.com/zonrecipe/zonrecipe/pkg/report"
	"github.com/zonrecipe/zonrecipe/pkg/resolver"
)

//go:embed templates/recipe.tmpl
var defaultTemplate string

// Context is the data a recipe template renders from.
type Context struct {
	Name    string
	Version string
	Zig     string // minimum zig version, if the manifest declares one
	Year    int

	Vendor     []resolver.VendorEntry
	GitCommits []resolver.GitCommitEntry

	// TarballName is the deterministic archive holding the git-commit
	// dependencies. Empty when GitCommits is empty.
	TarballName string

	Report *report.Processed
	Meta   *Meta
}

// HasVendor reports whether any dependency resolved to a fetchable URL.
func (c *Context) HasVendor() bool { return len(c.Vendor) > 0 }

// HasGitCommits reports whether any dependency needs manual archiving.
func (c *Context) HasGitCommits() bool { return len(c.GitCommits) > 0 }

// NewContext fills derived fields so callers only set what they know.
func NewContext(name, version string) *Context {
	return &Context{
		Name:    name,
		Version: version,
		Year:    time.Now().Year(),
		Meta:    &Meta{},
	}
}

// Render writes the recipe for ctx to w using the built-in template.
func Render(w io.Writer, ctx *Context) error {
	return renderWith(w, ctx, defaultTemplate, "recipe")
}

// RenderFile is Render with a user-supplied template file, for
// distributions whose recipe format differs from the built-in one.
func RenderFile(w io.Writer, ctx *Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "read template %s", path)
	}
	return renderWith(w, ctx, string(data), path)
}

func renderWith(w io.Writer, ctx *Context, text, name string) error {
	if ctx.Meta == nil {
		ctx.Meta = &Meta{}
	}
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"orPlaceholder": orPlaceholder,
	}).Parse(text)
	if err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "parse recipe template")
	}
	if err := tmpl.Execute(w, ctx); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "render recipe")
	}
	return nil
}

// orPlaceholder substitutes a fill-me-in marker for empty metadata so
// the rendered recipe is syntactically complete but visibly incomplete.
func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return "TODO: " + placeholder
	}
	return s
}
