package resolver

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
)

// Translation is the outcome of normalizing a dependency URL to a stable
// archive download.
type Translation struct {
	URL            string // archive URL, empty when Untranslatable
	Ext            string // archive extension for the synthetic file name
	Untranslatable bool   // source-control host not in the recognized table
}

// hostRule describes how a recognized hosting service exposes commit
// archives.
type hostRule struct {
	base    string
	archive string // fmt template receiving the commit
}

// Recognized hosting services. Everything but GitLab uses the plain
// /archive/ layout.
var hosts = map[string]hostRule{
	"github.com":   {base: "https://github.com", archive: "/archive/%s.tar.gz"},
	"codeberg.org": {base: "https://codeberg.org", archive: "/archive/%s.tar.gz"},
	"gitea.com":    {base: "https://gitea.com", archive: "/archive/%s.tar.gz"},
	"gitlab.com":   {base: "https://gitlab.com", archive: "/-/archive/%s.tar.gz"},
}

// archiveSuffixes maps tarball URL suffixes to the canonical extension
// used in synthetic file names. Longest suffixes are matched first.
var archiveSuffixes = []struct {
	suffix string
	ext    string
}{
	{".tar.gz", "tar.gz"},
	{".tgz", "tar.gz"},
	{".tar.xz", "tar.xz"},
	{".txz", "tar.xz"},
	{".tar.zst", "tar.zst"},
	{".tzst", "tar.zst"},
	{".tar", "tar"},
	{".zip", "zip"},
}

// IsSourceControl reports whether raw carries a source-control scheme
// (git+https or git+http).
func IsSourceControl(raw string) bool {
	return strings.HasPrefix(raw, "git+https://") || strings.HasPrefix(raw, "git+http://")
}

// isTarball reports whether raw is a plain downloadable archive URL.
func isTarball(raw string) bool {
	return strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://")
}

// Translate normalizes a dependency URL. Source-control references to a
// recognized host become stable commit-archive URLs; references to
// unknown hosts are Untranslatable and must be vendored manually. Plain
// tarball URLs pass through with their extension derived from the
// suffix table.
//
// A source-control reference without a commit fragment is a fatal error:
// tag references are not guaranteed immutable, so there is nothing
// stable to translate to.
func Translate(raw string) (Translation, error) {
	if !IsSourceControl(raw) {
		ext, err := ArchiveExtension(raw)
		if err != nil {
			return Translation{}, err
		}
		return Translation{URL: raw, Ext: ext}, nil
	}

	u, err := url.Parse(strings.TrimPrefix(raw, "git+"))
	if err != nil {
		return Translation{}, errors.Wrap(errors.ErrCodeInvalidManifest, err, "url %s", raw)
	}
	commit := u.Fragment
	if commit == "" {
		return Translation{}, errors.New(errors.ErrCodeMissingCommit,
			"source-control url %s has no commit fragment", raw)
	}

	rule, ok := hosts[u.Hostname()]
	if !ok {
		return Translation{Untranslatable: true}, nil
	}

	repo := strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), ".git")
	return Translation{
		URL: rule.base + repo + fmt.Sprintf(rule.archive, commit),
		Ext: "tar.gz",
	}, nil
}

// ArchiveExtension derives the canonical archive extension from a plain
// tarball URL. An unrecognized suffix is a fatal error rather than a
// silently dropped dependency.
func ArchiveExtension(raw string) (string, error) {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		path = u.Path
	}
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(path, s.suffix) {
			return s.ext, nil
		}
	}
	return "", errors.New(errors.ErrCodeUnsupportedArchive,
		"unrecognized archive suffix in %s", raw)
}
