// Package resolver walks a manifest dependency graph and normalizes
// every reachable remote dependency to either a stable archive URL or a
// manual-vendoring entry.
//
// The traversal is breadth-first over an explicit FIFO queue, strictly
// sequential: dependencies of one manifest are fetched in declaration
// order so that conflicts between two edges sharing a content hash
// resolve deterministically.
package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
	"github.com/zonrecipe/zonrecipe/pkg/manifest"
	"github.com/zonrecipe/zonrecipe/pkg/zigtool"
)

// Fetcher retrieves one dependency into the content-addressed store and
// returns its content hash. *zigtool.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, storeDir, ref string) (string, error)
}

// FetchMode selects how remote dependencies are materialized.
type FetchMode string

const (
	// FetchModeSkip trusts the declared hashes and resolves store paths
	// without invoking the tool. The store must already be populated.
	FetchModeSkip FetchMode = "skip"
	// FetchModePlain fetches each dependency and takes the hash the
	// tool reports.
	FetchModePlain FetchMode = "plain"
	// FetchModeHashed fetches and additionally verifies the reported
	// hash against the manifest declaration.
	FetchModeHashed FetchMode = "hashed"
)

// ParseFetchMode validates a user-supplied fetch mode string.
func ParseFetchMode(s string) (FetchMode, error) {
	switch FetchMode(s) {
	case FetchModeSkip, FetchModePlain, FetchModeHashed:
		return FetchMode(s), nil
	}
	return "", errors.New(errors.ErrCodeUnsupported, "unknown fetch mode %q", s)
}

// VendorEntry is one resolved remote dependency normalized to a
// directly downloadable archive URL. Name is the synthetic file name
// <dependency>-<hash>.<ext>.
type VendorEntry struct {
	Name string
	URL  string
}

// GitCommitEntry is a dependency whose source-control reference could
// not be normalized and must be archived manually.
type GitCommitEntry struct {
	Name string
	Hash string
}

// Edge is one dependency relation, by display name. The graph command
// renders these.
type Edge struct {
	From string
	To   string
}

// Result is the outcome of one full resolution.
type Result struct {
	Vendor     []VendorEntry    // sorted by dependency name, stable
	GitCommits []GitCommitEntry // discovery order
	Edges      []Edge
}

// Options configures a Resolver.
type Options struct {
	StoreDir string    // global content-addressed store root
	Mode     FetchMode // defaults to FetchModePlain
	Logger   *log.Logger
}

// Resolver drives the dependency graph traversal.
type Resolver struct {
	fetcher Fetcher
	opts    Options
	logger  *log.Logger
}

// New creates a Resolver around the given fetcher.
func New(fetcher Fetcher, opts Options) *Resolver {
	if opts.Mode == "" {
		opts.Mode = FetchModePlain
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{fetcher: fetcher, opts: opts, logger: logger}
}

// node is one queued traversal step: a package directory and its
// manifest. The root directory is the caller's; every other directory
// lives inside the store.
type node struct {
	dir string
	man *manifest.Manifest
}

// record is one vendor-map entry, keyed externally by content hash.
type record struct {
	name string // declared dependency name
	url  string // source URL as declared (pre-translation)
}

// Resolve walks the dependency graph rooted at root (located in
// rootDir) and returns the normalized dependency lists. A failed fetch
// or an unresolvable conflict aborts the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, root *manifest.Manifest, rootDir string) (*Result, error) {
	byHash := make(map[string]*record)
	var order []string // hash insertion order
	var edges []Edge

	// visited holds content hashes for remote packages and absolute
	// directory paths for local ones. Both sets are finite, so marking
	// every package before enqueueing keeps cyclic graphs terminating.
	visited := make(map[string]bool)
	rootID, err := localID(rootDir)
	if err != nil {
		return nil, err
	}
	visited[rootID] = true

	queue := []node{{dir: rootDir, man: root}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		for _, dep := range n.man.Dependencies {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			edges = append(edges, Edge{From: n.man.Name, To: dep.Name})

			switch st := dep.Storage.(type) {
			case manifest.Local:
				depDir := filepath.Join(n.dir, st.Path)
				id, err := localID(depDir)
				if err != nil {
					return nil, err
				}
				if visited[id] {
					r.logger.Debug("local dependency already visited", "dependency", dep.Name, "dir", depDir)
					continue
				}
				visited[id] = true

				man, err := r.readManifest(depDir, dep.Name)
				if err != nil {
					return nil, err
				}
				queue = append(queue, node{dir: depDir, man: man})

			case manifest.Remote:
				hash, err := r.fetchRemote(ctx, dep, st)
				if err != nil {
					return nil, err
				}
				if err := r.merge(byHash, &order, hash, dep.Name, st.URL); err != nil {
					return nil, err
				}
				if visited[hash] {
					r.logger.Debug("content hash already visited", "dependency", dep.Name, "hash", hash)
					continue
				}
				visited[hash] = true

				depDir := zigtool.StorePath(r.opts.StoreDir, hash)
				man, err := r.readManifest(depDir, dep.Name)
				if err != nil {
					return nil, err
				}
				queue = append(queue, node{dir: depDir, man: man})
			}
		}
	}

	return r.partition(byHash, order, edges)
}

// localID is the traversal identity of a local package: its absolute
// directory path. Local packages carry no content hash, so the path
// stands in for one in the visited set.
func localID(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "local dependency %s", dir)
	}
	return abs, nil
}

// fetchRemote materializes one remote dependency according to the fetch
// mode and returns its content hash.
func (r *Resolver) fetchRemote(ctx context.Context, dep manifest.Dependency, st manifest.Remote) (string, error) {
	if r.opts.Mode == FetchModeSkip {
		return st.Hash, nil
	}
	hash, err := r.fetcher.Fetch(ctx, r.opts.StoreDir, st.URL)
	if err != nil {
		return "", err
	}
	if r.opts.Mode == FetchModeHashed && hash != st.Hash {
		return "", errors.New(errors.ErrCodeFetchFailed,
			"dependency %s: fetched hash %s does not match declared %s", dep.Name, hash, st.Hash)
	}
	r.logger.Debug("fetched dependency", "dependency", dep.Name, "hash", hash)
	return hash, nil
}

// readManifest parses the manifest of a fetched package, or synthesizes
// an empty leaf when the package ships none. A malformed manifest is
// fatal; a missing one is not.
func (r *Resolver) readManifest(dir, depName string) (*manifest.Manifest, error) {
	path := filepath.Join(dir, manifest.Filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.logger.Debug("package has no manifest, treating as leaf", "dependency", depName)
		return manifest.Synthesize(depName), nil
	}
	return manifest.ParseFile(path)
}

// merge inserts a resolved remote dependency into the content-hash-keyed
// vendor map, applying the conflict precedence when the hash is already
// present:
//
//  1. identical URL: keep the existing entry
//  2. existing tarball vs new source-control reference: keep existing
//  3. existing source-control reference vs new tarball: replace
//  4. anything else: fatal, needs upstream attention
func (r *Resolver) merge(byHash map[string]*record, order *[]string, hash, name, rawURL string) error {
	existing, ok := byHash[hash]
	if !ok {
		byHash[hash] = &record{name: name, url: rawURL}
		*order = append(*order, hash)
		return nil
	}

	switch {
	case existing.url == rawURL:
		r.logger.Info("dependency already resolved from identical url",
			"dependency", name, "hash", hash)
	case isTarball(existing.url) && IsSourceControl(rawURL):
		r.logger.Debug("keeping tarball url over source-control reference",
			"dependency", name, "hash", hash)
	case IsSourceControl(existing.url) && isTarball(rawURL):
		r.logger.Debug("replacing source-control reference with tarball url",
			"dependency", name, "hash", hash)
		byHash[hash] = &record{name: name, url: rawURL}
	default:
		return errors.New(errors.ErrCodeUnresolvedConflict,
			"hash %s resolved from both %s and %s", hash, existing.url, rawURL)
	}
	return nil
}

// partition splits the vendor map into the normalized vendor list
// (sorted by dependency name) and the manual git-commit list (discovery
// order), translating source-control references along the way.
func (r *Resolver) partition(byHash map[string]*record, order []string, edges []Edge) (*Result, error) {
	type named struct {
		name  string
		entry VendorEntry
	}
	var vendor []named
	res := &Result{Edges: edges}

	for _, hash := range order {
		rec := byHash[hash]
		tr, err := Translate(rec.url)
		if err != nil {
			return nil, err
		}
		if tr.Untranslatable {
			res.GitCommits = append(res.GitCommits, GitCommitEntry{
				Name: syntheticName(rec.name, hash, "tar.gz"),
				Hash: hash,
			})
			continue
		}
		vendor = append(vendor, named{
			name:  rec.name,
			entry: VendorEntry{Name: syntheticName(rec.name, hash, tr.Ext), URL: tr.URL},
		})
	}

	slices.SortStableFunc(vendor, func(a, b named) int {
		return strings.Compare(a.name, b.name)
	})
	for _, v := range vendor {
		res.Vendor = append(res.Vendor, v.entry)
	}
	return res, nil
}

func syntheticName(dep, hash, ext string) string {
	return fmt.Sprintf("%s-%s.%s", dep, hash, ext)
}
