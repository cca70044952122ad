// Package repoindex implements the repository layer (C2): an ordered
// sequence of package sources, each producing, for a given package id, the
// raw package file bytes and a content hash.
package repoindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
)

// ContentType distinguishes which compiler/evaluator a located package
// file must be routed through.
type ContentType string

const (
	ContentTypeScript      ContentType = "script"
	ContentTypeDeclarative ContentType = "declarative"
)

// Kind classifies a repository by how it is resolved.
type Kind string

const (
	KindPreferred Kind = "preferred"
	KindCore      Kind = "core"
	KindStd       Kind = "std"
	KindBackup    Kind = "backup"
)

// entry is one package's location as described in the index schema (§6).
type entry struct {
	URL         string      `json:"url,omitempty"`
	Path        string      `json:"path,omitempty"`
	ContentType ContentType `json:"content_type"`
}

// indexFile mirrors index.json's wire shape exactly.
type indexFile struct {
	Metadata *struct {
		Name            string `json:"name,omitempty"`
		Description     string `json:"description,omitempty"`
		MinCoreVersion  string `json:"min_core_version,omitempty"`
		MCVMVersion     string `json:"mcvm_version,omitempty"`
	} `json:"metadata,omitempty"`
	Packages map[string]entry `json:"packages"`
}

// Repository is one source of package definitions, local or remote.
type Repository struct {
	ID      string
	Kind    Kind
	Enabled bool

	// Base is the filesystem directory (local repos) or URL (remote repos)
	// that relative entry paths/urls resolve against.
	Base string
	// Remote is true when Base is an http(s) URL.
	Remote bool

	mu     sync.RWMutex
	loaded *indexFile
	synced time.Time
}

// Located is what a successful lookup produces: the raw bytes of the
// package definition, its content hash, the repository it came from, and
// the content type that routes it to C3/C4 or directly to C5.
type Located struct {
	RepoID      string
	PackageID   string
	Bytes       []byte
	ContentHash string
	ContentType ContentType
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Sync fetches and parses this repository's index.json, making it the
// authoritative cached index until the next explicit Sync call (Principle
// P4 in spec.md §4.2: the core never refreshes outside a sync invocation).
func (r *Repository) Sync(ctx context.Context) error {
	raw, err := r.fetch(ctx, "index.json")
	if err != nil {
		return pkgid.NewRepoUnavailable(r.ID).WithPath(r.ID)
	}
	var idx indexFile
	if err := json.Unmarshal(raw, &idx); err != nil {
		return pkgid.NewRepoUnavailable(r.ID)
	}
	for id, e := range idx.Packages {
		hasURL := e.URL != ""
		hasPath := e.Path != ""
		if hasURL == hasPath {
			return fmt.Errorf("repository %q: package %q must set exactly one of url/path", r.ID, id)
		}
	}
	r.mu.Lock()
	r.loaded = &idx
	r.synced = time.Now()
	r.mu.Unlock()
	return nil
}

// Lookup returns the located package definition for id if this repository's
// cached index contains it. A nil, nil result means "not found here" (try
// the next repository); it is not itself an error.
func (r *Repository) Lookup(ctx context.Context, id string) (*Located, error) {
	r.mu.RLock()
	idx := r.loaded
	r.mu.RUnlock()
	if idx == nil {
		return nil, nil
	}
	e, ok := idx.Packages[id]
	if !ok {
		return nil, nil
	}
	ref := e.URL
	if ref == "" {
		ref = e.Path
	}
	raw, err := r.fetch(ctx, ref)
	if err != nil {
		return nil, pkgid.NewRepoUnavailable(r.ID)
	}
	sum := sha256.Sum256(raw)
	return &Located{
		RepoID:      r.ID,
		PackageID:   id,
		Bytes:       raw,
		ContentHash: hex.EncodeToString(sum[:]),
		ContentType: e.ContentType,
	}, nil
}

func (r *Repository) fetch(ctx context.Context, ref string) ([]byte, error) {
	if r.Remote {
		u := ref
		if !isAbsoluteURL(ref) {
			u = joinURL(r.Base, ref)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	p := ref
	if !filepath.IsAbs(ref) {
		p = filepath.Join(r.Base, ref)
	}
	return os.ReadFile(p)
}

func isAbsoluteURL(s string) bool {
	for i := 0; i < len(s)-2; i++ {
		if s[i] == ':' && s[i+1] == '/' && s[i+2] == '/' {
			return true
		}
	}
	return false
}

func joinURL(base, ref string) string {
	if len(base) > 0 && base[len(base)-1] == '/' {
		return base + ref
	}
	return base + "/" + ref
}

// Index is the ordered sequence of repositories consulted by the resolver:
// preferred, then built-ins (core, std — each independently switchable),
// then backup (§4.2).
type Index struct {
	repos []*Repository
}

// NewIndex builds an Index from repositories already in their intended
// lookup order.
func NewIndex(repos ...*Repository) *Index {
	return &Index{repos: repos}
}

// SyncAll syncs every enabled repository in order. A RepoUnavailable
// failure is recoverable: that repository keeps its previous cached index
// (if any), the remaining repositories are still synced, and the first
// such error is returned once all have been tried. Any other error stops
// the sync and is returned immediately.
func (idx *Index) SyncAll(ctx context.Context) error {
	var firstErr error
	for _, r := range idx.repos {
		if !r.Enabled {
			continue
		}
		if err := r.Sync(ctx); err != nil {
			if perr, ok := err.(*pkgid.Error); ok && perr.Code == pkgid.CodeRepoUnavailable {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			return err
		}
	}
	return firstErr
}

// Locate finds id in the first repository (in order) whose index contains
// it. During resolve (as opposed to sync), a miss across every repository
// is UnknownPackage, never RepoUnavailable (§4.2).
func (idx *Index) Locate(ctx context.Context, id string) (*Located, error) {
	for _, r := range idx.repos {
		if !r.Enabled {
			continue
		}
		loc, err := r.Lookup(ctx, id)
		if err != nil {
			// A transient fetch failure for the winning repo's entry is
			// surfaced as-is; we do not silently fall through to a lower
			// priority repo once the id's owner has been identified.
			return nil, err
		}
		if loc != nil {
			return loc, nil
		}
	}
	return nil, pkgid.NewUnknownPackage(id)
}

// Repositories exposes the configured order, read-only, for diagnostics and
// the S6 precedence scenario.
func (idx *Index) Repositories() []*Repository {
	return idx.repos
}
