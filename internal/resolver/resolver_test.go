package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
	"github.com/mcvm-launcher/mcvm-sub000/internal/repoindex"
)

type pkgDef struct {
	id          string
	contentType repoindex.ContentType
	body        string
}

func buildRepo(t *testing.T, defs []pkgDef) *repoindex.Index {
	t.Helper()
	dir := t.TempDir()
	idx := `{"packages":{`
	for i, d := range defs {
		if i > 0 {
			idx += ","
		}
		fname := d.id + ".json"
		if d.contentType == repoindex.ContentTypeScript {
			fname = d.id + ".pkg.txt"
		}
		idx += `"` + d.id + `":{"path":"` + fname + `","content_type":"` + string(d.contentType) + `"}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, fname), []byte(d.body), 0o644))
	}
	idx += `}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte(idx), 0o644))
	repo := &repoindex.Repository{ID: "std", Kind: repoindex.KindStd, Enabled: true, Base: dir}
	idxObj := repoindex.NewIndex(repo)
	require.NoError(t, idxObj.SyncAll(context.Background()))
	return idxObj
}

func baseEnv() *pkgid.Environment {
	vl := pkgid.NewVersionList([]string{"1.19", "1.19.3"}, nil)
	return &pkgid.Environment{
		MCVersion:         "1.19.3",
		Side:              pkgid.SideClient,
		Modloader:         "fabric",
		RequestedFeatures: map[string]struct{}{},
		Permissions:       pkgid.PermissionStandard,
		Versions:          vl,
	}
}

func declAddon(id, url string) string {
	return `{"addons":{"` + id + `-file":{"kind":"mod","versions":[{"url":"` + url + `"}]}}}`
}

func TestScenarioS4ExplicitDependency(t *testing.T) {
	defs := []pkgDef{
		{id: "a", contentType: repoindex.ContentTypeDeclarative, body: `{"relations":{"explicit_dependencies":["b"]},"addons":{"a-file":{"kind":"mod","versions":[{"url":"https://a"}]}}}`},
		{id: "b", contentType: repoindex.ContentTypeDeclarative, body: declAddon("b", "https://b")},
	}
	idx := buildRepo(t, defs)
	r := New(idx)

	t.Run("requesting only a fails", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), []*pkgid.Request{pkgid.NewRequest("a")}, baseEnv())
		require.NotNil(t, err)
		assert.ErrorIs(t, err, pkgid.ErrExplicitDependencyUnmet)
	})

	t.Run("requesting both succeeds with b before a", func(t *testing.T) {
		plan, err := r.Resolve(context.Background(), []*pkgid.Request{pkgid.NewRequest("a"), pkgid.NewRequest("b")}, baseEnv())
		require.Nil(t, err)
		require.Len(t, plan.Packages, 2)
		assert.Equal(t, "b", plan.Packages[0].ID)
		assert.Equal(t, "a", plan.Packages[1].ID)
	})
}

func TestScenarioS5CompatTrigger(t *testing.T) {
	defs := []pkgDef{
		{id: "a", contentType: repoindex.ContentTypeDeclarative, body: `{"relations":{"compats":[["c","d"]]},"addons":{"a-file":{"kind":"mod","versions":[{"url":"https://a"}]}}}`},
		{id: "c", contentType: repoindex.ContentTypeDeclarative, body: declAddon("c", "https://c")},
		{id: "d", contentType: repoindex.ContentTypeDeclarative, body: declAddon("d", "https://d")},
	}
	idx := buildRepo(t, defs)
	r := New(idx)

	t.Run("with c present, d is pulled in", func(t *testing.T) {
		plan, err := r.Resolve(context.Background(), []*pkgid.Request{pkgid.NewRequest("a"), pkgid.NewRequest("c")}, baseEnv())
		require.Nil(t, err)
		ids := planIDs(plan)
		assert.ElementsMatch(t, []string{"a", "c", "d"}, ids)
	})

	t.Run("without c, plan is just a", func(t *testing.T) {
		plan, err := r.Resolve(context.Background(), []*pkgid.Request{pkgid.NewRequest("a")}, baseEnv())
		require.Nil(t, err)
		assert.Equal(t, []string{"a"}, planIDs(plan))
	})
}

func TestResolverDetectsConflict(t *testing.T) {
	defs := []pkgDef{
		{id: "a", contentType: repoindex.ContentTypeDeclarative, body: `{"relations":{"conflicts":["b"]},"addons":{"a-file":{"kind":"mod","versions":[{"url":"https://a"}]}}}`},
		{id: "b", contentType: repoindex.ContentTypeDeclarative, body: declAddon("b", "https://b")},
	}
	idx := buildRepo(t, defs)
	r := New(idx)
	_, err := r.Resolve(context.Background(), []*pkgid.Request{pkgid.NewRequest("a"), pkgid.NewRequest("b")}, baseEnv())
	require.NotNil(t, err)
	assert.ErrorIs(t, err, pkgid.ErrConflict)
}

func TestResolverDetectsAddonCollision(t *testing.T) {
	defs := []pkgDef{
		{id: "a", contentType: repoindex.ContentTypeDeclarative, body: `{"addons":{"shared":{"kind":"mod","versions":[{"url":"https://a"}]}}}`},
		{id: "b", contentType: repoindex.ContentTypeDeclarative, body: `{"addons":{"shared":{"kind":"mod","versions":[{"url":"https://b"}]}}}`},
	}
	idx := buildRepo(t, defs)
	r := New(idx)
	_, err := r.Resolve(context.Background(), []*pkgid.Request{pkgid.NewRequest("a"), pkgid.NewRequest("b")}, baseEnv())
	require.NotNil(t, err)
	assert.ErrorIs(t, err, pkgid.ErrAddonCollision)
}

func TestResolverUnknownPackage(t *testing.T) {
	idx := buildRepo(t, nil)
	r := New(idx)
	_, err := r.Resolve(context.Background(), []*pkgid.Request{pkgid.NewRequest("missing")}, baseEnv())
	require.NotNil(t, err)
	assert.ErrorIs(t, err, pkgid.ErrUnknownPackage)
}

func TestResolverDependencyOrdering(t *testing.T) {
	defs := []pkgDef{
		{id: "a", contentType: repoindex.ContentTypeDeclarative, body: `{"relations":{"dependencies":["b"]},"addons":{"a-file":{"kind":"mod","versions":[{"url":"https://a"}]}}}`},
		{id: "b", contentType: repoindex.ContentTypeDeclarative, body: declAddon("b", "https://b")},
	}
	idx := buildRepo(t, defs)
	r := New(idx)
	plan, err := r.Resolve(context.Background(), []*pkgid.Request{pkgid.NewRequest("a")}, baseEnv())
	require.Nil(t, err)
	require.Len(t, plan.Packages, 2)
	assert.Equal(t, "b", plan.Packages[0].ID)
	assert.Equal(t, "a", plan.Packages[1].ID)
}

func planIDs(p *Plan) []string {
	out := make([]string, len(p.Packages))
	for i, ep := range p.Packages {
		out[i] = ep.ID
	}
	return out
}
