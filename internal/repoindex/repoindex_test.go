package repoindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocalRepo(t *testing.T, dir string, packages map[string]string) *Repository {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	idx := `{"packages":{`
	first := true
	for id, file := range packages {
		if !first {
			idx += ","
		}
		first = false
		idx += `"` + id + `":{"path":"` + file + `","content_type":"declarative"}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(`{"meta":{"name":"`+id+`"}}`), 0o644))
	}
	idx += `}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte(idx), 0o644))
	return &Repository{ID: dir, Kind: KindStd, Enabled: true, Base: dir}
}

func TestRepositoryPrecedence(t *testing.T) {
	dir := t.TempDir()
	preferredDir := filepath.Join(dir, "preferred")
	stdDir := filepath.Join(dir, "std")

	preferred := writeLocalRepo(t, preferredDir, map[string]string{"sodium": "sodium.json"})
	preferred.Kind = KindPreferred
	std := writeLocalRepo(t, stdDir, map[string]string{"sodium": "sodium.json", "other": "other.json"})

	idx := NewIndex(preferred, std)
	ctx := context.Background()
	require.NoError(t, idx.SyncAll(ctx))

	loc, err := idx.Locate(ctx, "sodium")
	require.NoError(t, err)
	assert.Equal(t, preferredDir, loc.RepoID)

	loc2, err := idx.Locate(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, stdDir, loc2.RepoID)

	_, err = idx.Locate(ctx, "missing")
	assert.Error(t, err)
}

func TestRepositoryDisabled(t *testing.T) {
	dir := t.TempDir()
	repo := writeLocalRepo(t, dir, map[string]string{"p": "p.json"})
	repo.Enabled = false

	idx := NewIndex(repo)
	ctx := context.Background()
	require.NoError(t, idx.SyncAll(ctx))

	_, err := idx.Locate(ctx, "p")
	assert.Error(t, err)
}
