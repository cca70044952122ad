package contentstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
)

func TestSourceCacheRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.PutSource("std", "sodium", "abc123", []byte("package body"), SyncLazy))

	data, ok, err := s.GetSource("std", "sodium", "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "package body", string(data))

	_, ok, err = s.GetSource("std", "sodium", "different-hash")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSourceCacheNoneStrategySkipsWrite(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.PutSource("std", "sodium", "abc123", []byte("body"), SyncNone))
	_, ok, err := s.GetSource("std", "sodium", "abc123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluationCacheRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	key := EvaluationKey([]byte("script"), "env-sig", "req-sig")
	ep := &pkgid.EvaluatedPackage{ID: "sodium", Meta: pkgid.Meta{"name": "Sodium"}}
	require.NoError(t, s.PutEvaluation(key, ep))

	got, ok, err := s.GetEvaluation(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sodium", got.ID)
	assert.Equal(t, "Sodium", got.Meta["name"])
}

func TestEvaluationKeyChangesWithAnyInput(t *testing.T) {
	k1 := EvaluationKey([]byte("a"), "env1", "req1")
	k2 := EvaluationKey([]byte("b"), "env1", "req1")
	k3 := EvaluationKey([]byte("a"), "env2", "req1")
	k4 := EvaluationKey([]byte("a"), "env1", "req2")
	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
}

func TestArtifactKeyPrefersSHA256(t *testing.T) {
	k, cacheable := ArtifactKey(&pkgid.AddonVersion{SHA256: "deadbeef", SHA512: "ignored"})
	assert.True(t, cacheable)
	assert.Equal(t, "sha256_deadbeef", k)

	k2, cacheable2 := ArtifactKey(&pkgid.AddonVersion{SHA512: "feedface"})
	assert.True(t, cacheable2)
	assert.Equal(t, "sha512_feedface", k2)

	_, cacheable3 := ArtifactKey(&pkgid.AddonVersion{URL: "https://example.com/x.jar"})
	assert.False(t, cacheable3)
}

func TestPutArtifactVerifiesIntegrity(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	// sha256("hello") = 2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824
	err := s.PutArtifact(ctx, "sha256_deadbeef", []byte("tampered"), "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	require.Error(t, err)
	perr, ok := err.(*pkgid.Error)
	require.True(t, ok)
	assert.ErrorIs(t, perr, pkgid.ErrIntegrityFailure)

	err = s.PutArtifact(ctx, "sha256_2cf24dba", []byte("hello"), "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	require.NoError(t, err)
	assert.True(t, s.HasArtifact("sha256_2cf24dba"))
}

func TestLinkArtifactHardLinksIntoDest(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	require.NoError(t, s.PutArtifact(ctx, "sha256_x", []byte("jarbytes"), ""))

	dest := filepath.Join(t.TempDir(), "instance", "mods", "sodium.jar")
	require.NoError(t, s.LinkArtifact("sha256_x", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "jarbytes", string(data))
}

func TestConcurrentPublishSameKeyIsSafe(t *testing.T) {
	s := New(t.TempDir())
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- s.PutSource("std", "pkg", "h", []byte("same content"), SyncLazy)
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
	data, ok, err := s.GetSource("std", "pkg", "h")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "same content", string(data))
}
