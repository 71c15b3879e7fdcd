package collab

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmate/internal/domain"
)

func TestLoadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users": [
		{"id": "alice", "name": "Alice", "avatar_url": "/uploads/alice.png", "contacts": ["bob", "alice"]},
		{"id": "bob", "name": "Bob"},
		{"id": "carol", "name": "Carol", "contacts": ["bob"]}
	]}`), 0o644))

	d, err := LoadDirectory(path)
	require.NoError(t, err)
	ctx := context.Background()

	profiles, err := d.GetProfiles(ctx, []string{"alice", "zed"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Profile{
		"alice": {ID: "alice", Name: "Alice", AvatarURL: "/uploads/alice.png"},
	}, profiles)

	contacts, err := d.ListContacts(ctx, "bob")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "carol"}, contacts)

	contacts, err = d.ListContacts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, contacts)

	contacts, err = d.ListContacts(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestLoadDirectory_Errors(t *testing.T) {
	d, err := LoadDirectory("")
	require.NoError(t, err)
	assert.NotNil(t, d)

	_, err = LoadDirectory(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"users": [{"name": "no id"}]}`), 0o644))
	_, err = LoadDirectory(bad)
	assert.Error(t, err)
}
