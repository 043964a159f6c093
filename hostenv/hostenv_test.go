package hostenv

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireRoot(t *testing.T) {
	err := RequireRoot()
	if os.Geteuid() == 0 {
		assert.NoError(t, err)
	} else {
		assert.ErrorIs(t, err, ErrNotRoot)
	}
}

// currentOwnerSpec builds a "user.group" string from the running account, the
// one owner pair guaranteed to resolve on any host.
func currentOwnerSpec(t *testing.T) (string, *user.User, *user.Group) {
	t.Helper()
	u, err := user.Current()
	require.NoError(t, err)
	g, err := user.LookupGroupId(u.Gid)
	require.NoError(t, err)
	return u.Username + "." + g.Name, u, g
}

func TestLookupOwner(t *testing.T) {
	t.Run("resolves an existing user.group pair", func(t *testing.T) {
		spec, u, g := currentOwnerSpec(t)

		owner, err := LookupOwner(spec)
		require.NoError(t, err)
		assert.Equal(t, u.Username, owner.User)
		assert.Equal(t, g.Name, owner.Group)
		assert.Equal(t, spec, owner.String())
	})

	t.Run("malformed specs", func(t *testing.T) {
		for _, spec := range []string{"", "nodot", ".group", "user."} {
			_, err := LookupOwner(spec)
			assert.ErrorIs(t, err, ErrMalformedOwner, spec)
			assert.ErrorContains(t, err, "malformed owner", spec)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, g := currentOwnerSpec(t)
		_, err := LookupOwner("no-such-user-pmdb." + g.Name)
		assert.ErrorIs(t, err, ErrUnknownUser)
	})

	t.Run("unknown group", func(t *testing.T) {
		_, u, _ := currentOwnerSpec(t)
		_, err := LookupOwner(u.Username + ".no-such-group-pmdb")
		assert.ErrorIs(t, err, ErrUnknownGroup)
	})
}

func TestOwnerApply(t *testing.T) {
	spec, _, _ := currentOwnerSpec(t)
	owner, err := LookupOwner(spec)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "patemon.sqlite3")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	// Chown to self is always permitted.
	require.NoError(t, owner.Apply(path, 0o770))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o770), info.Mode().Perm())
}
