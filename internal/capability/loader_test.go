package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Valid(t *testing.T) {
	server, owner, admin := key("server"), key("owner"), key("admin")
	src := fmt.Sprintf(`
servers: [
	{
		identity: %q
		owner:    %q
		admins: [%q]
	},
	{
		identity: %q
	},
]
`, server, owner, admin, admin)

	r, err := Load([]byte(src), "caps.cue")
	require.NoError(t, err)

	assert.True(t, r.IsOwnerOrAdmin(server, owner))
	assert.True(t, r.IsOwnerOrAdmin(server, admin))
	assert.False(t, r.IsOwnerOrAdmin(server, server))

	// admins defaults to empty and owner defaults to the identity
	assert.True(t, r.IsOwnerOrAdmin(admin, admin))
	assert.Empty(t, r.Admins(admin))
	assert.Len(t, r.Servers(), 2)
}

func TestLoad_Empty(t *testing.T) {
	r, err := Load([]byte(""), "caps.cue")
	require.NoError(t, err)
	assert.Empty(t, r.Servers())
}

func TestLoad_SyntaxError(t *testing.T) {
	_, err := Load([]byte("servers: [\n"), "caps.cue")
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeBuildFailed, le.Code)
	assert.Contains(t, err.Error(), "caps.cue")
}

func TestLoad_SchemaViolation(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing identity", `servers: [{admins: []}]`},
		{"identity not a string", `servers: [{identity: 42}]`},
		{"identity not base64", `servers: [{identity: "not a key!"}]`},
		{"unknown field", `servers: [{identity: "AAAA", role: "x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.src), "caps.cue")
			require.Error(t, err)

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, ErrCodeSchema, le.Code)
		})
	}
}

func TestLoad_BadKey(t *testing.T) {
	server := key("server")
	src := fmt.Sprintf(`servers: [{identity: %q, admins: ["AAAA"]}]`, server)

	_, err := Load([]byte(src), "caps.cue")
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeBadKey, le.Code)
	assert.Equal(t, "servers[0].admins[0]", le.Field)
	assert.Contains(t, err.Error(), "servers[0].admins[0]")
}

func TestLoadFile(t *testing.T) {
	server := key("server")
	path := filepath.Join(t.TempDir(), "caps.cue")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`servers: [{identity: %q}]`, server)), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, r.IsOwnerOrAdmin(server, server))
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.cue"))

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}
