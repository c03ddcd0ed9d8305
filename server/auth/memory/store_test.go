package memory

import (
	"context"
	"net/http"
	"testing"

	"github.com/cyp0633/librecur/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUser(t *testing.T) {
	tests := []struct {
		entry   string
		want    User
		wantErr bool
	}{
		{entry: "alice:secret", want: User{Username: "alice", Password: "secret"}},
		{entry: "bob:pw:ro", want: User{Username: "bob", Password: "pw", ReadOnly: true}},
		{entry: "carol:a:b", want: User{Username: "carol", Password: "a:b"}},
		{entry: "alice", wantErr: true},
		{entry: ":secret", wantErr: true},
		{entry: "alice:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			got, err := ParseUser(tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_Authenticate(t *testing.T) {
	ctx := context.Background()
	s, err := FromEntries([]string{"alice:secret", "bob:pw:ro"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	p, err := s.Authenticate(ctx, auth.Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, &auth.Principal{ID: "alice"}, p)

	p, err = s.Authenticate(ctx, auth.Credentials{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, p.ReadOnly)

	for _, creds := range []auth.Credentials{
		{Username: "alice", Password: "wrong"},
		{Username: "mallory", Password: "secret"},
	} {
		_, err := s.Authenticate(ctx, creds)
		var authErr *auth.Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, auth.ErrInvalidCredentials, authErr.Type)
	}
}

func TestStore_DuplicateUser(t *testing.T) {
	_, err := FromEntries([]string{"alice:one", "alice:two"})
	assert.ErrorContains(t, err, "user already exists: alice")
}

func TestStore_ValidateAccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	writer := &auth.Principal{ID: "alice"}
	reader := &auth.Principal{ID: "bob", ReadOnly: true}

	assert.NoError(t, s.ValidateAccess(ctx, writer, http.MethodDelete, "/api/tasks/t1"))
	assert.NoError(t, s.ValidateAccess(ctx, reader, http.MethodGet, "/api/agenda"))
	assert.NoError(t, s.ValidateAccess(ctx, reader, http.MethodHead, "/api/agenda"))

	err := s.ValidateAccess(ctx, reader, http.MethodPost, "/api/tasks")
	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.ErrForbidden, authErr.Type)

	err = s.ValidateAccess(ctx, nil, http.MethodGet, "/api/agenda")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.ErrUnauthorized, authErr.Type)
}
