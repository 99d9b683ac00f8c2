package auth

import (
	"context"
	"errors"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/finxan/finxan-backend/pkg/config"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokenClient struct {
	token *fbauth.Token
	err   error
	calls []string
}

func (s *stubTokenClient) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	s.calls = append(s.calls, idToken)
	return s.token, s.err
}

func TestVerifyReturnsIdentity(t *testing.T) {
	client := &stubTokenClient{token: &fbauth.Token{
		UID:     "uid-123",
		Subject: "uid-123",
		Claims:  map[string]interface{}{"email": "owner@finxan.test", "name": "Store Owner", "email_verified": true},
	}}
	v := &Verifier{client: client}

	id, err := v.Verify(context.Background(), "  signed-token ")
	require.NoError(t, err)
	assert.Equal(t, &Identity{UID: "uid-123", Email: "owner@finxan.test", Name: "Store Owner"}, id)
	assert.Equal(t, []string{"signed-token"}, client.calls)
}

func TestVerifyFallsBackToSubject(t *testing.T) {
	v := &Verifier{client: &stubTokenClient{token: &fbauth.Token{Subject: "sub-9", Claims: map[string]interface{}{"email": 42}}}}

	id, err := v.Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "sub-9", id.UID)
	assert.Empty(t, id.Email, "non-string claims are ignored")
}

func TestVerifyRejects(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		client *stubTokenClient
	}{
		{"empty token", "   ", &stubTokenClient{}},
		{"sdk rejection", "forged", &stubTokenClient{err: errors.New("failed to verify token signature")}},
		{"empty subject", "token", &stubTokenClient{token: &fbauth.Token{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &Verifier{client: tc.client}
			_, err := v.Verify(context.Background(), tc.token)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)
		})
	}
}

func TestVerifySkipsClientForBlankToken(t *testing.T) {
	client := &stubTokenClient{}
	v := &Verifier{client: client}

	_, err := v.Verify(context.Background(), "")
	require.Error(t, err)
	assert.Empty(t, client.calls)
}

func TestNewVerifierRequiresProject(t *testing.T) {
	_, err := NewVerifier(context.Background(), config.FirebaseConfig{}, config.GCPConfig{})
	require.Error(t, err)
}
