package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/finxan/finxan-backend/pkg/config"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"google.golang.org/api/option"
)

// Identity is the verified caller handed to the HTTP layer.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// TokenVerifier is consumed by the auth middleware.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

type idTokenClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Verifier validates Firebase ID tokens with the Admin SDK auth client.
type Verifier struct {
	client idTokenClient
}

// NewVerifier builds a Firebase app for cfg.ProjectID. Credentials follow the GCP config; extra
// client options are appended last.
func NewVerifier(ctx context.Context, cfg config.FirebaseConfig, gcp config.GCPConfig, opts ...option.ClientOption) (*Verifier, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	clientOpts = append(clientOpts, opts...)

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &Verifier{client: client}, nil
}

// Verify checks the token and returns the caller. Rejected tokens map to Unauthorized; failures
// reaching Google's key endpoint map to Dependency.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing id token")
	}

	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		switch {
		case fbauth.IsIDTokenExpired(err):
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "id token expired")
		case fbauth.IsCertificateFetchFailed(err):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch firebase certs")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid id token")
		}
	}

	uid := strings.TrimSpace(token.UID)
	if uid == "" {
		uid = strings.TrimSpace(token.Subject)
	}
	if uid == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "id token has empty subject")
	}

	return &Identity{
		UID:   uid,
		Email: stringClaim(token.Claims, "email"),
		Name:  stringClaim(token.Claims, "name"),
	}, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
