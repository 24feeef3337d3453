// README: Firebase ID-token verification. Guests signed in through Firebase
// anonymous auth are reported as anonymous so they keep the guest export allowance.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

const anonymousProvider = "anonymous"

// FirebaseToken is the verified caller.
type FirebaseToken struct {
	UID       string
	Email     string
	Anonymous bool
	Claims    map[string]interface{}
}

// TokenVerifier verifies a raw Firebase ID token.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier builds a verifier for projectID. credentialsFile is a
// service-account JSON path; when empty, application-default credentials are used.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return tokenFrom(token), nil
}

func tokenFrom(t *auth.Token) *FirebaseToken {
	email, _ := t.Claims["email"].(string)
	return &FirebaseToken{
		UID:       t.UID,
		Email:     email,
		Anonymous: t.Firebase.SignInProvider == anonymousProvider,
		Claims:    t.Claims,
	}
}
