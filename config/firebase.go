package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var (
	firebaseAuth   *auth.Client
	firebaseAuthMu sync.Mutex
)

// AuthMode is "firebase" (default) or "jwt" for local development.
func AuthMode() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("AUTH_MODE")), "jwt") {
		return "jwt"
	}
	return "firebase"
}

// GetFirebaseAuth lazily builds the Firebase Auth client. Credentials come from
// FIREBASE_CREDENTIALS_JSON or Application Default Credentials.
func GetFirebaseAuth(ctx context.Context) (*auth.Client, error) {
	firebaseAuthMu.Lock()
	defer firebaseAuthMu.Unlock()
	if firebaseAuth != nil {
		return firebaseAuth, nil
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	var fbConfig *firebase.Config
	if projectID := os.Getenv("FIREBASE_PROJECT_ID"); projectID != "" {
		fbConfig = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("firebase auth client is nil")
	}
	firebaseAuth = client
	return firebaseAuth, nil
}
