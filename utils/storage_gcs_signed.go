package utils

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"
)

type SignedURL struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ObjectKey string            `json:"objectKey"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// SignUpload issues a V4 signed PUT URL for a single object.
func SignUpload(ctx context.Context, objectKey, contentType string, expires time.Duration) (*SignedURL, error) {
	signed, err := signObject(ctx, objectKey, http.MethodPut, contentType, expires)
	if err != nil {
		return nil, err
	}
	signed.Headers = map[string]string{"Content-Type": contentType}
	return signed, nil
}

// SignDownload issues a V4 signed GET URL.
func SignDownload(ctx context.Context, objectKey string, expires time.Duration) (*SignedURL, error) {
	return signObject(ctx, objectKey, http.MethodGet, "", expires)
}

func signObject(ctx context.Context, objectKey, method, contentType string, expires time.Duration) (*SignedURL, error) {
	bucket, err := storageBucket()
	if err != nil {
		return nil, err
	}
	signer, err := currentURLSigner(ctx)
	if err != nil {
		return nil, err
	}
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         method,
		Expires:        time.Now().Add(expires),
		ContentType:    contentType,
		GoogleAccessID: signer.accessID,
		PrivateKey:     signer.privateKey,
		SignBytes:      signer.signBytes,
	}
	u, err := storage.SignedURL(bucket, objectKey, opts)
	if err != nil {
		return nil, err
	}
	return &SignedURL{
		URL:       u,
		Method:    method,
		ObjectKey: objectKey,
		ExpiresAt: opts.Expires,
	}, nil
}

// urlSigner is either a service-account key or an IAM signBlob callback.
type urlSigner struct {
	accessID   string
	privateKey []byte
	signBytes  func([]byte) ([]byte, error)
}

var (
	urlSignerMu     sync.Mutex
	cachedURLSigner *urlSigner
)

// currentURLSigner resolves the signing identity once per process. Failures
// are not cached so a later request can retry.
func currentURLSigner(ctx context.Context) (*urlSigner, error) {
	urlSignerMu.Lock()
	defer urlSignerMu.Unlock()
	if cachedURLSigner != nil {
		return cachedURLSigner, nil
	}
	signer, ok, err := signerFromKeyJSON(os.Getenv("GCS_CREDENTIALS_JSON"))
	if err != nil {
		return nil, err
	}
	if !ok {
		// The IAM client outlives this request.
		if signer, err = iamURLSigner(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
	}
	cachedURLSigner = signer
	return signer, nil
}

// signerFromKeyJSON reads a service-account key. ok is false when raw is empty.
func signerFromKeyJSON(raw string) (*urlSigner, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false, nil
	}
	var key serviceAccountJSON
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, false, fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, false, errors.New("GCS_CREDENTIALS_JSON missing client_email or private_key")
	}
	return &urlSigner{
		accessID:   key.ClientEmail,
		privateKey: []byte(strings.ReplaceAll(key.PrivateKey, "\\n", "\n")),
	}, true, nil
}

// iamURLSigner signs through the IAM Credentials API as the runtime service
// account (Cloud Run has no private key on disk).
func iamURLSigner(ctx context.Context) (*urlSigner, error) {
	email := strings.TrimSpace(os.Getenv("GCS_SIGNER_EMAIL"))
	if email == "" && metadata.OnGCE() {
		defaultEmail, err := metadata.Email("default")
		if err != nil {
			return nil, fmt.Errorf("failed to get default service account email: %w", err)
		}
		email = defaultEmail
	}
	if email == "" {
		return nil, errors.New("GCS_SIGNER_EMAIL is required when no private key is provided")
	}

	creds, err := google.FindDefaultCredentials(ctx, iamcredentials.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to load ADC credentials: %w", err)
	}
	svc, err := iamcredentials.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create iamcredentials service: %w", err)
	}

	resource := "projects/-/serviceAccounts/" + email
	return &urlSigner{
		accessID: email,
		signBytes: func(data []byte) ([]byte, error) {
			resp, err := svc.Projects.ServiceAccounts.SignBlob(resource, &iamcredentials.SignBlobRequest{
				Payload: base64.StdEncoding.EncodeToString(data),
			}).Do()
			if err != nil {
				return nil, err
			}
			return base64.StdEncoding.DecodeString(resp.SignedBlob)
		},
	}, nil
}
