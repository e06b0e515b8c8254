package main

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/schoolspace/platform/go/auth"
	"github.com/zenGate-Global/schoolspace/platform/go/gcp"
)

// buildAuthMiddleware constructs the JWT middleware for the configured provider.
// School claims are only parsed here; the tenant binder verifies them against
// the directory.
func buildAuthMiddleware(ctx context.Context, cfg config, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	var verify platformauth.VerifyFunc
	switch cfg.AuthProvider {
	case "firebase":
		fbAuth, err := gcp.InitFirebaseAuth(ctx, cfg.FirebaseCreds)
		if err != nil {
			return nil, err
		}
		verify = platformauth.FirebaseTokenVerifier(fbAuth)
	case "hmac":
		if cfg.AuthHMACSecret == "" {
			return nil, errors.New("AUTH_HMAC_SECRET required when AUTH_PROVIDER=hmac")
		}
		verify = platformauth.HMACTokenVerifier([]byte(cfg.AuthHMACSecret))
	case "dev":
		if !cfg.developmentLike() {
			return nil, errors.New("AUTH_PROVIDER=dev is only allowed in development or local environments")
		}
		logger.Warn("using dev auth middleware; do not use in production")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		return nil, errors.New("unsupported auth provider " + cfg.AuthProvider)
	}

	return platformauth.JWT(verify, platformauth.DefaultCredentialExtractor), nil
}
