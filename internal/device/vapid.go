package device

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/naveenspark/beacon/pkg/push"
)

// maxVAPIDLifetime bounds how far in the future a VAPID token may expire (RFC 8292).
const maxVAPIDLifetime = 24 * time.Hour

// authError carries the HTTP status a rejected push request answers with.
type authError struct {
	status int
	msg    string
}

func (e *authError) Error() string { return e.msg }

func unauthorized(format string, args ...any) error {
	return &authError{status: http.StatusUnauthorized, msg: fmt.Sprintf(format, args...)}
}

// vapidCredentials extracts the token and public key from a push request.
// Both the current "vapid t=,k=" scheme and the older "WebPush" scheme
// with a Crypto-Key header are accepted.
func vapidCredentials(r *http.Request) (token, key string, err error) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", "", unauthorized("missing authorization")
	}
	scheme, rest, _ := strings.Cut(authz, " ")
	switch strings.ToLower(scheme) {
	case "vapid":
		for _, part := range strings.Split(rest, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				continue
			}
			switch k {
			case "t":
				token = v
			case "k":
				key = v
			}
		}
	case "webpush":
		token = strings.TrimSpace(rest)
		for _, part := range strings.FieldsFunc(r.Header.Get("Crypto-Key"), func(c rune) bool { return c == ';' || c == ',' }) {
			if v, ok := strings.CutPrefix(strings.TrimSpace(part), "p256ecdsa="); ok {
				key = v
			}
		}
	default:
		return "", "", unauthorized("unsupported authorization scheme %q", scheme)
	}
	if token == "" || key == "" {
		return "", "", unauthorized("incomplete vapid credentials")
	}
	return token, key, nil
}

// verifyVAPID checks that r is signed by the server key the channel was
// opened with and addressed to audience.
func verifyVAPID(r *http.Request, audience string, serverKey []byte, now time.Time) error {
	token, key, err := vapidCredentials(r)
	if err != nil {
		return err
	}
	keyBytes, err := push.DecodeServerKey(key)
	if err != nil {
		return unauthorized("vapid key: %v", err)
	}
	if !bytes.Equal(keyBytes, serverKey) {
		return &authError{status: http.StatusForbidden, msg: "vapid key does not match subscription"}
	}
	pub, err := ecdsaPublicKey(keyBytes)
	if err != nil {
		return unauthorized("vapid key: %v", err)
	}

	claims := jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return unauthorized("vapid token: %v", err)
	}
	if claims.ExpiresAt.Sub(now) > maxVAPIDLifetime {
		return unauthorized("vapid token expires too far in the future")
	}
	return nil
}

// ecdsaPublicKey converts an uncompressed P-256 point into a verification key.
func ecdsaPublicKey(b []byte) (*ecdsa.PublicKey, error) {
	if _, err := ecdh.P256().NewPublicKey(b); err != nil {
		return nil, errors.New("not an uncompressed P-256 point")
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(b[1:33]),
		Y:     new(big.Int).SetBytes(b[33:65]),
	}, nil
}
