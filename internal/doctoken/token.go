// Package doctoken mints and verifies the signed opaque tokens ("doc"
// handles) that authorize the document server's stateless download and
// callback requests, and wraps verification of the JWTs the document server
// signs itself.
package doctoken

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any signature or format failure. Callers
// must fail closed: an invalid token is unauthenticated, not "field missing".
var ErrInvalidToken = errors.New("invalid token")

// Actions a handle can authorize. A handle is only accepted by the endpoint
// matching its action.
const (
	ActionDownload = "download"
	ActionTrack    = "track"
	ActionConfig   = "config"
)

// Handle is the parameter set carried by a doc token.
type Handle struct {
	Action       string `json:"action"`
	ContextID    uint64 `json:"contextid"`
	ItemID       uint64 `json:"itemid"`
	TemplateKey  string `json:"tmplkey,omitempty"`
	UserID       uint64 `json:"userid,omitempty"`
	Format       string `json:"format,omitempty"`
	TemplateType string `json:"templatetype,omitempty"`
}

type handleClaims struct {
	Handle
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a single HS256 secret. Two instances
// exist in practice: one over the service-held handle secret, one over the
// document server's shared secret.
type Codec struct {
	secret []byte
}

// New returns a codec for the given secret. An empty secret yields an
// unconfigured codec: Decode and Encode still work only for the handle codec
// caller that always supplies a secret; DecodeInbound switches to open mode.
func New(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Configured reports whether a shared secret is set.
func (c *Codec) Configured() bool {
	return len(c.secret) > 0
}

// Encode signs a handle into a URL-safe compact token.
func (c *Codec) Encode(h Handle) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, handleClaims{Handle: h})
	return token.SignedString(c.secret)
}

// Decode verifies a handle token. Any signature, format or algorithm
// mismatch yields ErrInvalidToken.
func (c *Codec) Decode(tokenString string) (*Handle, error) {
	claims := &handleClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &claims.Handle, nil
}

// Sign signs an arbitrary payload (the full editor config) into a JWT the
// document server can verify with the shared secret.
func (c *Codec) Sign(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return "", err
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// DecodeInbound verifies a document-server-signed request. The inline body
// token is tried first, then the Authorization bearer header, whose payload
// lives under a "payload" claim. Either path re-checks the signature; failure
// is ErrInvalidToken.
func (c *Codec) DecodeInbound(bodyToken, authHeader string) (map[string]interface{}, error) {
	if bodyToken != "" {
		claims, err := c.parse(bodyToken)
		if err != nil {
			return nil, err
		}
		return claims, nil
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, ErrInvalidToken
	}

	claims, err := c.parse(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return nil, err
	}

	payload, ok := claims["payload"].(map[string]interface{})
	if !ok {
		return nil, ErrInvalidToken
	}
	return payload, nil
}

func (c *Codec) parse(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
