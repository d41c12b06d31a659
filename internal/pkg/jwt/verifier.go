// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	xerrors "billing-service/internal/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// clockSkew tolerated on exp/nbf/iat
const clockSkew = 30 * time.Second

type Verifier struct {
	pub    *rsa.PublicKey
	parser *jwt.Parser
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		pub: pub,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

// VerifyAccessToken checks signature, issuer, audience, lifetime and token
// use. Every failure wraps ErrUnauthorized.
func (v *Verifier) VerifyAccessToken(tokenString string) (*Claims, error) {
	if v.pub == nil {
		return nil, fmt.Errorf("%w: verifier has no public key", xerrors.ErrUnauthorized)
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.pub, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}

	if claims.TokenUse != TokenUseAccess {
		return nil, fmt.Errorf("%w: not an access token", xerrors.ErrUnauthorized)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: token has no jti", xerrors.ErrUnauthorized)
	}

	return claims, nil
}
