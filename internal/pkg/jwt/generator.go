// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"strconv"
	"time"

	xerrors "billing-service/internal/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
)

// Generator signs access tokens. The API only verifies; tokens are minted by
// billingctl for operators and by tests.
type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string
	ttl      time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		ttl:      ttl,
	}
}

// GenerateAccessToken returns the signed token and its jti. The jti is the
// handle used to revoke the token.
func (g *Generator) GenerateAccessToken(identityID int64, roles []string) (string, string, error) {
	if g.priv == nil {
		return "", "", fmt.Errorf("jwt generator has nil private key")
	}
	if identityID <= 0 {
		return "", "", fmt.Errorf("%w: identity id must be positive", xerrors.ErrInvalidInput)
	}
	if g.ttl <= 0 {
		return "", "", fmt.Errorf("%w: token ttl must be positive", xerrors.ErrInvalidInput)
	}

	now := time.Now().Truncate(time.Second)
	jti := ulid.Make().String()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		IdentityID: identityID,
		Roles:      lo.Uniq(roles),
		TokenUse:   TokenUseAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   strconv.FormatInt(identityID, 10),
			Audience:  jwt.ClaimStrings{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	})
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, jti, nil
}
