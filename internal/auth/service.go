package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/offline-pay/offline_pay/internal/identity"
)

// ErrInvalidToken covers malformed, forged and wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies HS256 bearer tokens carrying {name, num, iat}.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer builds an issuer for secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for acct. Tokens do not expire; the client only ever
// decodes them optimistically and logout simply forgets the token.
func (i *Issuer) Issue(acct identity.Account) (string, error) {
	claims := Claims{
		Name: acct.Name,
		Num:  acct.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  acct.ID,
			IssuedAt: jwt.NewNumericDate(i.now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and returns the claims.
func (i *Issuer) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Num == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
