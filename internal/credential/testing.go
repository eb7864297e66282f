package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Mint signs a credential with the given claims. It exists for tests and the
// development backend; production credentials are only ever issued remotely.
func Mint(secret []byte, userID, email, subject string, issuedAt, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
