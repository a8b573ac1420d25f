package channel

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// inspectToken checks that a credential is present and not yet expired. The
// signature is not verified here; the server owns verification and this is
// only an early exit before dialing.
func inspectToken(token string) error {
	if token == "" {
		return ErrNoCredential
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("%w: %v", ErrNoCredential, err)
	}

	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil && exp.Before(time.Now()) {
		return fmt.Errorf("%w: token expired", ErrNoCredential)
	}
	return nil
}
