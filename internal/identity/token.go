package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var errBadClaims = errors.New("identity: token missing userId or role claim")

// FromToken reads the actor identity carried in a bearer token. The client
// does not verify the signature; the backend that issued the token does
// that on every request.
func FromToken(token string) (Actor, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Actor{}, err
	}
	return actorFromClaims(claims)
}

// VerifyToken validates the token signature with the given HMAC secret and
// returns the embedded actor. Used server-side.
func VerifyToken(token, secret string) (Actor, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("identity: unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Actor{}, err
	}
	return actorFromClaims(claims)
}

// SignToken issues a token for the actor. Only the reference server and
// tests mint tokens; real deployments get them from the session backend.
func SignToken(a Actor, secret string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": a.ID,
		"role":   string(a.Role),
	})
	return t.SignedString([]byte(secret))
}

func actorFromClaims(claims jwt.MapClaims) (Actor, error) {
	id, _ := claims["userId"].(string)
	role, _ := claims["role"].(string)
	if id == "" || role == "" {
		return Actor{}, errBadClaims
	}
	return Actor{ID: id, Role: Role(role)}, nil
}
