package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim is the dev-mode (AUTH_MODE=jwt) bearer token payload. The
// subject is the user's uid.
type JwtCustomClaim struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	return []byte(os.Getenv("API_SECRET"))
}

func JwtGenerate(uid, email string) (string, error) {
	secret := getJwtSecret()
	if len(secret) == 0 {
		return "", errors.New("API_SECRET is required")
	}
	lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 24
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		Email: email,
		StandardClaims: jwt.StandardClaims{
			Subject:   uid,
			ExpiresAt: time.Now().Add(time.Hour * time.Duration(lifespan)).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	return t.SignedString(secret)
}

func JwtValidate(token string) (*JwtCustomClaim, error) {
	secret := getJwtSecret()
	if len(secret) == 0 {
		return nil, errors.New("API_SECRET is required")
	}
	claims := &JwtCustomClaim{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
