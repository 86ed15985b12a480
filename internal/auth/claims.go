package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the bearer token payload: the holder's display name and 10 digit number.
type Claims struct {
	Name string `json:"name"`
	Num  string `json:"num"`
	jwt.RegisteredClaims
}
