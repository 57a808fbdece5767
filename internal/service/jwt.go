package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const defaultTokenTTL = 24 * time.Hour

// Tokens issues and validates HS256 tokens carrying a user and workspace id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Generate(userID, workspaceID uuid.UUID) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"user_id":      userID.String(),
		"workspace_id": workspaceID.String(),
		"exp":          now.Add(t.ttl).Unix(),
		"iat":          now.Unix(),
		"nbf":          now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ParseToken validates tokenString and returns its user and workspace ids.
func (t *Tokens) ParseToken(tokenString string) (uuid.UUID, uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}

	userID, err := claimUUID(claims, "user_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	workspaceID, err := claimUUID(claims, "workspace_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, workspaceID, nil
}

func claimUUID(claims jwt.MapClaims, key string) (uuid.UUID, error) {
	s, ok := claims[key].(string)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
