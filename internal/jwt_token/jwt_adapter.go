package jwttoken

import (
	"kudos/internal/platform/middleware"
	id "kudos/pkg/domain"
	dErrors "kudos/pkg/domain-errors"
)

// JWTServiceAdapter bridges the JWT service to the middleware's
// TokenValidator interface, converting string claims into typed IDs.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	callerID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &middleware.TokenClaims{CallerID: callerID}, nil
}
