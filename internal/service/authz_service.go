package service

import (
	"context"

	"github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/middleware"
)

// AuthzService decides which authenticated callers may operate on payments.
type AuthzService struct {
	operatorRoles map[string]struct{}
}

func NewAuthzService(roles ...string) *AuthzService {
	if len(roles) == 0 {
		roles = []string{"admin"}
	}
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return &AuthzService{operatorRoles: set}
}

// VerifyOperator allows refunds and gateway settings changes.
func (s *AuthzService) VerifyOperator(ctx context.Context) error {
	if _, ok := middleware.GetUserID(ctx); !ok {
		return errors.ErrUnauthorized
	}
	role, _ := middleware.GetRole(ctx)
	if _, ok := s.operatorRoles[role]; !ok {
		return errors.ErrForbidden
	}
	return nil
}
