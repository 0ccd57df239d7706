package services

import (
	"context"
	"fmt"

	"sitepulse/internal/auth"
	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/domain"
)

// visibleBuildings returns the building names a user may see. A nil
// slice means unrestricted visibility (admin and view-all roles).
func visibleBuildings(ctx context.Context, s *store.Store, user domain.User) ([]string, error) {
	if auth.CanViewAllData(user.Role) {
		return nil, nil
	}
	buildings, err := s.AccessibleBuildings(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("resolve accessible buildings: %w", err)
	}
	names := make([]string, 0, len(buildings))
	for _, b := range buildings {
		names = append(names, b.Name)
	}
	if len(names) == 0 {
		// A restricted user with no grants sees nothing; an empty
		// non-nil slice keeps that distinct from unrestricted.
		names = []string{}
	}
	return names, nil
}

// canSeeBuilding reports whether a user may see a specific building.
func canSeeBuilding(ctx context.Context, s *store.Store, user domain.User, buildingName string) (bool, error) {
	names, err := visibleBuildings(ctx, s, user)
	if err != nil {
		return false, err
	}
	if names == nil {
		return true, nil
	}
	for _, name := range names {
		if name == buildingName {
			return true, nil
		}
	}
	return false, nil
}
