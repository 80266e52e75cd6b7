package store

import (
	"context"
	"fmt"

	"github.com/chachabrian/propnest-backend/internal/models"
)

// FixturePassword is the password of every seeded account.
const FixturePassword = "password123"

func ptr(f float64) *float64 { return &f }

// Seed fills a store with the canned accounts and listings served in
// fixture mode.
func Seed(ctx context.Context, s *Store) error {
	users := []*models.User{
		{Name: "Riya Sharma", Email: "owner@propnest.test", Role: models.UserRoleOwner},
		{Name: "Kabir Mehta", Email: "owner2@propnest.test", Role: models.UserRoleOwner},
		{Name: "Ananya Rao", Email: "seeker@propnest.test", Role: models.UserRoleSeeker},
	}
	for _, u := range users {
		if err := u.SetPassword(FixturePassword); err != nil {
			return err
		}
		if err := s.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}

	properties := []*models.Property{
		{
			Title:       "2BHK near Indiranagar metro",
			Description: "Furnished flat, 5 minutes from the metro station.",
			Price:       2500,
			Location:    "Indiranagar, Bengaluru",
			Type:        models.PropertyTypeFlat,
			OwnerID:     users[0].ID,
			Latitude:    ptr(12.9784),
			Longitude:   ptr(77.6408),
		},
		{
			Title:       "Independent house with garden",
			Description: "Three bedrooms, parking for two cars.",
			Price:       6000,
			Location:    "Koramangala, Bengaluru",
			Type:        models.PropertyTypeHouse,
			OwnerID:     users[0].ID,
			Latitude:    ptr(12.9352),
			Longitude:   ptr(77.6245),
		},
		{
			Title:       "Girls PG with meals",
			Description: "Twin sharing, three meals a day, Wi-Fi included.",
			Price:       900,
			Location:    "Andheri West, Mumbai",
			Type:        models.PropertyTypePG,
			OwnerID:     users[1].ID,
			Latitude:    ptr(19.1364),
			Longitude:   ptr(72.8296),
		},
	}
	for _, p := range properties {
		if err := s.CreateProperty(ctx, p); err != nil {
			return fmt.Errorf("seed property %q: %w", p.Title, err)
		}
	}
	return nil
}
