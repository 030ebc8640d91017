// Package proximity computes the nearest users to a given user.
package proximity

import (
	"context"

	"social-app/internal/database"
	"social-app/internal/geo"
	"social-app/internal/models"

	"github.com/pkg/errors"
)

// Limit caps every nearest-users result.
const Limit = 5

type Service struct {
	users database.UserStore
}

func NewService(users database.UserStore) *Service {
	return &Service{users: users}
}

// NearestUsers returns up to Limit other users, nearest first. A user without
// a location gets the most recently created users with no distance.
func (s *Service) NearestUsers(ctx context.Context, userID string) ([]models.NearbyUser, error) {
	current, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "load user %s", userID)
	}
	return s.NearestTo(ctx, current)
}

// NearestTo is NearestUsers for an already loaded user.
func (s *Service) NearestTo(ctx context.Context, current *models.User) ([]models.NearbyUser, error) {
	var (
		candidates []*models.User
		err        error
	)
	if current.HasLocation() {
		candidates, err = s.users.NearestUsers(ctx, current.ID, *current.Location, Limit)
	} else {
		candidates, err = s.users.RecentUsers(ctx, current.ID, Limit)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query candidates")
	}

	result := make([]models.NearbyUser, 0, Limit)
	for _, u := range candidates {
		if u.ID == current.ID {
			continue
		}
		result = append(result, models.NearbyUser{
			UserID:    u.ID,
			AvatarURL: u.AvatarURL,
			Username:  u.Username,
			Distance:  geo.Between(current.Location, u.Location),
		})
		if len(result) == Limit {
			break
		}
	}
	return result, nil
}
