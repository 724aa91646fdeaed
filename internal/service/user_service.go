package service

import (
	"context"

	"feedsync/internal/models"
	"feedsync/internal/repository"
)

// maxBatchIDs bounds GET /api/users?ids=.
const maxBatchIDs = 100

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetAuthor(ctx context.Context, id models.ID) (*models.Author, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	author := user.Author()
	return &author, nil
}

// GetAuthors returns the summaries of the users found among ids, in the
// order of ids. Unknown ids are skipped.
func (s *UserService) GetAuthors(ctx context.Context, ids []models.ID) ([]models.Author, error) {
	if len(ids) == 0 {
		return []models.Author{}, nil
	}
	if len(ids) > maxBatchIDs {
		return nil, models.NewValidationError("Too many ids (max 100)")
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[models.ID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]models.Author, 0, len(users))
	seen := make(map[models.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := byID[id]; ok {
			out = append(out, u.Author())
		}
	}
	return out, nil
}
