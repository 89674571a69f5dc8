package service

import (
	"context"

	"realtime_go/internal/domain"
	"realtime_go/internal/presence"
)

// UserService exposes the participant directory, with presence resolved from
// the registry rather than a persisted flag.
type UserService struct {
	users    domain.UserRepository
	registry *presence.Registry
}

func NewUserService(users domain.UserRepository, registry *presence.Registry) *UserService {
	return &UserService{users: users, registry: registry}
}

// UserInfo is the directory DTO: a user plus live presence.
type UserInfo struct {
	*domain.User
	IsOnline bool `json:"is_online"`
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*UserInfo, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &UserInfo{User: u, IsOnline: s.registry.IsOnline(u.ID)}, nil
}

// ListOnline resolves the registry's live user set against the directory.
// Users deleted since they connected are skipped.
func (s *UserService) ListOnline(ctx context.Context) ([]*UserInfo, error) {
	ids := s.registry.OnlineUserIDs()
	res := make([]*UserInfo, 0, len(ids))
	for _, id := range ids {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			continue
		}
		res = append(res, &UserInfo{User: u, IsOnline: true})
	}
	return res, nil
}

func (s *UserService) ListActive(ctx context.Context, offset, limit int) ([]*UserInfo, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	users, err := s.users.ListActive(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	res := make([]*UserInfo, 0, len(users))
	for _, u := range users {
		res = append(res, &UserInfo{User: u, IsOnline: s.registry.IsOnline(u.ID)})
	}
	return res, nil
}
