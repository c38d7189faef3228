package service

import (
	"context"

	"game-bid-war/server/constant"
	"game-bid-war/server/model"
)

type DashboardStore interface {
	UserDashboard(ctx context.Context, userID string) (*model.Dashboard, error)
}

type DashboardService struct {
	store DashboardStore
}

func NewDashboardService(store DashboardStore) *DashboardService {
	return &DashboardService{store: store}
}

func (d *DashboardService) Get(ctx context.Context, userID string) (*model.Dashboard, error) {
	if userID == "" {
		return nil, constant.NewError(constant.UnauthorizedError, "missing subject")
	}
	return d.store.UserDashboard(ctx, userID)
}
