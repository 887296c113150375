package service

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

// UserService is the chip ledger.
type UserService struct {
	userStore *store.UserStore
}

func NewUserService(userStore *store.UserStore) *UserService {
	return &UserService{userStore: userStore}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.userStore.GetByID(ctx, id)
}

func (s *UserService) Upsert(ctx context.Context, id, name string, chips int64) error {
	if err := s.userStore.Upsert(ctx, id, name, chips); err != nil {
		log.WithField("user_id", id).Errorf("[UserService.Upsert] %s", err)
		return err
	}
	return nil
}

func (s *UserService) SetChips(ctx context.Context, id string, chips int64) error {
	return s.userStore.SetChips(ctx, id, chips)
}

func (s *UserService) AdjustChips(ctx context.Context, id string, delta int64) (int64, error) {
	chips, err := s.userStore.AdjustChips(ctx, id, delta)
	if err != nil {
		log.WithFields(log.Fields{"user_id": id, "delta": delta}).Warnf("[UserService.AdjustChips] %s", err)
		return 0, err
	}
	return chips, nil
}
