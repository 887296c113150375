package service

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

type HandService struct {
	handStore *store.HandStore
}

func NewHandService(handStore *store.HandStore) *HandService {
	return &HandService{handStore: handStore}
}

func (s *HandService) StartHand(ctx context.Context, t *engine.Table) (int64, error) {
	id, err := s.handStore.StartHand(ctx, t)
	if err != nil {
		fields := log.Fields{}
		if t != nil {
			fields = log.Fields{"table_id": t.ID, "hand_no": t.HandNo}
		}
		log.WithFields(fields).Errorf("[HandService.StartHand] %s", err)
		return 0, err
	}
	return id, nil
}

func (s *HandService) RecordAction(ctx context.Context, handID int64, evt engine.HandEvent) (int64, error) {
	id, err := s.handStore.RecordAction(ctx, handID, evt)
	if err != nil {
		log.WithFields(log.Fields{"hand_id": handID, "action": evt.Action}).Errorf("[HandService.RecordAction] %s", err)
		return 0, err
	}
	return id, nil
}

func (s *HandService) FinishHand(ctx context.Context, handID int64, board []string, pots, winners json.RawMessage) error {
	if err := s.handStore.FinishHand(ctx, handID, board, pots, winners); err != nil {
		log.WithField("hand_id", handID).Errorf("[HandService.FinishHand] %s", err)
		return err
	}
	return nil
}

func (s *HandService) GetHand(ctx context.Context, handID int64) (*models.Hand, error) {
	return s.handStore.GetHand(ctx, handID)
}

func (s *HandService) ListHands(ctx context.Context, tableID string, limit, offset int) ([]models.Hand, error) {
	return s.handStore.ListHandsByTable(ctx, tableID, limit, offset)
}

func (s *HandService) ListActions(ctx context.Context, handID int64) ([]models.Action, error) {
	return s.handStore.ListActions(ctx, handID)
}
