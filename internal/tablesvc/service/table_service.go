package service

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

type TableService struct {
	tableStore *store.TableStore
}

func NewTableService(tableStore *store.TableStore) *TableService {
	return &TableService{tableStore: tableStore}
}

// Save persists the table and its players. On success t.Version is moved to
// the stored version so the engine can keep saving the same value.
func (s *TableService) Save(ctx context.Context, t *engine.Table) (int64, error) {
	version, err := s.tableStore.Save(ctx, t)
	if err != nil {
		fields := log.Fields{}
		if t != nil {
			fields = log.Fields{"table_id": t.ID, "version": t.Version, "players": len(t.Players)}
		}
		log.WithFields(fields).Errorf("[TableService.Save] %s", err)
		return 0, err
	}
	t.Version = version
	return version, nil
}

func (s *TableService) GetTable(ctx context.Context, id string) (*models.Table, error) {
	return s.tableStore.GetByID(ctx, id)
}

func (s *TableService) LoadAll(ctx context.Context) ([]models.Table, error) {
	tables, err := s.tableStore.LoadAll(ctx)
	if err != nil {
		log.Errorf("[TableService.LoadAll] %s", err)
		return nil, err
	}
	return tables, nil
}

func (s *TableService) DeleteTable(ctx context.Context, id string) error {
	if err := s.tableStore.Delete(ctx, id); err != nil {
		return err
	}
	log.WithField("table_id", id).Info("table deleted")
	return nil
}
