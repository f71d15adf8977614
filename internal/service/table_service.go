package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
)

var ErrTableNotFound = errors.New("mesa no encontrada")

type TableService interface {
	List(ctx context.Context) ([]dto.TableResponse, error)
	UpdateStatus(ctx context.Context, tableID uuid.UUID, status string) (*dto.TableResponse, error)
	// CurrentOrder returns the pending sale seated at the table, nil when
	// the table is free.
	CurrentOrder(ctx context.Context, tableID uuid.UUID) (*dto.SaleResponse, error)
}

type tableService struct {
	tables repository.TableRepository
	bus    events.Broadcaster
}

func NewTableService(tables repository.TableRepository, bus events.Broadcaster) TableService {
	return &tableService{tables: tables, bus: bus}
}

func (s *tableService) List(ctx context.Context) ([]dto.TableResponse, error) {
	tables, err := s.tables.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TableResponse, 0, len(tables))
	for _, t := range tables {
		out = append(out, dto.TableResponse{ID: t.ID.String(), Name: t.Name, Status: t.Status})
	}
	return out, nil
}

func (s *tableService) UpdateStatus(ctx context.Context, tableID uuid.UUID, status string) (*dto.TableResponse, error) {
	table, err := s.tables.FindByID(ctx, tableID)
	if err != nil {
		return nil, ErrTableNotFound
	}
	if err := s.tables.UpdateStatus(ctx, tableID, status); err != nil {
		return nil, err
	}
	table.Status = status

	s.bus.Emit(ctx, events.TableStatusChange, map[string]interface{}{
		"table_id": tableID.String(),
		"status":   status,
	})
	return &dto.TableResponse{ID: table.ID.String(), Name: table.Name, Status: table.Status}, nil
}

func (s *tableService) CurrentOrder(ctx context.Context, tableID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.tables.CurrentOrder(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, nil
	}
	return saleToResponse(sale), nil
}
