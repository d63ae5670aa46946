package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
)

type roomRepo interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Room, error)
	List(ctx context.Context, tenantID string, filter models.RoomFilter) ([]models.Room, int, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
}

// RoomService manages the housing stock.
type RoomService struct {
	rooms     roomRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService wires room management dependencies.
func NewRoomService(rooms roomRepo, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{rooms: rooms, validator: validate, logger: logger}
}

// GetRoom returns one room.
func (s *RoomService) GetRoom(ctx context.Context, tenantID, id string) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, err
	}
	return room, nil
}

// ListRooms returns rooms matching the filter.
func (s *RoomService) ListRooms(ctx context.Context, tenantID string, filter models.RoomFilter) ([]models.Room, int, error) {
	return s.rooms.List(ctx, tenantID, filter)
}

// CreateRoom registers a new room, AVAILABLE and empty.
func (s *RoomService) CreateRoom(ctx context.Context, tenantID string, req dto.CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room := &models.Room{
		TenantID:          tenantID,
		FacilityName:      req.FacilityName,
		Number:            req.Number,
		RoomType:          req.RoomType,
		Capacity:          req.Capacity,
		GenderRestriction: models.GenderRestriction(req.GenderRestriction),
		Status:            models.RoomStatusAvailable,
		Active:            true,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	s.logger.Info("room created", zap.String("room_id", room.ID), zap.String("facility", room.FacilityName))
	return room, nil
}

// UpdateRoom mutates room attributes. Capacity may not drop below the current
// occupancy.
func (s *RoomService) UpdateRoom(ctx context.Context, tenantID, id string, req dto.UpdateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room, err := s.GetRoom(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Capacity < room.Occupants+room.Reserved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "capacity cannot drop below current occupancy")
	}
	room.FacilityName = req.FacilityName
	room.Number = req.Number
	room.RoomType = req.RoomType
	room.Capacity = req.Capacity
	room.GenderRestriction = models.GenderRestriction(req.GenderRestriction)
	room.Status = models.RoomStatus(req.Status)
	room.Active = req.Active
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}
