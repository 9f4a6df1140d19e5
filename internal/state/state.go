package state

import (
	"time"

	"wildcard-party-be/internal/config"
	"wildcard-party-be/internal/service"
)

type AppState struct {
	Cfg       *config.AppConfig
	RoomSvc   *service.RoomService
	StartedAt time.Time
}

func NewAppState(
	cfg *config.AppConfig,
	roomSvc *service.RoomService,
) *AppState {
	return &AppState{
		Cfg:       cfg,
		RoomSvc:   roomSvc,
		StartedAt: time.Now(),
	}
}
