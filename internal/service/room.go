package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"wildcard-party-be/internal/service/dto"
	"wildcard-party-be/internal/service/game"
	"wildcard-party-be/internal/service/registry"

	"go.uber.org/zap"
)

const DEFAULT_SWEEP_INTERVAL = 10 * time.Second

type RoomService struct {
	reg      *registry.Registry
	coord    *game.Coordinator
	presence *game.PresenceTracker

	sweepInterval time.Duration
	cleanUpDone   chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup
}

func NewRoomService(reg *registry.Registry, coord *game.Coordinator, sweepInterval time.Duration) *RoomService {
	if sweepInterval <= 0 {
		sweepInterval = DEFAULT_SWEEP_INTERVAL
	}

	rs := &RoomService{
		reg:           reg,
		coord:         coord,
		presence:      coord.Presence(),
		sweepInterval: sweepInterval,
		cleanUpDone:   make(chan struct{}),
	}

	// 定期扫描所有房间，标记超时玩家离线
	rs.wg.Add(1)
	go rs.startCleanupLoop()

	return rs
}

func (rs *RoomService) startCleanupLoop() {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.cleanUpDone:
			return

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), rs.sweepInterval)
			rs.sweep(ctx, time.Now())
			cancel()
		}
	}
}

func (rs *RoomService) sweep(ctx context.Context, now time.Time) {
	codes, err := rs.reg.Codes(ctx)
	if err != nil {
		zap.L().Warn("扫描时列出房间失败", zap.Error(err))
		return
	}

	for _, code := range codes {
		room, err := rs.reg.ReadRoom(ctx, code)
		if err != nil {
			if !errors.Is(err, game.ErrRoomNotFound) {
				zap.L().Warn("扫描时读取房间失败", zap.String("room_code", code), zap.Error(err))
			}
			continue
		}

		if isOrphaned(room, now, rs.sweepInterval) {
			if err := rs.reg.DestroyRoom(ctx, code); err != nil {
				zap.L().Warn("销毁无人房间失败", zap.String("room_code", code), zap.Error(err))
				continue
			}

			zap.L().Info("已销毁无人房间", zap.String("room_code", code))
			continue
		}

		if err := rs.presence.Sweep(ctx, code); err != nil && !isRoomGone(err) {
			zap.L().Warn("在线状态扫描失败", zap.String("room_code", code), zap.Error(err))
		}
	}
}

func (rs *RoomService) Close() {
	rs.closeOnce.Do(func() {
		close(rs.cleanUpDone)
	})
	rs.wg.Wait()
}

func (rs *RoomService) CreateRoom(ctx context.Context, req dto.CreateRoomRequest) (dto.CreateRoomResponse, error) {
	player, room, err := rs.coord.CreateRoom(ctx, req.DisplayName)
	if err != nil {
		return dto.CreateRoomResponse{}, err
	}

	return dto.CreateRoomResponse{
		RoomCode: room.Code,
		Player:   dto.NewPlayer(player, room),
		Room:     game.NewView(room, player.ID),
	}, nil
}

func (rs *RoomService) JoinRoom(ctx context.Context, code string, req dto.JoinRoomRequest) (dto.JoinRoomResponse, error) {
	player, room, err := rs.coord.JoinRoom(ctx, code, req.DisplayName, req.PlayerID)
	if err != nil {
		return dto.JoinRoomResponse{}, err
	}

	return dto.JoinRoomResponse{
		RoomCode: room.Code,
		Player:   dto.NewPlayer(player, room),
		Room:     game.NewView(room, player.ID),
	}, nil
}

// GetRoom returns the room as viewerID sees it; an unknown viewer gets the
// anonymous view.
func (rs *RoomService) GetRoom(ctx context.Context, code, viewerID string) (dto.GetRoomResponse, error) {
	room, err := rs.reg.OpenRoom(ctx, code)
	if err != nil {
		return dto.GetRoomResponse{}, err
	}

	return dto.GetRoomResponse{Room: game.NewView(room, viewerID)}, nil
}

// ResolveRoom checks that code names an existing room and returns it in
// canonical form.
func (rs *RoomService) ResolveRoom(ctx context.Context, code string) (string, error) {
	room, err := rs.reg.OpenRoom(ctx, code)
	if err != nil {
		return "", err
	}
	return room.Code, nil
}

func (rs *RoomService) Heartbeat(ctx context.Context, code, playerID string) error {
	return rs.presence.RegisterHeartbeat(ctx, code, playerID)
}

func (rs *RoomService) LivenessLost(ctx context.Context, code, playerID string) error {
	return rs.presence.OnLivenessLost(ctx, code, playerID)
}

// HandleRequest runs one client command on behalf of playerID. The returned
// response, when not nil, is meant for the caller only; everybody learns about
// the state change through their session.
func (rs *RoomService) HandleRequest(
	ctx context.Context,
	code string,
	playerID string,
	wrapper game.RequestWrapper,
) (*game.ResponseWrapper, error) {
	switch wrapper.ReqType {
	case game.REQ_LEAVE:
		destroyed, err := rs.coord.Leave(ctx, code, playerID)
		if err != nil {
			return nil, err
		}
		resp := game.WrapResponse(game.RESP_LEFT, game.LeftResponse{
			RoomCode:      code,
			RoomDestroyed: destroyed,
		})
		return &resp, nil

	case game.REQ_HEARTBEAT:
		return nil, rs.presence.RegisterHeartbeat(ctx, code, playerID)

	case game.REQ_START_GAME:
		_, err := rs.coord.StartGame(ctx, code, playerID)
		return nil, err

	case game.REQ_REENABLE_ACTIONS:
		_, err := rs.coord.ReenableAllActions(ctx, code, playerID)
		return nil, err

	case game.REQ_RETRY_DRAW:
		_, err := rs.coord.RetryDraw(ctx, code, playerID)
		return nil, err
	}

	if req := game.TryUnwrapToggleActionRequest(wrapper); req != nil {
		_, err := rs.coord.ToggleAction(ctx, code, playerID, req.Action, req.Enabled)
		return nil, err
	}

	if req := game.TryUnwrapSetAllActionsRequest(wrapper); req != nil {
		_, err := rs.coord.SetAllActions(ctx, code, playerID, req.Enabled)
		return nil, err
	}

	if req := game.TryUnwrapAddCustomActionRequest(wrapper); req != nil {
		_, err := rs.coord.AddCustomAction(ctx, code, playerID, req.Text)
		return nil, err
	}

	if req := game.TryUnwrapSetSettingsRequest(wrapper); req != nil {
		_, err := rs.coord.SetSettings(ctx, code, playerID, req.Settings)
		return nil, err
	}

	if req := game.TryUnwrapMarkExecutedRequest(wrapper); req != nil {
		_, err := rs.coord.MarkExecuted(ctx, code, playerID, req.Executed)
		return nil, err
	}

	if req := game.TryUnwrapRemovePlayerRequest(wrapper); req != nil {
		_, err := rs.coord.RemovePlayer(ctx, code, playerID, req.PlayerID)
		return nil, err
	}

	zap.L().Warn(
		"未知的请求类型",
		zap.String("room_code", code),
		zap.String("player_id", playerID),
		zap.String("request_type", wrapper.ReqType),
	)

	return nil, ErrInvalidRequest
}
