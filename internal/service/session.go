package service

import (
	"context"
	"errors"

	"wildcard-party-be/internal/service/game"

	"go.uber.org/zap"
)

const SESSION_BUFFER = 32

// Session is the per-connection consumer of one room. It turns every room
// change into a RoomState response for its player and, while that player is
// host, drives the rotation of the round.
type Session struct {
	svc      *RoomService
	code     string
	playerID string

	respCh chan game.ResponseWrapper
	done   chan struct{}
}

func (rs *RoomService) NewSession(ctx context.Context, code, playerID string) (*Session, error) {
	room, err := rs.reg.OpenRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if !room.IsActive(playerID) {
		return nil, game.ErrPlayerNotFound
	}

	return &Session{
		svc:      rs,
		code:     room.Code,
		playerID: playerID,
		respCh:   make(chan game.ResponseWrapper, SESSION_BUFFER),
		done:     make(chan struct{}),
	}, nil
}

func (s *Session) RoomCode() string {
	return s.code
}

func (s *Session) PlayerID() string {
	return s.playerID
}

// Responses is never closed; watch Done to know when Run has returned.
func (s *Session) Responses() <-chan game.ResponseWrapper {
	return s.respCh
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send queues resp for the client without blocking. When the buffer is full
// the oldest queued response is dropped; room states are superseded by the
// next one anyway.
func (s *Session) Send(resp game.ResponseWrapper) {
	for {
		select {
		case s.respCh <- resp:
			return
		default:
		}

		select {
		case old := <-s.respCh:
			zap.L().Debug(
				"会话缓冲区已满，丢弃最早的响应",
				zap.String("room_code", s.code),
				zap.String("player_id", s.playerID),
				zap.String("response_type", old.RespType),
			)
		default:
		}
	}
}

var errSessionOver = errors.New("session over")

// Run consumes room snapshots until ctx is cancelled, the room is destroyed or
// the player is no longer Active.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	snapshots, cancel := s.svc.reg.Subscribe(s.code)
	defer cancel()

	room, err := s.svc.reg.ReadRoom(ctx, s.code)
	if err != nil {
		s.closed(err)
		return
	}

	if err := s.onSnapshot(ctx, room); err != nil {
		return
	}
	last := room.Version

	for {
		select {
		case <-ctx.Done():
			return

		case room, ok := <-snapshots:
			if !ok {
				s.closed(game.ErrRoomNotFound)
				return
			}

			// 快照可能被合并或晚到，只处理更新的版本
			if room.Version <= last {
				continue
			}
			last = room.Version

			if err := s.onSnapshot(ctx, room); err != nil {
				return
			}
		}
	}
}

func (s *Session) onSnapshot(ctx context.Context, room game.Room) error {
	if !room.IsActive(s.playerID) {
		s.Send(game.WrapResponse(game.RESP_LEFT, game.LeftResponse{RoomCode: s.code}))
		return errSessionOver
	}

	s.Send(game.WrapResponse(game.RESP_ROOM_STATE, game.NewView(room, s.playerID)))

	if !room.HasActiveHost() {
		// the claim publishes a new snapshot if it wins
		if _, err := s.svc.coord.EnsureHost(ctx, s.code, s.playerID); err != nil {
			s.logErr("认领房主失败", err)
		}
		return nil
	}

	if room.IsHost(s.playerID) && game.IsRoundComplete(room) && !room.OutOfActions {
		_, err := s.svc.coord.AdvanceIfComplete(ctx, s.code, s.playerID)
		if errors.Is(err, game.ErrOutOfActions) {
			s.Send(game.WrapErrResponse(err.Error()))
		} else if err != nil {
			s.logErr("推进回合失败", err)
		}
	}

	return nil
}

func (s *Session) closed(err error) {
	if !errors.Is(err, game.ErrRoomNotFound) {
		s.logErr("读取房间失败", err)
	}

	s.Send(game.WrapResponse(game.RESP_ROOM_CLOSED, game.RoomClosedResponse{RoomCode: s.code}))
}

func (s *Session) logErr(msg string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	zap.L().Warn(
		msg,
		zap.String("room_code", s.code),
		zap.String("player_id", s.playerID),
		zap.Error(err),
	)
}
