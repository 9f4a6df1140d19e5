package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wildcard-party-be/internal/service"
	"wildcard-party-be/internal/service/game"
	"wildcard-party-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// JoinGame attaches a connection to an Active player of a room. The player is
// resolved beforehand through the HTTP join endpoint; the socket only carries
// commands one way and room states the other.
func JoinGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		svc := appState.RoomSvc
		pingInterval := appState.Cfg.Presence.HeartbeatInterval
		clientIP := ctx.RemoteAddr()

		sess, err := svc.NewSession(ctx.Request().Context(), ctx.URLParam("room"), ctx.URLParam("player"))
		if err != nil {
			status := iris.StatusInternalServerError
			if errors.Is(err, game.ErrRoomNotFound) || errors.Is(err, game.ErrPlayerNotFound) {
				status = iris.StatusNotFound
			}

			ctx.StatusCode(status)
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		code, playerID := sess.RoomCode(), sess.PlayerID()

		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.String("client_ip", clientIP), zap.Error(err))
			return
		}

		defer conn.Close()

		conn.SetReadLimit(MAX_MESSAGE_SIZE)
		conn.SetReadDeadline(time.Now().Add(readDeadline(pingInterval)))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(readDeadline(pingInterval)))

			if err := svc.Heartbeat(context.Background(), code, playerID); err != nil {
				zap.L().Debug(
					"心跳登记失败",
					zap.String("room_code", code),
					zap.String("player_id", playerID),
					zap.Error(err),
				)
			}
			return nil
		})

		// 连接本身就是一次心跳
		if err := svc.Heartbeat(context.Background(), code, playerID); err != nil {
			zap.L().Warn(
				"初始心跳失败",
				zap.String("room_code", code),
				zap.String("player_id", playerID),
				zap.Error(err),
			)
		}

		sessCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go sess.Run(sessCtx)

		zap.L().Info(
			"玩家连接到房间",
			zap.String("client_ip", clientIP),
			zap.String("room_code", code),
			zap.String("player_id", playerID),
		)

		// 写协程的退出信号
		closingCh := make(chan struct{})
		writeDoneCh := make(chan struct{})

		go writeLoop(conn, sess, pingInterval, closingCh, writeDoneCh, clientIP)

		limiter := rate.NewLimiter(rate.Limit(appState.Cfg.WS.RateLimit), appState.Cfg.WS.RateBurst)
		left := false

		// 读取协程（主协程）
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Warn(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			conn.SetReadDeadline(time.Now().Add(readDeadline(pingInterval)))

			if !limiter.Allow() {
				sess.Send(game.WrapErrResponse("too many requests, slow down"))
				continue
			}

			var wrapper game.RequestWrapper

			if err := json.Unmarshal(msg, &wrapper); err != nil {
				zap.L().Debug(
					"解析消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)

				sess.Send(game.WrapErrResponse(service.ErrInvalidRequest.Error()))
				continue
			}

			resp, err := svc.HandleRequest(sessCtx, code, playerID, wrapper)
			if err != nil {
				sess.Send(game.WrapErrResponse(err.Error()))
				continue
			}
			if resp != nil {
				sess.Send(*resp)
			}

			if wrapper.ReqType == game.REQ_LEAVE {
				left = true
				break
			}
		}

		// 没有主动离开时只标记离线，保留玩家身份等待重连
		if !left {
			err := svc.LivenessLost(context.Background(), code, playerID)
			if err != nil && !errors.Is(err, game.ErrRoomNotFound) && !errors.Is(err, game.ErrPlayerNotFound) {
				zap.L().Warn(
					"标记离线失败",
					zap.String("room_code", code),
					zap.String("player_id", playerID),
					zap.Error(err),
				)
			}
		}

		close(closingCh)
		<-writeDoneCh

		zap.L().Info(
			"WebSocket连接处理完成",
			zap.String("client_ip", clientIP),
			zap.String("room_code", code),
			zap.String("player_id", playerID),
			zap.Bool("left", left),
		)
	}
}

func writeLoop(
	conn *websocket.Conn,
	sess *service.Session,
	pingInterval time.Duration,
	closingCh <-chan struct{},
	writeDoneCh chan<- struct{},
	clientIP string,
) {
	defer close(writeDoneCh)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(resp game.ResponseWrapper) bool {
		conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
		if err := conn.WriteJSON(resp); err != nil {
			zap.L().Debug(
				"发送消息失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			return false
		}
		return true
	}

	// 把已经排队的响应发完再关闭连接
	finish := func() {
		for {
			select {
			case resp := <-sess.Responses():
				if !write(resp) {
					return
				}
			default:
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(WRITE_TIMEOUT),
				)
				return
			}
		}
	}

	for {
		select {
		case <-closingCh:
			finish()
			return

		case <-sess.Done():
			// 房间关闭或玩家已不在房间内
			finish()
			_ = conn.Close()
			return

		case <-ticker.C:
			if err := conn.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(WRITE_TIMEOUT),
			); err != nil {
				zap.L().Debug(
					"发送心跳失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				_ = conn.Close()
				return
			}

		case resp := <-sess.Responses():
			if !write(resp) {
				_ = conn.Close()
				return
			}
		}
	}
}
