package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"time"

	"wildcard-party-be/internal/api/http/websocket"
	"wildcard-party-be/internal/state"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

func NewApp(appState *state.AppState) *iris.Application {
	app := iris.New()

	if dir := appState.Cfg.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			app.HandleDir(
				"/",
				iris.Dir(dir),
				iris.DirOptions{
					IndexName: "index.html",
					SPA:       true,
					Compress:  true,
				},
			)
		}
	}

	api := app.Party("/api/v1")

	api.Get("/health", Health(appState))

	api.Post("/rooms", CreateRoom(appState))
	api.Get("/rooms/{code:string}", GetRoom(appState))
	api.Post("/rooms/{code:string}/join", JoinRoom(appState))
	api.Get("/rooms/{code:string}/qr.png", RoomQRCode(appState))

	api.Get("/ws", websocket.JoinGame(appState))

	return app
}

// RunServer blocks until ctx is cancelled or the listener fails.
func RunServer(ctx context.Context, appState *state.AppState) error {
	app := NewApp(appState)

	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.Port,
	)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		zap.L().Info("正在关闭HTTP服务器")

		if err := app.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("关闭HTTP服务器失败", zap.Error(err))
		}
	}()

	zap.L().Info("HTTP服务器开始监听", zap.String("addr", addr))

	err := app.Listen(addr, iris.WithoutInterruptHandler, iris.WithoutStartupLog)
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}

	return nil
}
