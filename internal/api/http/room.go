package http

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"wildcard-party-be/internal/service"
	"wildcard-party-be/internal/service/dto"
	"wildcard-party-be/internal/service/game"
	"wildcard-party-be/internal/state"

	"github.com/kataras/iris/v12"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const QR_SIZE = 320

func Health(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"status": "ok",
			"uptime": time.Since(appState.StartedAt).Round(time.Second).String(),
		})
	}
}

func CreateRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.CreateRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			writeError(ctx, iris.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := appState.RoomSvc.CreateRoom(ctx.Request().Context(), req)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}

		ctx.StatusCode(iris.StatusCreated)
		ctx.JSON(resp)
	}
}

func JoinRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.JoinRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			writeError(ctx, iris.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := appState.RoomSvc.JoinRoom(ctx.Request().Context(), ctx.Params().Get("code"), req)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

func GetRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.RoomSvc.GetRoom(
			ctx.Request().Context(),
			ctx.Params().Get("code"),
			ctx.URLParam("player"),
		)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}

		ctx.JSON(resp)
	}
}

// RoomQRCode renders the join link of a room as a PNG.
func RoomQRCode(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		code, err := appState.RoomSvc.ResolveRoom(ctx.Request().Context(), ctx.Params().Get("code"))
		if err != nil {
			writeServiceError(ctx, err)
			return
		}

		link := joinURL(appState.Cfg.PublicURL, ctx, code)

		png, err := qrcode.Encode(link, qrcode.Medium, QR_SIZE)
		if err != nil {
			zap.L().Error("生成二维码失败", zap.String("room_code", code), zap.Error(err))
			writeError(ctx, iris.StatusInternalServerError, "qr generation failed")
			return
		}

		ctx.ContentType("image/png")
		ctx.Header("Cache-Control", "no-store")
		_, _ = ctx.Write(png)
	}
}

// joinURL prefers the configured public URL and otherwise derives the base
// from the request, honouring X-Forwarded-Proto.
func joinURL(publicURL string, ctx iris.Context, code string) string {
	base := strings.TrimRight(publicURL, "/")

	if base == "" {
		scheme := "http"
		if ctx.Request().TLS != nil {
			scheme = "https"
		}
		if proto := ctx.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + ctx.Host()
	}

	return base + "/?room=" + url.QueryEscape(code)
}

func writeError(ctx iris.Context, status int, msg string) {
	ctx.StatusCode(status)
	ctx.JSON(iris.Map{
		"error": msg,
	})
}

func writeServiceError(ctx iris.Context, err error) {
	status := statusOf(err)
	if status >= iris.StatusInternalServerError {
		zap.L().Error(
			"请求处理失败",
			zap.String("path", ctx.Path()),
			zap.Error(err),
		)
	}

	writeError(ctx, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, game.ErrRoomNotFound),
		errors.Is(err, game.ErrPlayerNotFound):
		return iris.StatusNotFound

	case errors.Is(err, game.ErrNotHost),
		errors.Is(err, game.ErrCannotRemoveHost):
		return iris.StatusForbidden

	case errors.Is(err, game.ErrNameTaken),
		errors.Is(err, game.ErrJoinLocked),
		errors.Is(err, game.ErrGameStarted),
		errors.Is(err, game.ErrGameNotStarted),
		errors.Is(err, game.ErrConflict),
		errors.Is(err, game.ErrInsufficientPlayers),
		errors.Is(err, game.ErrInsufficientActions),
		errors.Is(err, game.ErrOutOfActions),
		errors.Is(err, game.ErrNoAssignment):
		return iris.StatusConflict

	case errors.Is(err, game.ErrInvalidName),
		errors.Is(err, game.ErrInvalidAction),
		errors.Is(err, game.ErrInvalidSettings),
		errors.Is(err, service.ErrInvalidRequest):
		return iris.StatusBadRequest

	case errors.Is(err, game.ErrAllocationExhausted),
		errors.Is(err, game.ErrStorageUnavailable):
		return iris.StatusServiceUnavailable
	}

	return iris.StatusInternalServerError
}
