package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 请求类型
const (
	REQ_LEAVE             = "Leave"
	REQ_START_GAME        = "StartGame"
	REQ_TOGGLE_ACTION     = "ToggleAction"
	REQ_SET_ALL_ACTIONS   = "SetAllActions"
	REQ_ADD_CUSTOM_ACTION = "AddCustomAction"
	REQ_SET_SETTINGS      = "SetSettings"
	REQ_MARK_EXECUTED     = "MarkExecuted"
	REQ_REMOVE_PLAYER     = "RemovePlayer"
	REQ_REENABLE_ACTIONS  = "ReenableAllActions"
	REQ_RETRY_DRAW        = "RetryDraw"
	REQ_HEARTBEAT         = "Heartbeat"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func WrapRequest(reqType string, data any) RequestWrapper {
	wrapper := RequestWrapper{ReqType: reqType}
	if data != nil {
		wrapper.Data = mustMarshal(data)
	}
	return wrapper
}

func tryUnwrap[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	var req T

	if len(wrapper.Data) == 0 {
		return &req
	}

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"Failed to unwrap request",
			zap.String("request_type", reqType),
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &req
}

func TryUnwrapToggleActionRequest(wrapper RequestWrapper) *ToggleActionRequest {
	return tryUnwrap[ToggleActionRequest](wrapper, REQ_TOGGLE_ACTION)
}

func TryUnwrapSetAllActionsRequest(wrapper RequestWrapper) *SetAllActionsRequest {
	return tryUnwrap[SetAllActionsRequest](wrapper, REQ_SET_ALL_ACTIONS)
}

func TryUnwrapAddCustomActionRequest(wrapper RequestWrapper) *AddCustomActionRequest {
	return tryUnwrap[AddCustomActionRequest](wrapper, REQ_ADD_CUSTOM_ACTION)
}

func TryUnwrapSetSettingsRequest(wrapper RequestWrapper) *SetSettingsRequest {
	return tryUnwrap[SetSettingsRequest](wrapper, REQ_SET_SETTINGS)
}

func TryUnwrapMarkExecutedRequest(wrapper RequestWrapper) *MarkExecutedRequest {
	return tryUnwrap[MarkExecutedRequest](wrapper, REQ_MARK_EXECUTED)
}

func TryUnwrapRemovePlayerRequest(wrapper RequestWrapper) *RemovePlayerRequest {
	return tryUnwrap[RemovePlayerRequest](wrapper, REQ_REMOVE_PLAYER)
}

// 响应类型
const (
	RESP_ERROR = "Error"

	RESP_ROOM_STATE  = "RoomState"
	RESP_LEFT        = "Left"
	RESP_ROOM_CLOSED = "RoomClosed"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data"`
	ErrMsg   string `json:"error_message,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   errMsg,
	}
}
