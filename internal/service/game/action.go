package game

// 客户端在 WS 中发送的命令，玩家身份由连接本身决定，不在请求里携带

type ToggleActionRequest struct {
	Action  string `json:"action"`
	Enabled bool   `json:"enabled"`
}

type SetAllActionsRequest struct {
	Enabled bool `json:"enabled"`
}

type AddCustomActionRequest struct {
	Text string `json:"text"`
}

type SetSettingsRequest struct {
	Settings SettingsPatch `json:"settings"`
}

type MarkExecutedRequest struct {
	Executed bool `json:"executed"`
}

type RemovePlayerRequest struct {
	PlayerID string `json:"player_id"`
}

type LeftResponse struct {
	RoomCode      string `json:"room_code"`
	RoomDestroyed bool   `json:"room_destroyed"`
}

type RoomClosedResponse struct {
	RoomCode string `json:"room_code"`
}
