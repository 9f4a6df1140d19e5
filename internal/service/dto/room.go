package dto

import "wildcard-party-be/internal/service/game"

type CreateRoomRequest struct {
	DisplayName string `json:"display_name"`
}

type CreateRoomResponse struct {
	RoomCode string    `json:"room_code"`
	Player   Player    `json:"player"`
	Room     game.View `json:"room"`
}

// PlayerID 可选，携带时表示断线后以原身份重新加入
type JoinRoomRequest struct {
	DisplayName string `json:"display_name"`
	PlayerID    string `json:"player_id,omitempty"`
}

type JoinRoomResponse struct {
	RoomCode string    `json:"room_code"`
	Player   Player    `json:"player"`
	Room     game.View `json:"room"`
}

type GetRoomResponse struct {
	Room game.View `json:"room"`
}
