package dto

import "wildcard-party-be/internal/service/game"

// 房间内的玩家身份，客户端需要保存 ID 以便重连
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"is_host"`
}

func NewPlayer(p game.Player, room game.Room) Player {
	return Player{
		ID:     p.ID,
		Name:   p.Name,
		IsHost: room.HostPlayerID == p.ID,
	}
}
