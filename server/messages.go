package server

import (
	"encoding/json"
	"time"
)

// Inbound message types (client to server).
const (
	MsgTypeJoinMatchmaking  = "JoinMatchmaking"
	MsgTypeStartBotMatch    = "StartBotMatch"
	MsgTypeSendPaddleInput  = "SendPaddleInput"
	MsgTypeRequestStartGame = "RequestStartGame"
	MsgTypeKeepAlive        = "KeepAlive"
)

// Outbound message types (server to client).
const (
	MsgTypeMatchFound           = "MatchFound"
	MsgTypeWaitingForOpponent   = "WaitingForOpponent"
	MsgTypeAlreadyInGame        = "AlreadyInGame"
	MsgTypeGameStarted          = "GameStarted"
	MsgTypeGameUpdate           = "GameUpdate"
	MsgTypeOpponentPaddleInput  = "OpponentPaddleInput"
	MsgTypeOpponentDisconnected = "OpponentDisconnected"
	MsgTypePong                 = "Pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// PaddleInputData carries a paddle target, both inbound (SendPaddleInput)
// and outbound (OpponentPaddleInput). The opponent echo is a visual hint
// only; GameUpdate stays authoritative.
type PaddleInputData struct {
	TargetY float64 `json:"targetY"`
}

// MatchFoundData announces a pairing. Side 1 is the left paddle.
type MatchFoundData struct {
	Opponent string `json:"opponent"`
	Side     int    `json:"side"`
	IsBot    bool   `json:"isBot,omitempty"`
}

// PongData answers a KeepAlive.
type PongData struct {
	Timestamp time.Time `json:"timestamp"`
}
