package protocol

import "encoding/json"

// Client -> server message types. The wire strings are the sole
// external contract.
const (
	TypeMove         = "move"
	TypeChat         = "chat"
	TypeRequestChunk = "requestChunk"
	TypePlaceBlock   = "placeBlock"
	TypeRemoveBlock  = "removeBlock"
	TypeSetProfile   = "setProfile"
	TypeIdentify     = "identify"
	TypeInteract     = "interact"
)

// Server -> client message types.
const (
	TypeWelcome            = "welcome"
	TypeExistingPlayers    = "existingPlayers"
	TypePlayerJoined       = "playerJoined"
	TypePlayerLeft         = "playerLeft"
	TypePlayerMoved        = "playerMoved"
	TypePositionCorrection = "positionCorrection"
	TypeProfileUpdate      = "profileUpdate"
	TypeChunkData          = "chunkData"
	TypeChatMessage        = "chatMessage"
	TypeBlockUpdate        = "blockUpdate"
	TypeZoneChanged        = "zoneChanged"
	TypeInteractResult     = "interactResult"
	TypeError              = "error"
)

// BaseMessage routes inbound JSON by its type discriminator. Unknown
// fields in a valid-type message are ignored.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
