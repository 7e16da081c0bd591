package session

// Wire events. Client to server:
const (
	EventJoinRoom       = "join-room"
	EventStartGame      = "start-game"
	EventSubmitRound    = "submit-round"
	EventUpdateTeamText = "update-team-text"
	EventSubmitCaption  = "submit-caption"
	EventReactMeme      = "react-meme"
	EventSendMessage    = "send-message"
	EventRoundCompleted = "roundCompleted" // both directions: request and ack
)

// Server to client:
const (
	EventRoomUpdate      = "room-update"
	EventTimerUpdate     = "timer-update"
	EventTeamTextUpdated = "team-text-updated"
	EventNewMessage      = "new-message"
	EventGameStarted     = "game-started"
)

type JoinRoomPayload struct {
	RoomID string      `json:"roomId"`
	User   Participant `json:"user"`
}

type SubmitRoundPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Response string `json:"response"`
}

type TeamTextPayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type CaptionPayload struct {
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	Caption string `json:"caption"`
}

type ReactionPayload struct {
	RoomID          string `json:"roomId"`
	UserID          string `json:"userId"`
	CaptionAuthorID string `json:"captionAuthorId"`
	Reaction        string `json:"reaction"`
}

type ChatPayload struct {
	RoomID  string      `json:"roomId"`
	Message string      `json:"message"`
	User    MessageUser `json:"user"`
}

type RoundCompletedPayload struct {
	RoomID string `json:"roomId"`
}
