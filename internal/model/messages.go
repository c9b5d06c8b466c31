package model

import "encoding/json"

// MessageType identifies a server-to-client message
type MessageType string

const (
	MsgVerify         MessageType = "verify"
	MsgCount          MessageType = "cnt"
	MsgTime           MessageType = "t"
	MsgStreak         MessageType = "streak"
	MsgFriends        MessageType = "friends"
	MsgFriendReqState MessageType = "friendReqState"
	MsgFriendReq      MessageType = "friendReq"
	MsgInvite         MessageType = "invite"
	MsgToast          MessageType = "toast"
	MsgError          MessageType = "error"
	MsgGameJoinError  MessageType = "gameJoinError"
	MsgChat           MessageType = "chat"
	MsgGame           MessageType = "game"
	MsgPlayer         MessageType = "player"
	MsgPlace          MessageType = "place"
	MsgGameShutdown   MessageType = "gameShutdown"
	MsgElo            MessageType = "elo"
	MsgRestartQueued  MessageType = "restartQueued"
)

// FriendReqState is the outcome code of a friend request
type FriendReqState int

const (
	FriendReqInvalid         FriendReqState = 0 // not logged in or bad name
	FriendReqSent            FriendReqState = 1
	FriendReqDisallowed      FriendReqState = 2
	FriendReqNotFound        FriendReqState = 3
	FriendReqAlreadySent     FriendReqState = 4
	FriendReqAlreadyReceived FriendReqState = 5
	FriendReqAlreadyFriends  FriendReqState = 6
	FriendReqLimit           FriendReqState = 7 // cap reached or self
)

// Toast keys
const (
	ToastLastGuesser        = "lastGuesser"
	ToastAlreadyInYourGame  = "alreadyInYourGame"
	ToastInviteCooldown     = "inviteCooldown"
	ToastInviteSent         = "inviteSent"
	ToastGameIsFull         = "gameIsFull"
	ToastInvalidGameCode    = "invalidGameCode"
	ToastInviteAccepted     = "inviteAccepted"
	ToastInviteAcceptedBy   = "inviteAcceptedBy"
	ToastPleaseWaitSeconds  = "pleaseWaitSeconds"
	ToastPreferenceUpdated  = "preferenceUpdated"
	ToastNewFriend          = "newFriend"
	ToastMaintenanceStarted = "maintenanceModeStarted"
)

// Toast types
const (
	ToastInfo    = "info"
	ToastSuccess = "success"
	ToastError   = "error"
)

// Error strings sent to clients
const (
	ErrTextFailedToLogin = "Failed to login"
	ErrTextDuplicate     = "uac"
	ErrTextGameFull      = "Game is full"
	ErrTextInvalidCode   = "Invalid game code"
)

type VerifyMessage struct {
	Type      MessageType `json:"type"`
	GuestName string      `json:"guestName,omitempty"`
}

type CountMessage struct {
	Type  MessageType `json:"type"`
	Count int         `json:"c"`
}

type TimeMessage struct {
	Type MessageType `json:"type"`
	Time int64       `json:"t"`
}

type StreakMessage struct {
	Type   MessageType `json:"type"`
	Streak int         `json:"streak"`
}

// FriendsMessage is the full social snapshot pushed to a player
type FriendsMessage struct {
	Type             MessageType `json:"type"`
	Friends          []FriendRef `json:"friends"`
	SentRequests     []FriendRef `json:"sentRequests"`
	ReceivedRequests []FriendRef `json:"receivedRequests"`
	AllowFriendReq   bool        `json:"allowFriendReq"`
}

type FriendReqStateMessage struct {
	Type  MessageType    `json:"type"`
	State FriendReqState `json:"state"`
}

type FriendReqMessage struct {
	Type MessageType `json:"type"`
	ID   AccountID   `json:"id"`
	Name string      `json:"name"`
}

type InviteMessage struct {
	Type          MessageType `json:"type"`
	Code          RoomCode    `json:"code"`
	InvitedByName string      `json:"invitedByName"`
	InvitedByID   ConnID      `json:"invitedById"`
}

// ToastMessage is a localizable notice. Params are flattened into the
// top-level object next to key and toastType.
type ToastMessage struct {
	Key       string
	ToastType string
	Params    map[string]any
}

// NewToast builds a toast with optional params
func NewToast(key, toastType string, params map[string]any) ToastMessage {
	return ToastMessage{Key: key, ToastType: toastType, Params: params}
}

func (t ToastMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Params)+3)
	for k, v := range t.Params {
		out[k] = v
	}
	out["type"] = MsgToast
	out["key"] = t.Key
	if t.ToastType != "" {
		out["toastType"] = t.ToastType
	}
	return json.Marshal(out)
}

type ErrorMessage struct {
	Type          MessageType `json:"type"`
	Message       string      `json:"message"`
	FailedToLogin bool        `json:"failedToLogin,omitempty"`
}

type GameJoinErrorMessage struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
}

type ChatMessage struct {
	Type    MessageType `json:"type"`
	ID      ConnID      `json:"id"`
	Name    string      `json:"name"`
	Message string      `json:"message"`
}

// GameMessage is both the full snapshot sent on join and the periodic
// state update; snapshot-only fields are omitted from updates
type GameMessage struct {
	Type        MessageType  `json:"type"`
	State       SessionState `json:"state"`
	CurRound    int          `json:"curRound"`
	MaxPlayers  int          `json:"maxPlayers"`
	NextEvtTime int64        `json:"nextEvtTime,omitempty"`
	Players     []Member     `json:"players"`
	Generated   int          `json:"generated"`
	Map         string       `json:"map"`
	// Round results, set once a round has been scored
	Results []RoundResult `json:"results,omitempty"`

	Locations         []Location `json:"locations,omitempty"`
	Rounds            int        `json:"rounds,omitempty"`
	TimePerRound      int64      `json:"timePerRound,omitempty"`
	WaitBetweenRounds int64      `json:"waitBetweenRounds,omitempty"`
	StartTime         int64      `json:"startTime,omitempty"`
	MaxDist           float64    `json:"maxDist,omitempty"`
	MyID              ConnID     `json:"myId,omitempty"`
	Public            *bool      `json:"public,omitempty"`
	Host              *bool      `json:"host,omitempty"`
	Code              RoomCode   `json:"code,omitempty"`
}

// RoundResult reveals a scored round's target and guesses
type RoundResult struct {
	Round    int              `json:"round"`
	Location Location         `json:"location"`
	Guesses  map[ConnID]Guess `json:"guesses"`
}

// PlayerMessage announces a membership change
type PlayerMessage struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
	ID     ConnID      `json:"id,omitempty"`
	Player *Member     `json:"player,omitempty"`
}

const (
	PlayerActionAdd    = "add"
	PlayerActionRemove = "remove"
)

type PlaceMessage struct {
	Type    MessageType `json:"type"`
	ID      ConnID      `json:"id"`
	Final   bool        `json:"final"`
	LatLong LatLong     `json:"latLong"`
}

type GameShutdownMessage struct {
	Type MessageType `json:"type"`
}

type EloMessage struct {
	Type   MessageType `json:"type"`
	Elo    int         `json:"elo"`
	League string      `json:"league"`
}

// RestartQueuedMessage tells clients whether maintenance mode is on
type RestartQueuedMessage struct {
	Type  MessageType `json:"type"`
	Value bool        `json:"value"`
}
