package ws

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/game"
)

// CommandType identifies a client-to-server command
type CommandType string

const (
	CmdVerify            CommandType = "verify"
	CmdPong              CommandType = "pong"
	CmdScreen            CommandType = "screen"
	CmdPublicDuel        CommandType = "publicDuel"
	CmdLeaveQueue        CommandType = "leaveQueue"
	CmdCreatePrivateGame CommandType = "createPrivateGame"
	CmdJoinPrivateGame   CommandType = "joinPrivateGame"
	CmdStartGameHost     CommandType = "startGameHost"
	CmdPlace             CommandType = "place"
	CmdChat              CommandType = "chat"
	CmdLeaveGame         CommandType = "leaveGame"
	CmdInviteFriend      CommandType = "inviteFriend"
	CmdAcceptInvite      CommandType = "acceptInvite"
	CmdGetFriends        CommandType = "getFriends"
	CmdSendFriendRequest CommandType = "sendFriendRequest"
	CmdAcceptFriend      CommandType = "acceptFriend"
	CmdDeclineFriend     CommandType = "declineFriend"
	CmdCancelRequest     CommandType = "cancelRequest"
	CmdRemoveFriend      CommandType = "removeFriend"
	CmdSetAllowFriendReq CommandType = "setAllowFriendReq"
)

// Commands are flat JSON objects: the type sits next to the payload fields
type envelope struct {
	Type CommandType `json:"type"`
}

type verifyCommand struct {
	Secret   json.RawMessage `json:"secret"`
	TimeZone json.RawMessage `json:"tz"`
}

// zone returns the time zone name, or "" when tz is absent or not a string
func (c verifyCommand) zone() string {
	var tz string
	if err := json.Unmarshal(c.TimeZone, &tz); err != nil {
		return ""
	}
	return tz
}

type screenCommand struct {
	Screen model.Screen `json:"screen" validate:"required,oneof=home singleplayer multiplayer"`
}

type createPrivateGameCommand struct {
	Rounds       int     `json:"rounds" validate:"gte=1,lte=20"`
	TimePerRound int     `json:"timePerRound" validate:"gte=10,lte=300"`
	Location     string  `json:"location" validate:"required"`
	MaxDist      float64 `json:"maxDist" validate:"gte=0"`
}

func (c createPrivateGameCommand) options() game.PrivateOptions {
	return game.PrivateOptions{
		Rounds:       c.Rounds,
		TimePerRound: time.Duration(c.TimePerRound) * time.Second,
		Location:     c.Location,
		MaxDist:      c.MaxDist,
	}
}

type joinPrivateGameCommand struct {
	GameCode model.RoomCode `json:"gameCode" validate:"required"`
}

type placeCommand struct {
	LatLong []float64 `json:"latLong" validate:"len=2"`
	Final   *bool     `json:"final" validate:"required"`
	Round   *int      `json:"round" validate:"omitempty,gte=1"`
}

func (c placeCommand) latLong() model.LatLong {
	return model.LatLong{c.LatLong[0], c.LatLong[1]}
}

type chatCommand struct {
	Message string `json:"message" validate:"required"`
}

type inviteFriendCommand struct {
	FriendID model.ConnID `json:"friendId" validate:"required"`
}

type acceptInviteCommand struct {
	Code        model.RoomCode `json:"code" validate:"required"`
	InvitedByID model.ConnID   `json:"invitedById"`
}

type friendRequestCommand struct {
	Name string `json:"name" validate:"username"`
}

type friendCommand struct {
	ID model.AccountID `json:"id" validate:"required"`
}

type allowFriendReqCommand struct {
	Allow *bool `json:"allow" validate:"required"`
}

// newValidator returns a validator with the custom tags commands use
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return model.ValidUsername(fl.Field().String())
	})
	return v
}

// decode unmarshals a frame into T and validates it
func decode[T any](v *validator.Validate, data []byte) (T, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, err
	}
	if err := v.Struct(cmd); err != nil {
		return cmd, err
	}
	return cmd, nil
}
