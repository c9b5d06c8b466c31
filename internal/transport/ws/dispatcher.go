package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/auth"
	"github.com/mcoot/geoduel/internal/services/game"
	"github.com/mcoot/geoduel/internal/services/matchmaking"
	"github.com/mcoot/geoduel/internal/services/registry"
	"github.com/mcoot/geoduel/internal/services/social"
)

type commandFunc func(ctx context.Context, player *model.Player, data []byte)

// Dispatcher routes decoded commands to the services. Commands from a
// single connection are handled one at a time in arrival order.
type Dispatcher struct {
	players  *registry.Registry
	auth     *auth.Service
	social   *social.Service
	games    *game.Controller
	queue    *matchmaking.Queue
	clock    clock.Clock
	validate *validator.Validate
	logger   *slog.Logger

	maintenance atomic.Bool
	commands    map[CommandType]commandFunc
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	players *registry.Registry,
	authService *auth.Service,
	socialService *social.Service,
	games *game.Controller,
	queue *matchmaking.Queue,
	clock clock.Clock,
	logger *slog.Logger,
) *Dispatcher {
	d := &Dispatcher{
		players:  players,
		auth:     authService,
		social:   socialService,
		games:    games,
		queue:    queue,
		clock:    clock,
		validate: newValidator(),
		logger:   logger,
	}
	d.commands = map[CommandType]commandFunc{
		CmdVerify:            d.verify,
		CmdPong:              d.pong,
		CmdScreen:            d.screen,
		CmdPublicDuel:        d.publicDuel,
		CmdLeaveQueue:        d.leaveQueue,
		CmdCreatePrivateGame: d.createPrivateGame,
		CmdJoinPrivateGame:   d.joinPrivateGame,
		CmdStartGameHost:     d.startGameHost,
		CmdPlace:             d.place,
		CmdChat:              d.chat,
		CmdLeaveGame:         d.leaveGame,
		CmdInviteFriend:      d.inviteFriend,
		CmdAcceptInvite:      d.acceptInvite,
		CmdGetFriends:        d.getFriends,
		CmdSendFriendRequest: d.sendFriendRequest,
		CmdAcceptFriend:      d.friendAction(socialService.AcceptFriend),
		CmdDeclineFriend:     d.friendAction(socialService.DeclineFriend),
		CmdCancelRequest:     d.friendAction(socialService.CancelRequest),
		CmdRemoveFriend:      d.friendAction(socialService.RemoveFriend),
		CmdSetAllowFriendReq: d.setAllowFriendReq,
	}
	return d
}

// Connection lifecycle

// Open registers a new connection and sends the server time and the
// maintenance flag
func (d *Dispatcher) Open(conn model.Conn) *model.Player {
	player := d.players.Register(conn)
	player.Send(model.TimeMessage{Type: model.MsgTime, Time: d.clock.Now().UnixMilli()})
	player.Send(model.RestartQueuedMessage{Type: model.MsgRestartQueued, Value: d.maintenance.Load()})
	return player
}

// Disconnect unregisters player, which takes them out of the queue and
// their session
func (d *Dispatcher) Disconnect(player *model.Player) {
	d.players.Unregister(player.ID)
}

// CloseAll closes every live connection
func (d *Dispatcher) CloseAll() {
	for _, p := range d.players.Snapshot() {
		p.Close()
	}
}

// SetMaintenance toggles maintenance mode and tells every connection
func (d *Dispatcher) SetMaintenance(on bool) {
	if d.maintenance.Swap(on) == on {
		return
	}
	d.logger.Info("maintenance mode changed", slog.Bool("enabled", on))
	d.players.Broadcast(nil, model.RestartQueuedMessage{Type: model.MsgRestartQueued, Value: on})
}

// Maintenance reports whether maintenance mode is on
func (d *Dispatcher) Maintenance() bool {
	return d.maintenance.Load()
}

// Handle processes one frame from player. Malformed frames and unknown
// command types are dropped. Until the player is verified only verify and
// pong are accepted.
func (d *Dispatcher) Handle(ctx context.Context, player *model.Player, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		d.logger.Debug("dropping malformed frame", slog.String("conn_id", string(player.ID)))
		return
	}

	if !player.Identity().Verified && env.Type != CmdVerify && env.Type != CmdPong {
		return
	}

	fn, ok := d.commands[env.Type]
	if !ok {
		d.logger.Debug("dropping unknown command",
			slog.String("conn_id", string(player.ID)),
			slog.String("type", string(env.Type)),
		)
		return
	}
	fn(ctx, player, data)
}

func (d *Dispatcher) invalid(player *model.Player, cmd CommandType, err error) {
	d.logger.Debug("dropping invalid command",
		slog.String("conn_id", string(player.ID)),
		slog.String("type", string(cmd)),
		slog.String("error", err.Error()),
	)
}

// Identity and liveness

func (d *Dispatcher) verify(ctx context.Context, player *model.Player, data []byte) {
	cmd, err := decode[verifyCommand](d.validate, data)
	if err != nil {
		d.invalid(player, CmdVerify, err)
		d.auth.RejectLogin(player)
		return
	}
	req := auth.VerifyRequest{Secret: cmd.Secret, TimeZone: cmd.zone()}
	if err := d.auth.Verify(ctx, player, req); err != nil {
		d.logger.Info("verification failed",
			slog.String("conn_id", string(player.ID)),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) pong(_ context.Context, player *model.Player, _ []byte) {
	player.TouchPong(d.clock.Now())
}

func (d *Dispatcher) screen(_ context.Context, player *model.Player, data []byte) {
	cmd, err := decode[screenCommand](d.validate, data)
	if err != nil {
		d.invalid(player, CmdScreen, err)
		return
	}
	player.SetScreen(cmd.Screen)
}

// Matchmaking

func (d *Dispatcher) publicDuel(_ context.Context, player *model.Player, _ []byte) {
	if d.queue.Enqueue(player) {
		d.logger.Debug("player queued", slog.String("conn_id", string(player.ID)))
	}
}

func (d *Dispatcher) leaveQueue(_ context.Context, player *model.Player, _ []byte) {
	d.queue.Dequeue(player)
}

// Sessions

func (d *Dispatcher) createPrivateGame(_ context.Context, player *model.Player, data []byte) {
	if player.SessionID() != "" {
		return
	}
	if d.maintenance.Load() {
		player.Send(model.NewToast(model.ToastMaintenanceStarted, model.ToastError, nil))
		return
	}

	cmd, err := decode[createPrivateGameCommand](d.validate, data)
	if err != nil {
		d.invalid(player, CmdCreatePrivateGame, err)
		return
	}
	if _, err := d.games.CreatePrivate(player, cmd.options()); err != nil {
		d.invalid(player, CmdCreatePrivateGame, err)
		return
	}
	d.queue.Dequeue(player)
}

func (d *Dispatcher) joinPrivateGame(_ context.Context, player *model.Player, data []byte) {
	if player.SessionID() != "" {
		return
	}

	cmd, err := decode[joinPrivateGameCommand](d.validate, data)
	if err != nil {
		d.joinError(player, model.ErrTextInvalidCode)
		return
	}

	_, err = d.games.JoinByCode(player, cmd.GameCode)
	switch {
	case err == nil:
		d.queue.Dequeue(player)
	case errors.Is(err, model.ErrSessionFull):
		d.joinError(player, model.ErrTextGameFull)
	case errors.Is(err, model.ErrInvalidRoomCode), errors.Is(err, model.ErrSessionNotFound):
		d.joinError(player, model.ErrTextInvalidCode)
	default:
		d.invalid(player, CmdJoinPrivateGame, err)
	}
}

func (d *Dispatcher) joinError(player *model.Player, text string) {
	player.Send(model.GameJoinErrorMessage{Type: model.MsgGameJoinError, Error: text})
}

func (d *Dispatcher) startGameHost(_ context.Context, player *model.Player, _ []byte) {
	if err := d.games.StartByHost(player); err != nil {
		d.invalid(player, CmdStartGameHost, err)
	}
}

func (d *Dispatcher) place(_ context.Context, player *model.Player, data []byte) {
	cmd, err := decode[placeCommand](d.validate, data)
	if err != nil {
		d.invalid(player, CmdPlace, err)
		return
	}
	d.games.Place(player, cmd.latLong(), *cmd.Final, cmd.Round)
}

func (d *Dispatcher) chat(_ context.Context, player *model.Player, data []byte) {
	cmd, err := decode[chatCommand](d.validate, data)
	if err != nil {
		d.invalid(player, CmdChat, err)
		return
	}
	d.games.Chat(player, cmd.Message)
}

func (d *Dispatcher) leaveGame(_ context.Context, player *model.Player, _ []byte) {
	d.games.Leave(player, false)
}

// Social

func (d *Dispatcher) inviteFriend(_ context.Context, player *model.Player, data []byte) {
	cmd, err := decode[inviteFriendCommand](d.validate, data)
	if err != nil {
		d.invalid(player, CmdInviteFriend, err)
		return
	}
	d.social.InviteFriend(player, cmd.FriendID)
}

func (d *Dispatcher) acceptInvite(_ context.Context, player *model.Player, data []byte) {
	cmd, err := decode[acceptInviteCommand](d.validate, data)
	if err != nil {
		d.invalid(player, CmdAcceptInvite, err)
		return
	}
	d.social.AcceptInvite(player, cmd.Code, cmd.InvitedByID)
}

func (d *Dispatcher) getFriends(_ context.Context, player *model.Player, _ []byte) {
	d.social.SendFriendData(player)
}

func (d *Dispatcher) sendFriendRequest(ctx context.Context, player *model.Player, data []byte) {
	cmd, err := decode[friendRequestCommand](d.validate, data)
	if err != nil {
		player.Send(model.FriendReqStateMessage{Type: model.MsgFriendReqState, State: model.FriendReqInvalid})
		return
	}
	d.social.SendFriendRequest(ctx, player, cmd.Name)
}

// friendAction adapts a social operation keyed by account id
func (d *Dispatcher) friendAction(
	fn func(ctx context.Context, player *model.Player, id model.AccountID),
) commandFunc {
	return func(ctx context.Context, player *model.Player, data []byte) {
		cmd, err := decode[friendCommand](d.validate, data)
		if err != nil {
			d.logger.Debug("dropping invalid friend command",
				slog.String("conn_id", string(player.ID)),
				slog.String("error", err.Error()),
			)
			return
		}
		fn(ctx, player, cmd.ID)
	}
}

func (d *Dispatcher) setAllowFriendReq(ctx context.Context, player *model.Player, data []byte) {
	cmd, err := decode[allowFriendReqCommand](d.validate, data)
	if err != nil {
		d.invalid(player, CmdSetAllowFriendReq, err)
		return
	}
	d.social.SetAllowFriendReq(ctx, player, *cmd.Allow)
}
