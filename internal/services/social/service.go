package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/game"
	"github.com/mcoot/geoduel/internal/storage"
)

const (
	// PreferenceGap is the minimum time between allowFriendReq changes
	PreferenceGap = 5 * time.Second
	// InviteGap is the minimum time between invites to the same player
	InviteGap = 5 * time.Second
)

// Players is the part of the connection registry the social graph needs
type Players interface {
	Get(id model.ConnID) (*model.Player, bool)
	FindByAccount(accountID model.AccountID) (*model.Player, bool)
}

// Queue lets invite acceptance pull a player out of matchmaking
type Queue interface {
	Dequeue(player *model.Player)
}

// Service owns friend relationships and game invites. The store holds the
// authoritative edge; every live player keeps a cached copy of their lists
// that is updated alongside each store write.
type Service struct {
	store   storage.AccountStore
	players Players
	games   *game.Controller
	queue   Queue
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new social Service
func New(
	store storage.AccountStore,
	players Players,
	games *game.Controller,
	queue Queue,
	clock clock.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   store,
		players: players,
		games:   games,
		queue:   queue,
		clock:   clock,
		logger:  logger,
	}
}

func accountOf(player *model.Player) (model.Identity, bool) {
	id := player.Identity()
	return id, id.Verified && !id.IsGuest()
}

func refOf(id model.Identity) model.FriendRef {
	return model.FriendRef{ID: id.AccountID, Name: id.Name, Supporter: id.Supporter}
}

func indexOf(refs []model.FriendRef, id model.AccountID) int {
	return slices.IndexFunc(refs, func(r model.FriendRef) bool { return r.ID == id })
}

func without(refs []model.FriendRef, id model.AccountID) []model.FriendRef {
	return slices.DeleteFunc(refs, func(r model.FriendRef) bool { return r.ID == id })
}

// SendFriendData pushes the player's friend lists with fresh online status
func (s *Service) SendFriendData(player *model.Player) {
	if _, ok := accountOf(player); !ok {
		return
	}

	social := player.Social()
	for i, f := range social.Friends {
		if live, ok := s.players.FindByAccount(f.ID); ok {
			social.Friends[i].Online = true
			social.Friends[i].SocketID = live.ID
		} else {
			social.Friends[i].Online = false
			social.Friends[i].SocketID = ""
		}
	}

	player.Send(model.FriendsMessage{
		Type:             model.MsgFriends,
		Friends:          nonNil(social.Friends),
		SentRequests:     nonNil(social.Sent),
		ReceivedRequests: nonNil(social.Received),
		AllowFriendReq:   social.AllowFriendReq,
	})
}

func nonNil(refs []model.FriendRef) []model.FriendRef {
	if refs == nil {
		return []model.FriendRef{}
	}
	return refs
}

func (s *Service) sendState(player *model.Player, state model.FriendReqState) {
	player.Send(model.FriendReqStateMessage{Type: model.MsgFriendReqState, State: state})
}

// SendFriendRequest asks the account called name to be friends. The
// outcome is always reported with a friendReqState code.
func (s *Service) SendFriendRequest(ctx context.Context, player *model.Player, name string) {
	self, ok := accountOf(player)
	if !ok || !model.ValidUsername(name) {
		s.sendState(player, model.FriendReqInvalid)
		return
	}

	social := player.Social()
	if len(social.Friends) >= model.MaxFriendListSize || len(social.Sent) >= model.MaxFriendListSize {
		s.sendState(player, model.FriendReqLimit)
		return
	}

	target, err := s.store.GetAccountByUsername(ctx, name)
	if errors.Is(err, model.ErrAccountNotFound) {
		s.sendState(player, model.FriendReqNotFound)
		return
	}
	if err != nil {
		s.logError("failed to look up friend request target", self.AccountID, err)
		s.sendState(player, model.FriendReqInvalid)
		return
	}
	if !target.AllowFriendReq {
		s.sendState(player, model.FriendReqDisallowed)
		return
	}

	received, err := s.receivedCount(ctx, target.ID)
	if err != nil {
		s.logError("failed to load friend request target edges", self.AccountID, err)
		s.sendState(player, model.FriendReqInvalid)
		return
	}

	switch {
	case received >= model.MaxFriendListSize, target.ID == self.AccountID:
		s.sendState(player, model.FriendReqLimit)
		return
	case indexOf(social.Friends, target.ID) >= 0:
		s.sendState(player, model.FriendReqAlreadyFriends)
		return
	case indexOf(social.Sent, target.ID) >= 0:
		s.sendState(player, model.FriendReqAlreadySent)
		return
	case indexOf(social.Received, target.ID) >= 0:
		s.sendState(player, model.FriendReqAlreadyReceived)
		return
	}

	if err := s.store.CreateFriendRequest(ctx, self.AccountID, target.ID); err != nil {
		if errors.Is(err, model.ErrEdgeExists) {
			// The cached lists were stale; an edge already links the pair
			s.sendState(player, s.existingEdgeState(ctx, self.AccountID, target.ID))
			return
		}
		s.logError("failed to create friend request", self.AccountID, err)
		s.sendState(player, model.FriendReqInvalid)
		return
	}

	player.UpdateSocial(func(soc *model.Social) {
		soc.Sent = append(soc.Sent, model.FriendRef{ID: target.ID, Name: target.Username, Supporter: target.Supporter})
	})
	s.SendFriendData(player)
	s.sendState(player, model.FriendReqSent)

	if live, ok := s.players.FindByAccount(target.ID); ok {
		live.Send(model.FriendReqMessage{Type: model.MsgFriendReq, ID: self.AccountID, Name: self.Name})
		live.UpdateSocial(func(soc *model.Social) {
			soc.Received = append(soc.Received, refOf(self))
		})
		s.SendFriendData(live)
	}
}

// existingEdgeState reads the stored edge between self and target and
// reports which relationship already holds
func (s *Service) existingEdgeState(ctx context.Context, self, target model.AccountID) model.FriendReqState {
	edges, err := s.store.GetEdges(ctx, self)
	if err != nil {
		s.logError("failed to reload friend edges", self, err)
		return model.FriendReqAlreadySent
	}
	for _, edge := range edges {
		if edge.Other(self) != target {
			continue
		}
		switch {
		case edge.Status == model.EdgeAccepted:
			return model.FriendReqAlreadyFriends
		case edge.From == target:
			return model.FriendReqAlreadyReceived
		}
	}
	return model.FriendReqAlreadySent
}

// receivedCount counts pending requests addressed to id
func (s *Service) receivedCount(ctx context.Context, id model.AccountID) (int, error) {
	if live, ok := s.players.FindByAccount(id); ok {
		return len(live.Social().Received), nil
	}
	edges, err := s.store.GetEdges(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(model.RelationshipsFor(id, edges).Received), nil
}

// AcceptFriend accepts a pending request from the account id
func (s *Service) AcceptFriend(ctx context.Context, player *model.Player, id model.AccountID) {
	self, ok := accountOf(player)
	if !ok {
		return
	}
	social := player.Social()
	i := indexOf(social.Received, id)
	if i < 0 {
		return
	}
	friend := social.Received[i]

	if err := s.store.AcceptFriendRequest(ctx, id, self.AccountID); err != nil {
		s.logError("failed to accept friend request", self.AccountID, err)
		return
	}

	player.UpdateSocial(func(soc *model.Social) {
		soc.Received = without(soc.Received, id)
		soc.Friends = append(soc.Friends, friend)
	})
	s.SendFriendData(player)
	player.Send(model.NewToast(model.ToastNewFriend, model.ToastSuccess, map[string]any{"name": friend.Name}))

	if live, ok := s.players.FindByAccount(id); ok {
		live.UpdateSocial(func(soc *model.Social) {
			soc.Sent = without(soc.Sent, self.AccountID)
			soc.Friends = append(soc.Friends, refOf(self))
		})
		s.SendFriendData(live)
		live.Send(model.NewToast(model.ToastNewFriend, model.ToastSuccess, map[string]any{"name": self.Name}))
	}
}

// DeclineFriend rejects a pending request from the account id
func (s *Service) DeclineFriend(ctx context.Context, player *model.Player, id model.AccountID) {
	s.dropEdge(ctx, player, id,
		func(soc *model.Social) *[]model.FriendRef { return &soc.Received },
		func(soc *model.Social) *[]model.FriendRef { return &soc.Sent },
		func(self model.AccountID) error { return s.store.DeleteFriendRequest(ctx, id, self) },
	)
}

// CancelRequest withdraws a request the player sent to the account id
func (s *Service) CancelRequest(ctx context.Context, player *model.Player, id model.AccountID) {
	s.dropEdge(ctx, player, id,
		func(soc *model.Social) *[]model.FriendRef { return &soc.Sent },
		func(soc *model.Social) *[]model.FriendRef { return &soc.Received },
		func(self model.AccountID) error { return s.store.DeleteFriendRequest(ctx, self, id) },
	)
}

// RemoveFriend ends the friendship with the account id
func (s *Service) RemoveFriend(ctx context.Context, player *model.Player, id model.AccountID) {
	friends := func(soc *model.Social) *[]model.FriendRef { return &soc.Friends }
	s.dropEdge(ctx, player, id, friends, friends,
		func(self model.AccountID) error { return s.store.DeleteFriendship(ctx, self, id) },
	)
}

// dropEdge removes the edge to id. mine selects the caller's list that
// must contain id; theirs selects the counterpart's list holding the caller.
func (s *Service) dropEdge(
	ctx context.Context,
	player *model.Player,
	id model.AccountID,
	mine, theirs func(*model.Social) *[]model.FriendRef,
	write func(self model.AccountID) error,
) {
	self, ok := accountOf(player)
	if !ok {
		return
	}
	social := player.Social()
	if indexOf(*mine(&social), id) < 0 {
		return
	}

	if err := write(self.AccountID); err != nil {
		s.logError("failed to remove friend edge", self.AccountID, err)
		return
	}

	player.UpdateSocial(func(soc *model.Social) {
		list := mine(soc)
		*list = without(*list, id)
	})
	s.SendFriendData(player)

	if live, ok := s.players.FindByAccount(id); ok {
		live.UpdateSocial(func(soc *model.Social) {
			list := theirs(soc)
			*list = without(*list, self.AccountID)
		})
		s.SendFriendData(live)
	}
}

// SetAllowFriendReq changes whether others may send the player requests
func (s *Service) SetAllowFriendReq(ctx context.Context, player *model.Player, allow bool) {
	self, ok := accountOf(player)
	if !ok {
		return
	}

	remaining, ok := player.AllowPreferenceChange(s.clock.Now(), PreferenceGap)
	if !ok {
		player.Send(model.NewToast(model.ToastPleaseWaitSeconds, model.ToastError, map[string]any{
			"seconds": int(math.Round(remaining.Seconds())),
		}))
		return
	}

	if err := s.store.SetAllowFriendReq(ctx, self.AccountID, allow); err != nil {
		s.logError("failed to update friend request preference", self.AccountID, err)
		return
	}
	player.UpdateSocial(func(soc *model.Social) { soc.AllowFriendReq = allow })
	player.Send(model.NewToast(model.ToastPreferenceUpdated, "", nil))
	s.SendFriendData(player)
}

// Invites

// InviteFriend invites the friend connected as friendID to the player's
// private session
func (s *Service) InviteFriend(player *model.Player, friendID model.ConnID) {
	self, ok := accountOf(player)
	if !ok || friendID == "" {
		return
	}
	friend, ok := s.players.Get(friendID)
	if !ok {
		return
	}
	session, ok := s.games.SessionFor(player)
	if !ok || session.Public {
		return
	}

	if friend.SessionID() == session.ID {
		player.Send(model.NewToast(model.ToastAlreadyInYourGame, model.ToastError, nil))
		return
	}
	friendIdentity := friend.Identity()
	if friendIdentity.IsGuest() || indexOf(player.Social().Friends, friendIdentity.AccountID) < 0 {
		return
	}

	if remaining, ok := friend.AllowInvite(s.clock.Now(), InviteGap); !ok {
		player.Send(model.NewToast(model.ToastInviteCooldown, "", map[string]any{
			"t": fmt.Sprintf("%.1f", remaining.Seconds()),
		}))
		return
	}

	friend.Send(model.InviteMessage{
		Type:          model.MsgInvite,
		Code:          session.Code,
		InvitedByName: self.Name,
		InvitedByID:   player.ID,
	})
	player.Send(model.NewToast(model.ToastInviteSent, model.ToastSuccess, map[string]any{"name": friendIdentity.Name}))
}

// AcceptInvite moves the player into the private session with code,
// leaving any queue or session they were in
func (s *Service) AcceptInvite(player *model.Player, code model.RoomCode, invitedBy model.ConnID) {
	self, ok := accountOf(player)
	if !ok || code == "" {
		return
	}

	session, ok := s.games.GetByCode(code)
	if !ok {
		player.Send(model.NewToast(model.ToastInvalidGameCode, model.ToastError, nil))
		return
	}
	if player.SessionID() == session.ID {
		return
	}
	if session.Full() {
		player.Send(model.NewToast(model.ToastGameIsFull, model.ToastError, nil))
		return
	}

	s.queue.Dequeue(player)
	s.games.Leave(player, false)
	if _, err := s.games.JoinByCode(player, code); err != nil {
		key := model.ToastInvalidGameCode
		if errors.Is(err, model.ErrSessionFull) {
			key = model.ToastGameIsFull
		}
		player.Send(model.NewToast(key, model.ToastError, nil))
		return
	}
	player.Send(model.NewToast(model.ToastInviteAccepted, model.ToastSuccess, nil))

	inviter, ok := s.players.Get(invitedBy)
	if !ok {
		return
	}
	if indexOf(player.Social().Friends, inviter.Identity().AccountID) >= 0 {
		inviter.Send(model.NewToast(model.ToastInviteAcceptedBy, model.ToastSuccess, map[string]any{"name": self.Name}))
	}
}

func (s *Service) logError(msg string, accountID model.AccountID, err error) {
	s.logger.Error(msg,
		slog.String("account_id", string(accountID)),
		slog.String("error", err.Error()),
	)
}
