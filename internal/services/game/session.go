package game

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/rating"
	"github.com/mcoot/geoduel/internal/services/scoring"
)

// Phase timings
const (
	GetReadyDuration = 5 * time.Second
	EndDuration      = 60 * time.Second

	// When every guess is final the round is cut short to allFinalDelay,
	// provided more than allFinalThreshold remains
	allFinalThreshold = 5 * time.Second
	allFinalDelay     = 1 * time.Second
	// A lone remaining guesser gets at most lastGuesserWindow
	lastGuesserWindow = 20 * time.Second

	// Public sessions stop accepting queued players once fewer than this
	// many rounds remain
	minRoundsRemaining = 3
)

// RatingSink receives the result of a finished ranked duel
type RatingSink interface {
	ApplyDuel(a, b rating.Participant)
}

type member struct {
	model.Member
	player *model.Player
}

// rankedSide is one account in a ranked duel, captured at start
type rankedSide struct {
	connID    model.ConnID
	accountID model.AccountID
	rating    int
	points    int
	forfeit   bool
}

// Info is a read-only summary of a session
type Info struct {
	ID       model.SessionID    `json:"id"`
	Code     model.RoomCode     `json:"code,omitempty"`
	Public   bool               `json:"public"`
	State    model.SessionState `json:"state"`
	CurRound int                `json:"curRound"`
	Rounds   int                `json:"rounds"`
	Players  int                `json:"players"`
	Ranked   bool               `json:"ranked"`
}

// Session is one game. All state is guarded by mu; the manager is the
// only caller and never holds its own lock while calling in.
// Lock order is session then player.
type Session struct {
	ID     model.SessionID
	Code   model.RoomCode
	Public bool

	clock   clock.Clock
	scorer  scoring.Scorer
	ratings RatingSink
	logger  *slog.Logger

	mu         sync.Mutex
	cfg        model.SessionConfig
	state      model.SessionState
	curRound   int
	startTime  time.Time
	nextEvt    time.Time
	roundStart time.Time
	locations  []model.Location
	rounds     []*model.Round
	results    []model.RoundResult
	members    map[model.ConnID]*member
	order      []model.ConnID
	ranked     bool
	duel       []*rankedSide
}

func newSession(
	id model.SessionID,
	code model.RoomCode,
	public bool,
	cfg model.SessionConfig,
	locations []model.Location,
	clock clock.Clock,
	scorer scoring.Scorer,
	ratings RatingSink,
	logger *slog.Logger,
) *Session {
	rounds := make([]*model.Round, len(locations))
	for i, loc := range locations {
		rounds[i] = &model.Round{Location: loc}
	}
	return &Session{
		ID:        id,
		Code:      code,
		Public:    public,
		clock:     clock,
		scorer:    scorer,
		ratings:   ratings,
		logger:    logger.With(slog.String("session_id", string(id))),
		cfg:       cfg,
		state:     model.SessionStateWaiting,
		locations: locations,
		rounds:    rounds,
		members:   make(map[model.ConnID]*member),
	}
}

// Membership

// AddPlayer joins player to the session and sends them the full snapshot
func (s *Session) AddPlayer(player *model.Player, host bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == model.SessionStateShutdown {
		return model.ErrSessionNotFound
	}
	if len(s.members) >= s.capacity() {
		return model.ErrSessionFull
	}
	if !player.ClaimSession(s.ID) {
		return model.ErrAlreadyInSession
	}

	identity := player.Identity()
	m := &member{
		Member: model.Member{
			ID:        player.ID,
			Username:  identity.Name,
			AccountID: identity.AccountID,
			Rating:    identity.Rating,
			Supporter: identity.Supporter,
			Host:      host && !s.Public,
			JoinedAt:  s.clock.Now(),
		},
		player: player,
	}

	added := m.Member
	s.broadcast(model.PlayerMessage{Type: model.MsgPlayer, Action: model.PlayerActionAdd, Player: &added})

	s.members[player.ID] = m
	s.order = append(s.order, player.ID)

	// A ranked duel is strictly one against one
	if s.ranked {
		s.logger.Info("ranked duel became unranked after late join")
		s.ranked = false
		s.duel = nil
	}

	player.Send(s.snapshot(m))
	s.logger.Debug("player joined",
		slog.String("conn_id", string(player.ID)),
		slog.Int("players", len(s.members)),
	)
	return nil
}

// RemovePlayer takes player out of the session. It reports true when the
// session shut down as a result: it emptied, or a private host left.
func (s *Session) RemovePlayer(player *model.Player, socketClosed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[player.ID]
	if !ok {
		return false
	}
	if !socketClosed {
		player.Send(model.GameShutdownMessage{Type: model.MsgGameShutdown})
	}

	delete(s.members, player.ID)
	if s.state == model.SessionStateGuess {
		delete(s.rounds[s.curRound-1].Guesses, player.ID)
	}
	s.order = slices.DeleteFunc(s.order, func(id model.ConnID) bool { return id == player.ID })
	player.ReleaseSession(s.ID)

	s.broadcast(model.PlayerMessage{Type: model.MsgPlayer, Action: model.PlayerActionRemove, ID: player.ID})

	if s.ranked && s.inProgress() {
		s.forfeit(m)
	}

	now := s.clock.Now()
	s.checkRemaining(now)

	s.logger.Debug("player left",
		slog.String("conn_id", string(player.ID)),
		slog.Bool("socket_closed", socketClosed),
		slog.Int("players", len(s.members)),
	)

	if len(s.members) == 0 || (!s.Public && m.Host) {
		s.shutdown()
		return true
	}
	return false
}

// HasMember reports whether the connection is in this session
func (s *Session) HasMember(id model.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[id]
	return ok
}

// Lifecycle

// Start moves a waiting session into the first get-ready phase
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start(s.clock.Now())
}

// StartByHost starts a private session on behalf of its host
func (s *Session) StartByHost(player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[player.ID]
	if !ok {
		return model.ErrNotInSession
	}
	if !m.Host {
		return model.ErrNotHost
	}
	return s.start(s.clock.Now())
}

func (s *Session) start(now time.Time) error {
	if s.state != model.SessionStateWaiting {
		return model.ErrSessionStarted
	}
	if len(s.members) < 2 {
		return model.ErrInsufficientPlayers
	}
	if len(s.locations) != s.cfg.Rounds {
		return model.ErrLocationsPending
	}

	s.state = model.SessionStateGetReady
	s.startTime = now
	s.nextEvt = now.Add(GetReadyDuration)
	s.curRound = 1
	s.setupDuel()

	s.logger.Info("session started",
		slog.Int("players", len(s.members)),
		slog.Int("rounds", s.cfg.Rounds),
		slog.Bool("ranked", s.ranked),
	)
	s.sendStateUpdate(true)
	return nil
}

// setupDuel marks the session ranked when it starts as a public duel
// between two accounts
func (s *Session) setupDuel() {
	if !s.Public || s.ratings == nil || len(s.members) != 2 {
		return
	}
	sides := make([]*rankedSide, 0, 2)
	for _, id := range s.order {
		m := s.members[id]
		if m.AccountID == "" {
			return
		}
		sides = append(sides, &rankedSide{connID: m.ID, accountID: m.AccountID, rating: m.Rating})
	}
	s.ranked = true
	s.duel = sides
}

// Advance runs the phase transition due at now, if any. It reports true
// when the session reached shutdown.
func (s *Session) Advance(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.After(s.nextEvt) {
		return false
	}

	switch s.state {
	case model.SessionStateGetReady:
		if s.curRound > s.cfg.Rounds {
			s.end(now)
			return false
		}
		s.beginGuess(now)

	case model.SessionStateGuess:
		s.givePoints()
		if s.curRound <= s.cfg.Rounds {
			s.curRound++
			s.state = model.SessionStateGetReady
			wait := s.cfg.WaitBetweenRounds
			if s.curRound > s.cfg.Rounds {
				// The next transition only ends the game
				wait -= GetReadyDuration
			}
			s.nextEvt = now.Add(wait)
			s.sendStateUpdate(false)
		} else {
			s.end(now)
		}

	case model.SessionStateEnd:
		s.shutdown()
		return true
	}
	return false
}

func (s *Session) beginGuess(now time.Time) {
	s.state = model.SessionStateGuess
	s.nextEvt = now.Add(s.cfg.TimePerRound)
	s.roundStart = now
	s.rounds[s.curRound-1].Guesses = make(map[model.ConnID]*model.Guess)
	for _, m := range s.members {
		m.Final = false
	}
	s.sendStateUpdate(false)
}

// givePoints scores every guess of the current round exactly once
func (s *Session) givePoints() {
	round := s.rounds[s.curRound-1]
	result := model.RoundResult{
		Round:    s.curRound,
		Location: round.Location,
		Guesses:  make(map[model.ConnID]model.Guess, len(round.Guesses)),
	}

	for id, guess := range round.Guesses {
		guess.Points = s.scorer.Points(round.Location, guess.LatLong, guess.UsedHint, s.cfg.MaxDist)
		result.Guesses[id] = *guess
		if m, ok := s.members[id]; ok {
			m.Score += guess.Points
		}
	}
	s.results = append(s.results, result)
}

func (s *Session) end(now time.Time) {
	s.state = model.SessionStateEnd
	s.nextEvt = now.Add(EndDuration)
	s.sendStateUpdate(false)

	if s.ranked {
		s.settleDuel()
	}
	s.logger.Info("session ended", slog.Int("players", len(s.members)))
}

// Shutdown ends the session immediately, sending every member away
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown()
}

func (s *Session) shutdown() {
	if s.state == model.SessionStateShutdown {
		return
	}
	for _, id := range s.order {
		m := s.members[id]
		m.player.Send(model.GameShutdownMessage{Type: model.MsgGameShutdown})
		m.player.ReleaseSession(s.ID)
	}
	s.members = make(map[model.ConnID]*member)
	s.order = nil
	s.state = model.SessionStateShutdown
	s.logger.Info("session shut down")
}

// Ranked duels

func (s *Session) forfeit(m *member) {
	for _, side := range s.duel {
		if side.connID == m.ID {
			side.forfeit = true
			side.points = m.Score
		}
	}
	s.settleDuel()
}

// settleDuel hands the duel to the rating sink once
func (s *Session) settleDuel() {
	if !s.ranked || len(s.duel) != 2 {
		return
	}
	s.ranked = false

	participants := make([]rating.Participant, 2)
	for i, side := range s.duel {
		if m, ok := s.members[side.connID]; ok {
			side.points = m.Score
		}
		participants[i] = rating.Participant{
			AccountID: side.accountID,
			Rating:    side.rating,
			Points:    side.points,
			Forfeit:   side.forfeit,
		}
	}
	s.ratings.ApplyDuel(participants[0], participants[1])
}

// Guessing

// SetGuess records a guess for the current round. Guesses outside the
// guess phase, for another round, with an invalid coordinate, or after
// the player's final guess are dropped.
func (s *Session) SetGuess(id model.ConnID, latLong model.LatLong, final bool, round *int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.SessionStateGuess {
		return
	}
	m, ok := s.members[id]
	if !ok {
		return
	}
	if round != nil && *round != s.curRound {
		return
	}
	if !latLong.Valid() {
		return
	}

	guesses := s.rounds[s.curRound-1].Guesses
	if existing, ok := guesses[id]; ok && existing.Final {
		return
	}

	now := s.clock.Now()
	guesses[id] = &model.Guess{
		LatLong: latLong,
		Final:   final,
		Elapsed: now.Sub(s.roundStart),
	}
	m.Final = final

	if final {
		s.broadcast(model.PlaceMessage{Type: model.MsgPlace, ID: id, Final: true, LatLong: latLong})
		s.checkRemaining(now)
	}
}

// checkRemaining shortens the guess phase once everyone, or everyone but
// one, has placed a final guess
func (s *Session) checkRemaining(now time.Time) {
	if s.state != model.SessionStateGuess {
		return
	}

	var last *member
	remaining := 0
	for _, m := range s.members {
		if !m.Final {
			remaining++
			last = m
		}
	}
	left := s.nextEvt.Sub(now)

	if remaining == 0 && left > allFinalThreshold {
		s.nextEvt = now.Add(allFinalDelay)
		s.sendStateUpdate(false)
	}

	if remaining == 1 && left > lastGuesserWindow {
		s.nextEvt = now.Add(lastGuesserWindow)
		s.sendStateUpdate(false)
		last.player.Send(model.NewToast(model.ToastLastGuesser, model.ToastInfo, map[string]any{
			"s": int(lastGuesserWindow / time.Second),
		}))
	}
}

// Messaging

// Chat broadcasts an already filtered message from a member
func (s *Session) Chat(player *model.Player, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[player.ID]
	if !ok {
		return
	}
	s.broadcast(model.ChatMessage{
		Type:    model.MsgChat,
		ID:      m.ID,
		Name:    m.Username,
		Message: message,
	})
}

// Broadcast sends msg to every member
func (s *Session) Broadcast(msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast(msg)
}

func (s *Session) broadcast(msg any) {
	for _, id := range s.order {
		s.members[id].player.Send(msg)
	}
}

func (s *Session) sendStateUpdate(includeLocations bool) {
	msg := s.stateMessage()
	if includeLocations {
		s.addConfig(&msg)
	}
	s.broadcast(msg)
}

func (s *Session) stateMessage() model.GameMessage {
	players := make([]model.Member, 0, len(s.order))
	for _, id := range s.order {
		players = append(players, s.members[id].Member)
	}
	return model.GameMessage{
		Type:        model.MsgGame,
		State:       s.state,
		CurRound:    s.curRound,
		MaxPlayers:  s.capacity(),
		NextEvtTime: unixMilli(s.nextEvt),
		Players:     players,
		Generated:   len(s.locations),
		Map:         s.cfg.Location,
		Results:     slices.Clone(s.results),
	}
}

func (s *Session) addConfig(msg *model.GameMessage) {
	msg.Locations = slices.Clone(s.locations)
	msg.Rounds = s.cfg.Rounds
	msg.TimePerRound = s.cfg.TimePerRound.Milliseconds()
	msg.WaitBetweenRounds = s.cfg.WaitBetweenRounds.Milliseconds()
	msg.StartTime = unixMilli(s.startTime)
	msg.MaxDist = s.cfg.MaxDist
}

// snapshot is the full state sent to a joining member
func (s *Session) snapshot(m *member) model.GameMessage {
	msg := s.stateMessage()
	s.addConfig(&msg)
	public := s.Public
	host := m.Host
	msg.MyID = m.ID
	msg.Public = &public
	msg.Host = &host
	msg.Code = s.Code
	return msg
}

// Queries used by matchmaking and stats

// Info returns a summary of the session
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:       s.ID,
		Code:     s.Code,
		Public:   s.Public,
		State:    s.state,
		CurRound: s.curRound,
		Rounds:   s.cfg.Rounds,
		Players:  len(s.members),
		Ranked:   s.ranked,
	}
}

// OpenSlots returns how many queued players a public session can take now
func (s *Session) OpenSlots() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Public {
		return 0
	}
	switch s.state {
	case model.SessionStateEnd, model.SessionStateShutdown:
		return 0
	}
	if s.cfg.Rounds-s.curRound < minRoundsRemaining {
		return 0
	}
	return max(s.capacity()-len(s.members), 0)
}

// Full reports whether the session is at capacity
func (s *Session) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members) >= s.capacity()
}

// ReadyToAutoStart reports whether a public session can start on its own
func (s *Session) ReadyToAutoStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Public &&
		s.state == model.SessionStateWaiting &&
		len(s.members) >= 2 &&
		len(s.locations) == s.cfg.Rounds
}

func (s *Session) inProgress() bool {
	return s.state == model.SessionStateGetReady || s.state == model.SessionStateGuess
}

func (s *Session) capacity() int {
	if s.Public {
		return min(model.PublicPlayerCap, s.cfg.MaxPlayers)
	}
	return s.cfg.MaxPlayers
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
