package model

import (
	"slices"
	"sync"
	"time"
)

// ConnID uniquely identifies a live connection
type ConnID string

// Screen is the client view a player reports being on
type Screen string

const (
	ScreenHome         Screen = "home"
	ScreenSingleplayer Screen = "singleplayer"
	ScreenMultiplayer  Screen = "multiplayer"
)

// Valid reports whether the screen is one the client is allowed to report
func (s Screen) Valid() bool {
	switch s {
	case ScreenHome, ScreenSingleplayer, ScreenMultiplayer:
		return true
	}
	return false
}

// Conn is the outbound half of a client connection
type Conn interface {
	// Send queues a message for delivery; it never blocks
	Send(msg any)
	Close()
}

// Identity is the part of a player filled in by verification
type Identity struct {
	Verified  bool
	AccountID AccountID // empty for guests
	Name      string
	Rating    int
	League    string
	Supporter bool
}

// IsGuest reports whether the identity has no backing account
func (i Identity) IsGuest() bool {
	return i.AccountID == ""
}

// Social is a player's cached view of their social graph
type Social struct {
	Friends        []FriendRef
	Sent           []FriendRef
	Received       []FriendRef
	AllowFriendReq bool
}

// Clone returns a deep copy safe to hand outside the player lock
func (s Social) Clone() Social {
	return Social{
		Friends:        slices.Clone(s.Friends),
		Sent:           slices.Clone(s.Sent),
		Received:       slices.Clone(s.Received),
		AllowFriendReq: s.AllowFriendReq,
	}
}

// Player is the server-side state of one live connection.
// Fields are guarded by mu; use the accessor methods.
type Player struct {
	ID   ConnID
	conn Conn

	mu              sync.RWMutex
	identity        Identity
	sessionID       SessionID
	queued          bool
	screen          Screen
	lastChat        time.Time
	lastPong        time.Time
	lastAllowChange time.Time
	lastInvite      time.Time
	social          Social
}

// NewPlayer creates an unverified player for a freshly opened connection
func NewPlayer(id ConnID, conn Conn, now time.Time) *Player {
	return &Player{
		ID:       id,
		conn:     conn,
		screen:   ScreenHome,
		lastPong: now,
		social:   Social{AllowFriendReq: true},
	}
}

// Send delivers a message to the player's connection
func (p *Player) Send(msg any) {
	if p.conn == nil {
		return
	}
	p.conn.Send(msg)
}

// Close closes the player's connection
func (p *Player) Close() {
	if p.conn == nil {
		return
	}
	p.conn.Close()
}

func (p *Player) Identity() Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity
}

func (p *Player) SetIdentity(id Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = id
}

// SetRating updates the cached rating and league after a rating change
func (p *Player) SetRating(rating int, league string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity.Rating = rating
	p.identity.League = league
}

func (p *Player) SessionID() SessionID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}

// ClaimSession assigns the player to a session if they are not in one
func (p *Player) ClaimSession(id SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionID != "" {
		return false
	}
	p.sessionID = id
	p.queued = false
	return true
}

// ReleaseSession clears the session id if it still matches id
func (p *Player) ReleaseSession(id SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionID == id {
		p.sessionID = ""
	}
}

func (p *Player) Queued() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.queued
}

func (p *Player) SetQueued(queued bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queued = queued
}

func (p *Player) Screen() Screen {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.screen
}

func (p *Player) SetScreen(s Screen) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screen = s
}

// AllowChat records a chat message at now if at least minGap has passed
// since the previous one
func (p *Player) AllowChat(now time.Time, minGap time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if now.Sub(p.lastChat) < minGap {
		return false
	}
	p.lastChat = now
	return true
}

func (p *Player) TouchPong(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPong = now
}

func (p *Player) LastPong() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPong
}

// AllowPreferenceChange records a preference change at now unless one
// happened within minGap; it returns the remaining wait when refused
func (p *Player) AllowPreferenceChange(now time.Time, minGap time.Duration) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if elapsed := now.Sub(p.lastAllowChange); elapsed < minGap {
		return minGap - elapsed, false
	}
	p.lastAllowChange = now
	return 0, true
}

// AllowInvite records an incoming invite at now unless one arrived within
// minGap; it returns the remaining wait when refused
func (p *Player) AllowInvite(now time.Time, minGap time.Duration) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if elapsed := now.Sub(p.lastInvite); elapsed < minGap {
		return minGap - elapsed, false
	}
	p.lastInvite = now
	return 0, true
}

// Social returns a copy of the player's social lists
func (p *Player) Social() Social {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.social.Clone()
}

// UpdateSocial mutates the social lists under the player lock
func (p *Player) UpdateSocial(fn func(*Social)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.social)
}
