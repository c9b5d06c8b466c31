package model

// MaxFriendListSize bounds friends, sent and received lists per account
const MaxFriendListSize = 100

// FriendRef is a resolved counterpart in a player's social lists
type FriendRef struct {
	ID        AccountID `json:"id"`
	Name      string    `json:"name"`
	Supporter bool      `json:"supporter"`
	// Online and SocketID are recomputed from the registry on every snapshot
	Online   bool   `json:"online"`
	SocketID ConnID `json:"socketId,omitempty"`
}

// EdgeStatus is the state of the single edge between two accounts
type EdgeStatus string

const (
	EdgePending  EdgeStatus = "pending"
	EdgeAccepted EdgeStatus = "accepted"
)

// FriendEdge is the authoritative relationship between two accounts.
// For pending edges From is the requester and To the recipient.
type FriendEdge struct {
	From   AccountID  `json:"from"`
	To     AccountID  `json:"to"`
	Status EdgeStatus `json:"status"`
}

// Other returns the counterpart of id on this edge
func (e FriendEdge) Other(id AccountID) AccountID {
	if e.From == id {
		return e.To
	}
	return e.From
}

// EdgeKey orders an account pair so both directions map to one edge
func EdgeKey(a, b AccountID) (AccountID, AccountID) {
	if a < b {
		return a, b
	}
	return b, a
}

// Relationships is an account's social graph split into the three lists
type Relationships struct {
	Friends  []AccountID
	Sent     []AccountID
	Received []AccountID
}

// RelationshipsFor splits edges touching id into the three lists
func RelationshipsFor(id AccountID, edges []FriendEdge) Relationships {
	var rel Relationships
	for _, e := range edges {
		switch {
		case e.Status == EdgeAccepted:
			rel.Friends = append(rel.Friends, e.Other(id))
		case e.From == id:
			rel.Sent = append(rel.Sent, e.To)
		case e.To == id:
			rel.Received = append(rel.Received, e.From)
		}
	}
	return rel
}
