package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	goaway "github.com/TwiN/go-away"

	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/model"
)

const (
	MaxMessageLength = 200
	// MinGap is the minimum time between two messages from one player
	MinGap = 500 * time.Millisecond
)

// Filter cleans user-supplied text before it is shown to others
type Filter interface {
	Clean(text string) string
}

// ProfanityFilter censors profane words using go-away's dictionary plus
// any extra words the server was configured with
type ProfanityFilter struct {
	detector *goaway.ProfanityDetector
}

// NewProfanityFilter creates a filter; extra words extend the default list
func NewProfanityFilter(extra ...string) *ProfanityFilter {
	detector := goaway.NewProfanityDetector()
	if len(extra) > 0 {
		words := append([]string(nil), goaway.DefaultProfanities...)
		for _, w := range extra {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				words = append(words, w)
			}
		}
		detector = detector.WithCustomDictionary(words, goaway.DefaultFalsePositives, goaway.DefaultFalseNegatives)
	}
	return &ProfanityFilter{detector: detector}
}

func (f *ProfanityFilter) Clean(text string) string {
	return f.detector.Censor(text)
}

// Service validates and filters chat messages
type Service struct {
	filter Filter
	clock  clock.Clock
}

// New creates a new ChatService
func New(filter Filter, clock clock.Clock) *Service {
	return &Service{
		filter: filter,
		clock:  clock,
	}
}

// Prepare checks a message from player and returns the text to broadcast.
// It returns false when the message is empty, too long or sent too soon
// after the previous one.
func (s *Service) Prepare(player *model.Player, message string) (string, bool) {
	n := utf8.RuneCountInString(message)
	if n < 1 || n > MaxMessageLength {
		return "", false
	}
	if !player.AllowChat(s.clock.Now(), MinGap) {
		return "", false
	}
	return s.filter.Clean(message), true
}
