package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

// PrintFrame outputs one socket frame as it arrives
func (o *Output) PrintFrame(frame Frame) {
	now := time.Now()

	if o.format == "json" {
		data, _ := json.Marshal(map[string]any{"time": now, "frame": frame})
		fmt.Println(string(data))
		return
	}

	timestamp := now.Format("2006-01-02 15:04:05")
	fmt.Printf("[%s] %s: %s\n", timestamp, frame.Type(), summarize(frame))
}

// summarize renders a frame's fields on one line, truncated for display
func summarize(frame Frame) string {
	rest := maps.Clone(frame)
	delete(rest, "type")
	data, _ := json.Marshal(rest)

	s := string(data)
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case StatsResult:
		o.printStats(v)
	case SessionList:
		o.printSessionList(v)
	case Session:
		o.printSession(v)
	case AccountResult:
		o.printAccount(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// StatsResult response type
type StatsResult struct {
	Players     int            `json:"players"`
	Queued      int            `json:"queued"`
	Sessions    map[string]int `json:"sessions"`
	Maintenance bool           `json:"maintenance"`
}

// Session response type
type Session struct {
	ID       string `json:"id"`
	Public   bool   `json:"public"`
	State    string `json:"state"`
	CurRound int    `json:"cur_round"`
	Rounds   int    `json:"rounds"`
	Players  int    `json:"players"`
	Ranked   bool   `json:"ranked"`
}

// SessionList response type
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

// AccountResult describes a newly created account
type AccountResult struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
	Rating   int    `json:"rating"`
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}

func (o *Output) printStats(s StatsResult) {
	fmt.Printf("Players online: %d\n", s.Players)
	fmt.Printf("Queued: %d\n", s.Queued)
	if s.Maintenance {
		fmt.Println("Maintenance: on")
	}

	total := 0
	for _, n := range s.Sessions {
		total += n
	}
	fmt.Printf("Sessions (%d):\n", total)
	for _, state := range slices.Sorted(maps.Keys(s.Sessions)) {
		fmt.Printf("  - %s: %d\n", state, s.Sessions[state])
	}
}

func (o *Output) printSessionList(l SessionList) {
	if len(l.Sessions) == 0 {
		fmt.Println("No sessions")
		return
	}
	for _, s := range l.Sessions {
		fmt.Printf("%s  %s\n", s.ID, describeSession(s))
	}
}

func (o *Output) printSession(s Session) {
	fmt.Printf("Session: %s\n", s.ID)
	fmt.Println(describeSession(s))
}

func describeSession(s Session) string {
	var b strings.Builder
	if s.Public {
		b.WriteString("public")
	} else {
		b.WriteString("private")
	}
	if s.Ranked {
		b.WriteString(" ranked")
	}
	fmt.Fprintf(&b, " %s round %d/%d, %d players", s.State, s.CurRound, s.Rounds, s.Players)
	return b.String()
}

func (o *Output) printAccount(a AccountResult) {
	fmt.Printf("Account: %s (%s)\n", a.Username, a.ID)
	fmt.Printf("Rating: %d\n", a.Rating)
	fmt.Printf("Secret: %s\n", a.Secret)
}
