package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketURL(t *testing.T) {
	for base, want := range map[string]string{
		"http://localhost:8080/":  "ws://localhost:8080/wg",
		"https://geo.example.com": "wss://geo.example.com/wg",
		"ws://127.0.0.1:9000":     "ws://127.0.0.1:9000/wg",
	} {
		assert.Equal(t, want, NewClient(base).SocketURL(), base)
	}
}

func TestFrameAccessors(t *testing.T) {
	var frame Frame
	require.NoError(t, json.Unmarshal([]byte(`{"type":"game","state":"guess","curRound":3}`), &frame))

	assert.Equal(t, "game", frame.Type())
	assert.Equal(t, "guess", frame.String("state"))
	assert.Equal(t, 3, frame.Int("curRound"))
	assert.Zero(t, frame.Int("missing"))
	assert.Empty(t, frame.String("curRound"))
}

func TestSummarizeDropsTypeAndTruncates(t *testing.T) {
	assert.Equal(t, `{"elo":1016}`, summarize(Frame{"type": "elo", "elo": 1016}))

	long := Frame{"type": "chat", "message": string(make([]byte, 200))}
	assert.Len(t, summarize(long), 103)
}

func TestLoadTokenTrimsFile(t *testing.T) {
	c := &Config{TokenFile: filepath.Join(t.TempDir(), "token")}
	require.NoError(t, c.LoadToken())
	assert.Empty(t, c.Token)

	require.NoError(t, os.WriteFile(c.TokenFile, []byte("secret123\n"), 0600))
	require.NoError(t, c.LoadToken())
	assert.Equal(t, "secret123", c.Token)

	c.Token = "from-flag"
	require.NoError(t, c.LoadToken())
	assert.Equal(t, "from-flag", c.Token)
}

func TestSaveTokenCreatesDirectory(t *testing.T) {
	c := &Config{TokenFile: filepath.Join(t.TempDir(), "nested", "token")}
	require.NoError(t, c.SaveToken("abc"))

	data, err := os.ReadFile(c.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, "abc", c.Token)
}
