package fallback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyDrawsFromPool(t *testing.T) {
	responder := NewResponder(nil, nil)
	pool := DefaultPool()

	for i := 0; i < 50; i++ {
		assert.Contains(t, pool, responder.Reply())
	}
}

func TestSeededResponderIsDeterministic(t *testing.T) {
	first := NewSeeded(nil, 42)
	second := NewSeeded(nil, 42)

	for i := 0; i < 10; i++ {
		assert.Equal(t, first.Reply(), second.Reply())
	}
}

func TestReplyCoversWholePool(t *testing.T) {
	responder := NewSeeded(nil, 7)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		seen[responder.Reply()] = true
	}
	assert.Len(t, seen, len(DefaultPool()))
}

func TestFixedRepliesAreOutsidePool(t *testing.T) {
	pool := DefaultPool()
	assert.NotContains(t, pool, TechnicalDifficultyReply)
	assert.NotContains(t, pool, EmptyGenerationReply)
}

func TestLoadPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.toml")
	content := "replies = [\"Rotate your crops.\", \"  \", \"Mulch keeps moisture in.\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	pool, err := LoadPool(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rotate your crops.", "Mulch keeps moisture in."}, pool)
}

func TestLoadPoolRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.toml")
	require.NoError(t, os.WriteFile(path, []byte("replies = []\n"), 0o600))

	_, err := LoadPool(path)
	assert.ErrorIs(t, err, ErrEmptyPool)
}
