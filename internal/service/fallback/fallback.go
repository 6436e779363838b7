// Package fallback produces assistant replies when no inference result is available.
package fallback

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// TechnicalDifficultyReply answers a turn whose inference call failed.
const TechnicalDifficultyReply = "I'm experiencing some technical difficulties. Please try again or check your API key settings in your Profile."

// EmptyGenerationReply answers a turn whose inference call returned no usable text.
const EmptyGenerationReply = "I'm here to help with your farming questions. Could you provide more details?"

// ErrEmptyPool is returned when a pool file contains no replies.
var ErrEmptyPool = errors.New("fallback pool is empty")

// DefaultPool returns the canned answers used when no API key is configured.
// Each one points the farmer at the Profile settings.
func DefaultPool() []string {
	return []string{
		"That's a great question about farming! Here are some key points to consider... (Connect your Hugging Face API key in Profile for more detailed responses)",
		"For sustainable farming practices, I recommend looking into crop rotation and soil health management. (Upgrade to AI-powered responses in your Profile)",
		"Weather patterns can significantly impact your harvest. Let me help you understand the best practices for your crops. (Enable AI integration for advanced insights)",
		"Precision agriculture tools can really improve your yield efficiency. Would you like specific recommendations? (Connect AI for personalized advice)",
		"Soil testing is crucial for optimal crop growth. I can guide you through the testing process and interpretation. (AI integration available in Profile)",
	}
}

type poolFile struct {
	Replies []string `toml:"replies"`
}

// LoadPool reads a TOML file of the form `replies = ["...", "..."]`.
func LoadPool(path string) ([]string, error) {
	var file poolFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode fallback pool %s: %w", path, err)
	}

	pool := make([]string, 0, len(file.Replies))
	for _, reply := range file.Replies {
		if reply = strings.TrimSpace(reply); reply != "" {
			pool = append(pool, reply)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyPool)
	}
	return pool, nil
}

// Responder picks one reply uniformly at random from a fixed pool.
type Responder struct {
	mu   sync.Mutex
	rng  *rand.Rand
	pool []string
}

// NewResponder builds a Responder. A nil rng seeds one from the runtime.
// An empty pool falls back to DefaultPool.
func NewResponder(pool []string, rng *rand.Rand) *Responder {
	if len(pool) == 0 {
		pool = DefaultPool()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Responder{rng: rng, pool: append([]string(nil), pool...)}
}

// NewSeeded returns a Responder with a deterministic selection sequence.
func NewSeeded(pool []string, seed uint64) *Responder {
	return NewResponder(pool, rand.New(rand.NewPCG(seed, seed)))
}

// Reply returns one sentence from the pool.
func (r *Responder) Reply() string {
	r.mu.Lock()
	idx := r.rng.IntN(len(r.pool))
	r.mu.Unlock()
	return r.pool[idx]
}

// Pool returns a copy of the reply pool.
func (r *Responder) Pool() []string {
	return append([]string(nil), r.pool...)
}
