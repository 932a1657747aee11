/*
Package pow implements a Proof-of-Work gate for anonymous guest connections.

Guest sessions are created lazily on the first WebSocket handshake, so the server asks unauthenticated
clients to solve a SHA-256 leading-zero puzzle before the handshake. A solved challenge yields a
short-lived, single-use proof token that the handshake presents as pow_token.
*/
package pow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// TokenHeaderKey is the HTTP header that may carry the proof token.
	TokenHeaderKey = "X-PoW-Token"

	// TokenQueryKey is the query parameter that may carry the proof token.
	TokenQueryKey = "pow_token"

	// ProofTokenDuration is the validity period of an issued proof token.
	ProofTokenDuration = 30 * time.Second

	// NonceExpiryDuration is the validity period of a challenge nonce.
	NonceExpiryDuration = 5 * time.Minute
)

var (
	// ErrNonceInvalid is returned for unknown, expired or already consumed nonces.
	ErrNonceInvalid = errors.New("nonce expired or invalid")

	// ErrProofInsufficient is returned when the hash does not meet the difficulty.
	ErrProofInsufficient = errors.New("proof does not meet difficulty requirement")
)

// Challenge is handed to a client that must solve a puzzle.
type Challenge struct {
	Nonce      string `json:"nonce"`
	Difficulty int    `json:"difficulty"`
}

// Manager issues challenges and proof tokens. A difficulty of zero disables the gate.
type Manager struct {
	difficulty int

	mu         sync.Mutex
	nonceStore map[string]time.Time
	tokenStore map[string]time.Time

	now func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager and starts its expiry sweep.
func NewManager(difficulty int) *Manager {
	mgr := &Manager{
		difficulty: difficulty,
		nonceStore: make(map[string]time.Time),
		tokenStore: make(map[string]time.Time),
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go mgr.sweepLoop()

	return mgr
}

// Enabled reports whether guests must present a proof token.
func (m *Manager) Enabled() bool {
	return m.difficulty > 0
}

// NewChallenge registers a nonce and returns it with the difficulty.
func (m *Manager) NewChallenge() Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()

	nonce := uuid.New().String()
	m.nonceStore[nonce] = m.now().Add(NonceExpiryDuration)

	return Challenge{Nonce: nonce, Difficulty: m.difficulty}
}

// Verify checks that sha256(nonce+counter) has the required number of leading hex zeros.
// On success the nonce is consumed and a proof token is returned.
func (m *Manager) Verify(nonce, counter string) (string, error) {
	if !Solves(nonce, counter, m.difficulty) {
		return "", ErrProofInsufficient
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.nonceStore[nonce]
	if !ok || m.now().After(expiry) {
		return "", ErrNonceInvalid
	}
	delete(m.nonceStore, nonce)

	token := uuid.New().String()
	m.tokenStore[token] = m.now().Add(ProofTokenDuration)

	return token, nil
}

// Consume reports whether token is a live proof token and invalidates it.
func (m *Manager) Consume(token string) bool {
	if token == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.tokenStore[token]
	if !ok {
		return false
	}
	delete(m.tokenStore, token)

	return !m.now().After(expiry)
}

// Stop terminates the expiry sweep.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Solves reports whether counter solves the challenge nonce at difficulty. Clients run the same check
// while searching for a counter.
func Solves(nonce, counter string, difficulty int) bool {
	hash := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(hash[:]), strings.Repeat("0", difficulty))
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for nonce, expiry := range m.nonceStore {
		if now.After(expiry) {
			delete(m.nonceStore, nonce)
		}
	}
	for token, expiry := range m.tokenStore {
		if now.After(expiry) {
			delete(m.tokenStore, token)
		}
	}
}
