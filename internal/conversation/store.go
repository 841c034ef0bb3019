package conversation

import (
	"sync"
	"time"
	"unicode/utf8"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultSessionID is used when the caller supplies no conversation id.
const DefaultSessionID = "default"

// Turn is a single (role, text) entry in a conversation history.
type Turn struct {
	Role Role
	Text string
}

// TokenCounter estimates the token cost of a text. The store only needs an
// approximation; callers may plug in a model-specific counter.
type TokenCounter func(text string) int

// ApproxTokenCounter estimates roughly four characters per token, a coarse
// heuristic that is adequate for budget eviction.
func ApproxTokenCounter(text string) int {
	n := utf8.RuneCountInString(text)
	return n/4 + 1
}

type session struct {
	mu          sync.Mutex
	history     []Turn
	tokenBudget int
	createdAt   time.Time
}

// Store is the process-wide registry of conversation sessions. Sessions are
// created lazily on first reference and live until Reset; there is no TTL.
// Operations on different session ids never contend on a session lock.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*session
	tokenBudget int
	count       TokenCounter
}

// Option configures a Store.
type Option func(*Store)

// WithTokenCounter replaces the default token estimator.
func WithTokenCounter(count TokenCounter) Option {
	return func(s *Store) {
		if count != nil {
			s.count = count
		}
	}
}

// NewStore creates an empty registry. tokenBudget is the maximum retained
// token count per session; values <= 0 fall back to a generous default.
func NewStore(tokenBudget int, opts ...Option) *Store {
	if tokenBudget <= 0 {
		tokenBudget = 2048
	}
	s := &Store{
		sessions:    make(map[string]*session),
		tokenBudget: tokenBudget,
		count:       ApproxTokenCounter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getOrCreate returns the session for id, creating it atomically if absent.
// Exactly one session survives a creation race.
func (s *Store) getOrCreate(id string) *session {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{
			tokenBudget: s.tokenBudget,
			createdAt:   time.Now(),
		}
		s.sessions[id] = sess
	}
	return sess
}

// GetOrCreate ensures a session exists for id. It never fails.
func (s *Store) GetOrCreate(id string) {
	s.getOrCreate(id)
}

// Append adds one turn to the session, evicting the oldest turns pair-wise
// when the post-append token count exceeds the budget.
func (s *Store) Append(id string, role Role, text string) {
	sess := s.getOrCreate(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.history = append(sess.history, Turn{Role: role, Text: text})
	s.evictLocked(sess)
}

// AppendExchange adds a (user, assistant) pair under a single lock
// acquisition so a concurrent snapshot never observes half an exchange.
func (s *Store) AppendExchange(id, userText, assistantText string) {
	sess := s.getOrCreate(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.history = append(sess.history,
		Turn{Role: RoleUser, Text: userText},
		Turn{Role: RoleAssistant, Text: assistantText},
	)
	s.evictLocked(sess)
}

// evictLocked removes turns from the oldest end, in (user, assistant) pairs
// where possible to preserve alternation, until the history fits the budget
// or is empty. Caller holds sess.mu.
func (s *Store) evictLocked(sess *session) {
	for len(sess.history) > 0 && s.historyTokens(sess.history) > sess.tokenBudget {
		drop := 1
		if sess.history[0].Role == RoleUser && len(sess.history) > 1 && sess.history[1].Role == RoleAssistant {
			drop = 2
		}
		sess.history = sess.history[drop:]
	}
	if len(sess.history) == 0 {
		sess.history = nil
	}
}

func (s *Store) historyTokens(history []Turn) int {
	total := 0
	for _, t := range history {
		total += s.count(t.Text)
	}
	return total
}

// HistorySnapshot returns a read-only copy of the session history. The copy
// does not reflect later appends. Referencing an unseen id yields an empty
// snapshot and creates the session.
func (s *Store) HistorySnapshot(id string) []Turn {
	sess := s.getOrCreate(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	snapshot := make([]Turn, len(sess.history))
	copy(snapshot, sess.history)
	return snapshot
}

// Reset removes the session entirely. A subsequent GetOrCreate starts
// fresh. Resetting an unknown id is a no-op, so the call is idempotent.
func (s *Store) Reset(id string) {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live sessions, for diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
