package scanner

import (
	"sync"

	"parami-backend/internal/models"
)

type State string

const (
	StateIdle     State = "IDLE"
	StateDrafting State = "DRAFTING"
	StateSyncing  State = "SYNCING"
)

const (
	DefaultHistoryLimit = 500
	DefaultLogLimit     = 200
)

// Session is one operator's scanning context at one branch: at most one draft
// in flight plus the recent history and sync logs. It is not persisted.
type Session struct {
	BranchID string
	Operator string

	mu      sync.Mutex
	state   State
	draft   *models.ScannedItem
	history *bounded[models.ScannedItem]
	logs    *bounded[models.SyncLog]
}

func NewSession(branchID, operator string, historyLimit, logLimit int) *Session {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if logLimit <= 0 {
		logLimit = DefaultLogLimit
	}
	return &Session{
		BranchID: branchID,
		Operator: operator,
		state:    StateIdle,
		history:  newBounded[models.ScannedItem](historyLimit),
		logs:     newBounded[models.SyncLog](logLimit),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveDraft returns a copy of the draft, or nil when there is none.
func (s *Session) ActiveDraft() *models.ScannedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return nil
	}
	d := *s.draft
	return &d
}

// History returns the scan history, newest first.
func (s *Session) History() []models.ScannedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.items()
}

// Logs returns the sync logs, newest first.
func (s *Session) Logs() []models.SyncLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs.items()
}

type sessionKey struct {
	userID   string
	branchID string
}

// SessionStore hands out one Session per user and branch.
type SessionStore struct {
	mu           sync.Mutex
	sessions     map[sessionKey]*Session
	historyLimit int
	logLimit     int
}

func NewSessionStore(historyLimit, logLimit int) *SessionStore {
	return &SessionStore{
		sessions:     make(map[sessionKey]*Session),
		historyLimit: historyLimit,
		logLimit:     logLimit,
	}
}

// Get returns the caller's session, creating it on first use.
func (st *SessionStore) Get(userID, branchID, operator string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	k := sessionKey{userID: userID, branchID: branchID}
	if s, ok := st.sessions[k]; ok {
		return s
	}
	s := NewSession(branchID, operator, st.historyLimit, st.logLimit)
	st.sessions[k] = s
	return s
}
