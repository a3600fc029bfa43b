package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labhub-io/labhub/internal/notification/domain"
)

// Connection is one live push session. A user may hold several at once
// (multiple tabs); the token tells them apart.
type Connection struct {
	UserID    int64
	Token     string
	CreatedAt time.Time

	ch domain.Channel
}

// userSessions holds one user's connections behind its own lock, so
// register/send/evict for different users never contend with each other.
type userSessions struct {
	mu    sync.Mutex
	conns map[string]*Connection
	// pruned marks an entry already removed from the registry map; a
	// Register that raced the prune must start over with a fresh entry.
	pruned bool
}

// Registry tracks every live push connection on this process and delivers
// payloads to them. It is owned by a single long-lived service instance and
// injected into whatever needs it; connections are never shared across
// instances.
type Registry struct {
	logger *slog.Logger
	users  sync.Map // int64 -> *userSessions
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger.With("component", "registry")}
}

// Register adds a connection for the user. An empty token gets a generated
// one. Existing connections for the same user are left alone; re-using a
// token replaces (and closes) the previous session holding it.
func (r *Registry) Register(userID int64, token string, ch domain.Channel) *Connection {
	if token == "" {
		token = uuid.NewString()
	}

	conn := &Connection{
		UserID:    userID,
		Token:     token,
		CreatedAt: time.Now(),
		ch:        ch,
	}

	for {
		sessionsAny, _ := r.users.LoadOrStore(userID, &userSessions{conns: make(map[string]*Connection)})
		sessions := sessionsAny.(*userSessions)

		sessions.mu.Lock()
		if sessions.pruned {
			sessions.mu.Unlock()
			continue
		}
		if prev, ok := sessions.conns[token]; ok {
			_ = prev.ch.Close()
			activeConnectionsGauge.Dec()
		}
		sessions.conns[token] = conn
		sessions.mu.Unlock()
		break
	}

	activeConnectionsGauge.Inc()
	r.logger.Info("Connection registered", "user_id", userID, "token", token)
	return conn
}

// Unregister removes a connection without closing its channel (the caller
// owns the transport teardown). Removal is identity-aware: only the exact
// registered connection is removed, so the teardown of a session that was
// replaced under the same token cannot evict its successor. Idempotent.
func (r *Registry) Unregister(conn *Connection) {
	sessionsAny, ok := r.users.Load(conn.UserID)
	if !ok {
		return
	}
	sessions := sessionsAny.(*userSessions)

	sessions.mu.Lock()
	if cur, ok := sessions.conns[conn.Token]; ok && cur == conn {
		delete(sessions.conns, conn.Token)
		activeConnectionsGauge.Dec()
		r.logger.Info("Connection unregistered", "user_id", conn.UserID, "token", conn.Token)
	}
	r.pruneLocked(conn.UserID, sessions)
	sessions.mu.Unlock()
}

// Close removes a connection and closes its channel. Idempotent.
func (r *Registry) Close(userID int64, token string) {
	sessionsAny, ok := r.users.Load(userID)
	if !ok {
		return
	}
	sessions := sessionsAny.(*userSessions)

	sessions.mu.Lock()
	conn, ok := sessions.conns[token]
	if ok {
		delete(sessions.conns, token)
		activeConnectionsGauge.Dec()
	}
	r.pruneLocked(userID, sessions)
	sessions.mu.Unlock()

	if ok {
		_ = conn.ch.Close()
		r.logger.Info("Connection closed", "user_id", userID, "token", token)
	}
}

// SendToUser writes the payload to every live connection the user has on
// this process and returns how many writes succeeded. Connections whose
// write fails are evicted. A user with no connections here is simply
// offline on this instance: count 0, no error.
func (r *Registry) SendToUser(userID int64, payload []byte) int {
	sessionsAny, ok := r.users.Load(userID)
	if !ok {
		return 0
	}
	return r.sendAll(userID, sessionsAny.(*userSessions), payload)
}

// Broadcast writes the payload to every live connection on this process.
func (r *Registry) Broadcast(payload []byte) int {
	delivered := 0
	r.users.Range(func(key, sessionsAny any) bool {
		delivered += r.sendAll(key.(int64), sessionsAny.(*userSessions), payload)
		return true
	})
	return delivered
}

func (r *Registry) sendAll(userID int64, sessions *userSessions, payload []byte) int {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()

	delivered := 0
	for token, conn := range sessions.conns {
		if err := conn.ch.Write(payload); err != nil {
			// A broken or stalled peer is evicted, never reported upward.
			delete(sessions.conns, token)
			activeConnectionsGauge.Dec()
			connectionsEvictedCounter.Inc()
			_ = conn.ch.Close()
			r.logger.Warn("Evicted connection after write failure",
				"user_id", conn.UserID, "token", token, "error", err)
			continue
		}
		delivered++
	}
	r.pruneLocked(userID, sessions)
	return delivered
}

// pruneLocked drops a drained user entry from the registry map so user
// churn does not grow it without bound. Caller holds sessions.mu.
func (r *Registry) pruneLocked(userID int64, sessions *userSessions) {
	if len(sessions.conns) == 0 && !sessions.pruned {
		sessions.pruned = true
		r.users.Delete(userID)
	}
}

// ConnectionCount returns the number of live connections on this process.
func (r *Registry) ConnectionCount() int {
	total := 0
	r.users.Range(func(_, sessionsAny any) bool {
		sessions := sessionsAny.(*userSessions)
		sessions.mu.Lock()
		total += len(sessions.conns)
		sessions.mu.Unlock()
		return true
	})
	return total
}

// CloseAll tears down every connection, used during shutdown.
func (r *Registry) CloseAll() {
	r.users.Range(func(key, sessionsAny any) bool {
		sessions := sessionsAny.(*userSessions)
		sessions.mu.Lock()
		for token, conn := range sessions.conns {
			delete(sessions.conns, token)
			activeConnectionsGauge.Dec()
			_ = conn.ch.Close()
		}
		sessions.pruned = true
		r.users.Delete(key)
		sessions.mu.Unlock()
		return true
	})
}
