package presence

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry maps a logical user id to the set of live websocket connection
// ids registered for it. A user with several tabs or devices holds several
// connection ids. State is process-local and intentionally not persisted;
// clients re-register on reconnect.
type Registry struct {
	mutex  sync.RWMutex
	users  map[int64]map[string]struct{}
	logger *logrus.Logger
}

func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		users:  make(map[int64]map[string]struct{}),
		logger: logger,
	}
}

// Register adds connID to the set for userID, creating the set if absent.
func (r *Registry) Register(userID int64, connID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[connID] = struct{}{}

	r.logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"connection_id": connID,
		"connections":   len(set),
	}).Debug("Connection registered")
}

// Unregister removes connID from every user's set and prunes users whose
// set becomes empty.
func (r *Registry) Unregister(connID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for userID, set := range r.users {
		if _, ok := set[connID]; !ok {
			continue
		}
		delete(set, connID)
		if len(set) == 0 {
			delete(r.users, userID)
		}
		r.logger.WithFields(logrus.Fields{
			"user_id":       userID,
			"connection_id": connID,
		}).Debug("Connection unregistered")
	}
}

// Connections returns a snapshot of the live connection ids for userID.
// An unknown user yields an empty slice.
func (r *Registry) Connections(userID int64) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	set := r.users[userID]
	conns := make([]string, 0, len(set))
	for connID := range set {
		conns = append(conns, connID)
	}
	return conns
}

// UserCount returns the number of users with at least one live connection.
func (r *Registry) UserCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.users)
}
