package daemon

import (
	"sync"

	"github.com/crediton-network/crediton/internal/domain"
	"github.com/crediton-network/crediton/internal/infra/sqlite"
)

// Roster is the production access policy. Privileged roles come from the
// config file and never change at runtime; membership is granted and
// revoked through the engine and persisted in sqlite.
type Roster struct {
	mu        sync.RWMutex
	admins    map[domain.AccountID]bool
	operators map[domain.AccountID]bool
	issuers   map[domain.AccountID]bool
	members   map[domain.AccountID]bool
	store     *sqlite.DB // nil when running without persistence
}

// NewRoster builds the access policy from configured roles, loading any
// persisted membership grants from the store.
func NewRoster(roles RolesConfig, store *sqlite.DB) (*Roster, error) {
	r := &Roster{
		admins:    idSet(roles.Admins),
		operators: idSet(roles.Operators),
		issuers:   idSet(roles.Issuers),
		members:   make(map[domain.AccountID]bool),
		store:     store,
	}
	if store != nil {
		members, err := store.ListMembers()
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			r.members[id] = true
		}
	}
	return r, nil
}

func idSet(ids []string) map[domain.AccountID]bool {
	set := make(map[domain.AccountID]bool, len(ids))
	for _, id := range ids {
		set[domain.AccountID(id)] = true
	}
	return set
}

// IsAdmin reports whether id holds the admin role.
func (r *Roster) IsAdmin(id domain.AccountID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admins[id]
}

// IsOperator reports whether id holds the operator role. Admins qualify.
func (r *Roster) IsOperator(id domain.AccountID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operators[id] || r.admins[id]
}

// IsIssuer reports whether id holds the issuer role. Admins qualify.
func (r *Roster) IsIssuer(id domain.AccountID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.issuers[id] || r.admins[id]
}

// IsMember reports whether id holds a membership grant.
func (r *Roster) IsMember(id domain.AccountID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[id]
}

// GrantMember records a membership grant, persisting it when a store is
// attached.
func (r *Roster) GrantMember(id domain.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		if err := r.store.GrantMember(id); err != nil {
			return err
		}
	}
	r.members[id] = true
	return nil
}

// RevokeMember removes a membership grant.
func (r *Roster) RevokeMember(id domain.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		if err := r.store.RevokeMember(id); err != nil {
			return err
		}
	}
	delete(r.members, id)
	return nil
}
