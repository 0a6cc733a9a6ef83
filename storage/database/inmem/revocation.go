package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/jobify/jobify/core/session"
)

type revocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time // {tokenID: expiresAt}
}

var _ session.RevocationList = (*revocationList)(nil) // interface compliance check

func NewRevocationList() session.RevocationList {
	return &revocationList{revoked: make(map[string]time.Time)}
}

func (l *revocationList) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := nowFunc()
	for id, exp := range l.revoked {
		if !exp.After(now) {
			delete(l.revoked, id)
		}
	}
	if expiresAt.After(now) {
		l.revoked[tokenID] = expiresAt
	}
	return nil
}

func (l *revocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.revoked[tokenID]
	return ok && exp.After(nowFunc()), nil
}
