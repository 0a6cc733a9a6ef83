package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jobify/jobify/core/session"
)

type revocationList struct {
	client  *redis.Client
	nowFunc func() time.Time // mockable
}

var _ session.RevocationList = (*revocationList)(nil) // interface compliance check

// NewRevocationList stores revoked token ids as keys expiring with their token.
func NewRevocationList(client *redis.Client) session.RevocationList {
	return &revocationList{client: client, nowFunc: time.Now}
}

func revokedKey(tokenID string) string { return keyPrefix + "revoked:" + tokenID }

func (l *revocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(l.nowFunc())
	if ttl <= 0 {
		return nil // expired already
	}
	return errors.Wrap(l.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err(), "revoking token")
}

func (l *revocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking revoked token")
	}
	return n > 0, nil
}
