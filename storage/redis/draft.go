package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jobify/jobify/core/wizard"
)

type snapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ wizard.SnapshotStore = (*snapshotStore)(nil) // interface compliance check

// NewSnapshotStore keeps wizard snapshots as JSON. Each save renews the ttl; zero means no expiry.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) wizard.SnapshotStore {
	return &snapshotStore{client: client, ttl: ttl}
}

func draftKey(key string) string { return keyPrefix + "draft:" + key }

func (s *snapshotStore) LoadSnapshot(ctx context.Context, key string) (wizard.Snapshot, error) {
	data, err := s.client.Get(ctx, draftKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return wizard.Snapshot{}, wizard.ErrNoSnapshot
		}
		return wizard.Snapshot{}, errors.Wrap(err, "loading draft")
	}
	var snap wizard.Snapshot
	if err = json.Unmarshal(data, &snap); err != nil {
		return wizard.Snapshot{}, errors.Wrap(err, "decoding draft")
	}
	return snap, nil
}

func (s *snapshotStore) SaveSnapshot(ctx context.Context, key string, snap wizard.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	return errors.Wrap(s.client.Set(ctx, draftKey(key), data, s.ttl).Err(), "saving draft")
}

func (s *snapshotStore) DeleteSnapshot(ctx context.Context, key string) error {
	return errors.Wrap(s.client.Del(ctx, draftKey(key)).Err(), "deleting draft")
}
