// Package store provides MessageStore implementations: a badger-backed one
// for durable history and an in-memory one for tests and dev wiring.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dkeye/Chatter/internal/core"
	"github.com/dkeye/Chatter/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultHistoryLimit = 50

// BadgerStore persists messages under "msg:{roomID}:{padded-nanos}:{uuid}".
// The 19-digit zero padding keeps keys in chronological order under
// lexicographic comparison; the uuid disambiguates same-nanosecond writes.
type BadgerStore struct {
	db    *badger.DB
	users core.UserDirectory
	limit int
}

func NewBadgerStore(db *badger.DB, users core.UserDirectory, limit int) *BadgerStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &BadgerStore{db: db, users: users, limit: limit}
}

func messageKey(roomID domain.RoomID, at time.Time, id domain.MessageID) []byte {
	return fmt.Appendf(nil, "msg:%s:%019d:%s", roomID, at.UnixNano(), id)
}

func roomPrefix(roomID domain.RoomID) []byte {
	return fmt.Appendf(nil, "msg:%s:", roomID)
}

func (s *BadgerStore) Create(ctx context.Context, roomID domain.RoomID, userID domain.UserID, content string) (domain.Message, error) {
	author, err := s.users.Lookup(ctx, userID)
	if err != nil {
		// The message is still worth keeping if the profile lookup fails.
		log.Warn().Err(err).Str("module", "store").Str("user", string(userID)).Msg("author lookup failed")
		author = domain.User{ID: userID}
	}

	msg := domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		RoomID:    roomID,
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(roomID, msg.CreatedAt, msg.ID), value)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}
	return msg, nil
}

// History pages newest-first. The cursor is the key suffix of the last message
// of the previous page; an empty cursor starts from the latest message. The
// returned cursor is empty once the room is exhausted.
func (s *BadgerStore) History(_ context.Context, roomID domain.RoomID, limit int, cursor string) ([]domain.Message, string, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	prefix := roomPrefix(roomID)

	var raw [][]byte
	var lastKey string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := prefix
		if cursor == "" {
			// Seek past every possible timestamp for this room.
			seekKey = append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		} else {
			seekKey = append(append([]byte{}, prefix...), []byte(cursor)...)
		}

		it.Seek(seekKey)
		if cursor != "" && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix) && len(raw) < limit; it.Next() {
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			if err := item.Value(func(val []byte) error {
				raw = append(raw, append([]byte{}, val...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("read history: %w", err)
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var msg domain.Message
		if err := json.Unmarshal(b, &msg); err != nil {
			return nil, "", fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	if len(messages) < limit {
		lastKey = ""
	}
	return messages, lastKey, nil
}
