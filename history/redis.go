package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/llms"
)

const keyPrefix = "message_store:"

// RedisStore keeps each session's turns in a Redis list. Entries are JSON
// {"type": "human"|"ai"|"system", "data": {"content": ...}}, newest first,
// the same layout LangChain's RedisChatMessageHistory uses, so histories can
// be shared with clients of that library.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

type storedMessage struct {
	Type string `json:"type"`
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

// NewRedisClient parses url, connects and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("empty redis url")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("could not parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis: %w", err)
	}
	return rdb, nil
}

// NewRedisStore wraps an existing client. A ttl of zero keeps histories forever;
// otherwise every append refreshes the expiry.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *RedisStore) Messages(ctx context.Context, sessionID string) ([]llms.ChatMessage, error) {
	raw, err := s.rdb.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history for session %s: %w", sessionID, err)
	}

	messages := make([]llms.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		msg, err := decodeMessage(raw[i])
		if err != nil {
			return nil, fmt.Errorf("decode history entry for session %s: %w", sessionID, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, messages ...llms.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]interface{}, len(messages))
	for i, msg := range messages {
		encoded, err := encodeMessage(msg)
		if err != nil {
			return err
		}
		values[i] = encoded
	}

	key := s.key(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear history for session %s: %w", sessionID, err)
	}
	return nil
}

func encodeMessage(msg llms.ChatMessage) (string, error) {
	var stored storedMessage
	stored.Type = string(msg.GetType())
	stored.Data.Content = msg.GetContent()
	b, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("encode history message: %w", err)
	}
	return string(b), nil
}

func decodeMessage(raw string) (llms.ChatMessage, error) {
	var stored storedMessage
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	switch llms.ChatMessageType(stored.Type) {
	case llms.ChatMessageTypeHuman:
		return llms.HumanChatMessage{Content: stored.Data.Content}, nil
	case llms.ChatMessageTypeAI:
		return llms.AIChatMessage{Content: stored.Data.Content}, nil
	case llms.ChatMessageTypeSystem:
		return llms.SystemChatMessage{Content: stored.Data.Content}, nil
	default:
		return llms.GenericChatMessage{Content: stored.Data.Content, Role: stored.Type}, nil
	}
}

var _ Store = (*RedisStore)(nil)
