package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

const (
	transcriptKeyPrefix = "docchat:transcript:"
	ownerKeyPrefix      = "docchat:owner:"
)

// ErrTranscriptNotFound is returned when no transcript is stored for a conversation.
var ErrTranscriptNotFound = errors.New("transcript not found")

// TranscriptRepository mirrors conversation transcripts into Redis so they
// survive eviction from memory.
type TranscriptRepository interface {
	Append(ctx context.Context, conversationID string, msg domain.Message) error
	List(ctx context.Context, conversationID string, after int) ([]domain.Message, error)
	Delete(ctx context.Context, conversationID string) error
	SetOwner(ctx context.Context, conversationID, subjectID string) error
	Owner(ctx context.Context, conversationID string) (string, error)
}

type transcriptRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTranscriptRepository builds a Redis backed transcript store. A zero ttl
// keeps transcripts forever.
func NewTranscriptRepository(client *redis.Client, ttl time.Duration) TranscriptRepository {
	return &transcriptRepository{client: client, ttl: ttl}
}

func transcriptKey(conversationID string) string {
	return transcriptKeyPrefix + conversationID
}

func (r *transcriptRepository) Append(ctx context.Context, conversationID string, msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := transcriptKey(conversationID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// List returns entries with Seq >= after, ordered by Seq. Background polls
// may push entries slightly out of order.
func (r *transcriptRepository) List(ctx context.Context, conversationID string, after int) ([]domain.Message, error) {
	raw, err := r.client.LRange(ctx, transcriptKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		if msg.Seq >= after {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *transcriptRepository) Delete(ctx context.Context, conversationID string) error {
	return r.client.Del(ctx, transcriptKey(conversationID), ownerKeyPrefix+conversationID).Err()
}

func (r *transcriptRepository) SetOwner(ctx context.Context, conversationID, subjectID string) error {
	return r.client.Set(ctx, ownerKeyPrefix+conversationID, subjectID, r.ttl).Err()
}

// Owner returns the subject a stored transcript belongs to.
func (r *transcriptRepository) Owner(ctx context.Context, conversationID string) (string, error) {
	owner, err := r.client.Get(ctx, ownerKeyPrefix+conversationID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTranscriptNotFound
	}
	return owner, err
}
