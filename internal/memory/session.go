// Package memory implements C9 (Conversation Memory): a Redis-backed session
// store with turn tracking and three-layer coreference resolution, grounded
// on original_source/memory/conversation_memory.py, reimplemented over
// go-redis/v8 (the teacher's session/cache backend) instead of the `redis`
// Python client, and anthropic.Anthropic replaced by the generalised
// pkg/llm.Client tiered-model abstraction.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bvrag/internal/config"
	"bvrag/internal/query"
	"bvrag/pkg/log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const activeRegulationsMax = 20 // LRU trim bound (spec.md §4.9)

// Turn is one message in a session's history.
type Turn struct {
	TurnID    string        `json:"turn_id"`
	Role      string        `json:"role"` // "user" | "assistant"
	Content   string        `json:"content"`
	Timestamp int64         `json:"timestamp"`
	InputMode string        `json:"input_mode"` // "text" | "voice"
	Metadata  TurnMetadata  `json:"metadata"`
}

// TurnMetadata carries the assistant-turn annotations C9/C11 read back.
type TurnMetadata struct {
	RetrievedRegulations []string `json:"retrieved_regulations,omitempty"`
	Citations            []string `json:"citations,omitempty"`
	Confidence           string   `json:"confidence,omitempty"`
	EnhancedQuery        string   `json:"enhanced_query,omitempty"`
	QueryCategory        string   `json:"query_category,omitempty"`
}

// Session is one conversation's full state (spec.md §4.9).
type Session struct {
	SessionID        string   `json:"session_id"`
	Turns            []Turn   `json:"turns"`
	ActiveRegulations []string `json:"active_regulations"`
	ActiveTopics     []string `json:"active_topics"`
	ActiveShipType   string   `json:"active_ship_type"`
}

// Store persists sessions, keyed by session identifier, with TTL-based
// expiry (spec.md §4.9: "No cross-session reads").
type Store interface {
	GetOrCreate(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, session *Session) error
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs C9's persistence layer over the teacher's Redis client.
func NewStore(client *redis.Client, cfg config.MemoryConfig) Store {
	ttlHours := cfg.SessionTTLHours
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &redisStore{client: client, ttl: time.Duration(ttlHours) * time.Hour}
}

func sessionKey(id string) string { return "bvrag:session:" + id }

func (s *redisStore) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		session := &Session{SessionID: sessionID}
		if err := s.Save(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}
	if err != nil {
		log.Errorf("[ConversationMemory] 读取会话失败: %v", err)
		return nil, fmt.Errorf("session store unavailable: %w", err)
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		log.Errorf("[ConversationMemory] 解析会话失败: %v", err)
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	return &session, nil
}

func (s *redisStore) Save(ctx context.Context, session *Session) error {
	b, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.SessionID), b, s.ttl).Err(); err != nil {
		log.Errorf("[ConversationMemory] 保存会话失败: %v", err)
		return fmt.Errorf("session store unavailable: %w", err)
	}
	return nil
}

// citationRe extracts bracketed regulation citations from generated answer
// text, e.g. "[SOLAS II-2/Reg 9.2.4]" (spec.md §4.9 "regex-extracts additional
// citations from the answer text").
var citationRe = regexp.MustCompile(`\[([A-Z][A-Za-z0-9 /.\-]{2,60})\]`)

// AppendUserTurn records a user turn and updates active_ship_type/active_topics
// by keyword scan, reusing C4's ship-type extraction (spec.md §4.9).
func AppendUserTurn(session *Session, content, inputMode string) {
	classification := query.Classify(content)
	if classification.ShipInfo.Type != "" {
		session.ActiveShipType = classification.ShipInfo.Type
	}
	enhancement := query.Enhance(content)
	session.ActiveTopics = mergeTopics(session.ActiveTopics, enhancement.MatchedTerms)

	session.Turns = append(session.Turns, Turn{
		TurnID:    uuid.New().String(),
		Role:      "user",
		Content:   content,
		Timestamp: time.Now().Unix(),
		InputMode: inputMode,
	})
}

// AppendAssistantTurn records an assistant turn, pushing retrieved/extracted
// regulations onto active_regulations with LRU trimming at 20.
func AppendAssistantTurn(session *Session, content, inputMode string, meta TurnMetadata) {
	regs := append([]string(nil), meta.RetrievedRegulations...)
	for _, m := range citationRe.FindAllStringSubmatch(content, -1) {
		regs = append(regs, strings.TrimSpace(m[1]))
	}
	session.ActiveRegulations = pushLRU(session.ActiveRegulations, regs, activeRegulationsMax)

	session.Turns = append(session.Turns, Turn{
		TurnID:    uuid.New().String(),
		Role:      "assistant",
		Content:   content,
		Timestamp: time.Now().Unix(),
		InputMode: inputMode,
		Metadata:  meta,
	})
}

func mergeTopics(existing []string, fresh []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range fresh {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// pushLRU appends newItems (skipping duplicates already present) and keeps
// only the most recent `max` entries.
func pushLRU(existing []string, newItems []string, max int) []string {
	out := append([]string(nil), existing...)
	seen := make(map[string]bool, len(out))
	for _, r := range out {
		seen[r] = true
	}
	for _, r := range newItems {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}
