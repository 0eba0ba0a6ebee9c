package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"medinexa/internal/domain"

	"github.com/redis/go-redis/v9"
)

// CompletedStorageKey identifies the finalized intake awaiting checkout
const CompletedStorageKey = "intakeCompleted_v1"

// ErrNoCompletedIntake is returned when checkout is attempted without a finished intake
var ErrNoCompletedIntake = errors.New("no completed intake")

// CompletedIntake is the hand-off record kept between intake completion and order creation
type CompletedIntake struct {
	PatientInfo    domain.PatientInfo    `json:"patientInfo"`
	Answers        domain.Answers        `json:"intakeAnswers"`
	Profile        domain.PatientProfile `json:"profile"`
	Recommendation domain.Recommendation `json:"recommendation"`
	CompletedAt    time.Time             `json:"completedAt"`
}

// Store persists flow state per session. Entries never expire.
type Store interface {
	Load(ctx context.Context, sessionID string) (FlowState, error)
	Save(ctx context.Context, sessionID string, state FlowState) error
	Clear(ctx context.Context, sessionID string) error

	SaveCompleted(ctx context.Context, sessionID string, completed CompletedIntake) error
	LoadCompleted(ctx context.Context, sessionID string) (*CompletedIntake, error)
	ClearCompleted(ctx context.Context, sessionID string) error
}

func flowKey(sessionID string) string {
	return StorageKey + ":" + sessionID
}

func completedKey(sessionID string) string {
	return CompletedStorageKey + ":" + sessionID
}

// decodeFlow falls back to a fresh flow when the stored payload is unreadable
func decodeFlow(raw []byte) FlowState {
	var state FlowState
	if err := json.Unmarshal(raw, &state); err != nil || state.CurrentStepIndex < 0 {
		return NewFlowState()
	}
	if state.Answers == nil {
		state.Answers = domain.Answers{}
	}
	return state
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a flow store backed by redis
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Load(ctx context.Context, sessionID string) (FlowState, error) {
	raw, err := s.client.Get(ctx, flowKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewFlowState(), nil
	}
	if err != nil {
		return FlowState{}, fmt.Errorf("failed to load intake flow: %w", err)
	}
	return decodeFlow(raw), nil
}

func (s *redisStore) Save(ctx context.Context, sessionID string, state FlowState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode intake flow: %w", err)
	}
	if err := s.client.Set(ctx, flowKey(sessionID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save intake flow: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, flowKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear intake flow: %w", err)
	}
	return nil
}

func (s *redisStore) SaveCompleted(ctx context.Context, sessionID string, completed CompletedIntake) error {
	raw, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("failed to encode completed intake: %w", err)
	}
	if err := s.client.Set(ctx, completedKey(sessionID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save completed intake: %w", err)
	}
	return nil
}

func (s *redisStore) LoadCompleted(ctx context.Context, sessionID string) (*CompletedIntake, error) {
	raw, err := s.client.Get(ctx, completedKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoCompletedIntake
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load completed intake: %w", err)
	}

	var completed CompletedIntake
	if err := json.Unmarshal(raw, &completed); err != nil {
		return nil, ErrNoCompletedIntake
	}
	return &completed, nil
}

func (s *redisStore) ClearCompleted(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, completedKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear completed intake: %w", err)
	}
	return nil
}

// MemoryStore keeps encoded flow state in process memory. Used when redis is
// not configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	return raw, ok
}

func (s *MemoryStore) set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) del(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (FlowState, error) {
	raw, ok := s.get(flowKey(sessionID))
	if !ok {
		return NewFlowState(), nil
	}
	return decodeFlow(raw), nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, state FlowState) error {
	if err := s.set(flowKey(sessionID), state); err != nil {
		return fmt.Errorf("failed to encode intake flow: %w", err)
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.del(flowKey(sessionID))
	return nil
}

func (s *MemoryStore) SaveCompleted(_ context.Context, sessionID string, completed CompletedIntake) error {
	if err := s.set(completedKey(sessionID), completed); err != nil {
		return fmt.Errorf("failed to encode completed intake: %w", err)
	}
	return nil
}

func (s *MemoryStore) LoadCompleted(_ context.Context, sessionID string) (*CompletedIntake, error) {
	raw, ok := s.get(completedKey(sessionID))
	if !ok {
		return nil, ErrNoCompletedIntake
	}
	var completed CompletedIntake
	if err := json.Unmarshal(raw, &completed); err != nil {
		return nil, ErrNoCompletedIntake
	}
	return &completed, nil
}

func (s *MemoryStore) ClearCompleted(_ context.Context, sessionID string) error {
	s.del(completedKey(sessionID))
	return nil
}
