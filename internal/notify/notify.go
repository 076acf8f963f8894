package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/namespace"
)

// MsgTypeMatchFound 클라이언트에 내려가는 WebSocket 메시지 타입
const MsgTypeMatchFound = "match_found"

// MatchFoundEvent 매치 성립 이벤트
type MatchFoundEvent struct {
	PlayerID  string      `json:"playerId"`
	SessionID string      `json:"sessionId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// LocalSink 이 인스턴스에 접속한 플레이어에게 메시지를 전달하는 통로 (WebSocket Hub)
type LocalSink interface {
	SendToPlayer(playerID string, msgType string, payload interface{})
}

// Service 매치 성립 알림 전달자.
// 이벤트를 Redis Pub/Sub으로 전 인스턴스에 퍼뜨리고, 각 인스턴스는 자기에게
// 접속한 플레이어에게만 전달한다. 미접속 플레이어의 알림은 버린다 (best-effort).
type Service struct {
	client     *redis.Client
	sink       LocalSink
	logger     *zap.Logger
	instanceID string

	eventChannel string
	stopChan     chan struct{}
	cancelSub    context.CancelFunc
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

// NewService 알림 서비스 생성
func NewService(client *redis.Client, ns *namespace.Resolver, sink LocalSink, logger *zap.Logger) *Service {
	return &Service{
		client:       client,
		sink:         sink,
		logger:       logger,
		instanceID:   uuid.New().String(),
		eventChannel: ns.EventChannel(),
		stopChan:     make(chan struct{}),
	}
}

// Start 이벤트 구독 시작. 구독 확인 후 반환한다.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	subCtx, cancel := context.WithCancel(context.Background())
	s.cancelSub = cancel

	pubsub := s.client.Subscribe(subCtx, s.eventChannel)

	// 구독 확인
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	s.logger.Info("Match notification service started",
		zap.String("instance_id", s.instanceID),
		zap.String("channel", s.eventChannel))

	s.wg.Add(1)
	go s.receiveLoop(subCtx, pubsub)

	return nil
}

// Stop 이벤트 구독 중지. 수신 루프가 끝날 때까지 기다린다.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	if s.cancelSub != nil {
		s.cancelSub()
	}
	s.wg.Wait()
	s.logger.Info("Match notification service stopped")
}

// Notify 매치 성립 이벤트 발행. 어느 인스턴스가 호출해도 전 인스턴스에 퍼진다.
func (s *Service) Notify(ctx context.Context, playerID, sessionID string, payload interface{}) error {
	event := MatchFoundEvent{
		PlayerID:  playerID,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.client.Publish(ctx, s.eventChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	s.logger.Debug("Published match found event",
		zap.String("playerId", playerID),
		zap.String("sessionId", sessionID))

	return nil
}

// receiveLoop 이벤트 수신 루프
func (s *Service) receiveLoop(ctx context.Context, pubsub *redis.PubSub) {
	defer s.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				continue
			}

			var event MatchFoundEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}

			// 로컬 접속자에게만 전달, 미접속이면 Hub가 버림
			s.sink.SendToPlayer(event.PlayerID, MsgTypeMatchFound, map[string]interface{}{
				"sessionId": event.SessionID,
				"payload":   event.Payload,
			})

		case <-s.stopChan:
			return

		case <-ctx.Done():
			return
		}
	}
}
