package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// Hub WebSocket 연결 관리 및 플레이어별 메시지 라우팅
type Hub struct {
	// 플레이어별 연결 저장 (playerID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	// 송신 채널
	send chan *Message

	// 등록/해제 채널
	register   chan *Client
	unregister chan *Client

	logger *zap.Logger
}

// Message WebSocket 메시지
type Message struct {
	PlayerID string      `json:"-"`       // 수신자 (빈 문자열이면 전체 브로드캐스트)
	Type     string      `json:"type"`    // 메시지 타입
	Payload  interface{} `json:"payload"` // 메시지 내용
}

// NewHub Hub 생성
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		send:       make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run Hub 실행
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.send:
			h.dispatch(message)
		}
	}
}

// registerClient 클라이언트 등록
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 기존 연결이 있으면 닫기 (플레이어당 연결 1개)
	if oldClient, exists := h.clients[client.playerID]; exists {
		close(oldClient.send)
		h.logger.Info("Replaced existing WebSocket connection",
			zap.String("playerId", client.playerID))
	}

	h.clients[client.playerID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("playerId", client.playerID),
		zap.Int("totalClients", len(h.clients)))
}

// unregisterClient 클라이언트 해제.
// 재접속으로 교체된 이전 연결의 늦은 해제가 새 연결을 지우지 않도록
// 맵에 남아 있는 것이 해제 대상 자신일 때만 제거한다.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[client.playerID]; exists && current == client {
		delete(h.clients, client.playerID)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.String("playerId", client.playerID),
			zap.Int("totalClients", len(h.clients)))
	}
}

// dispatch 메시지 전달. 수신자가 연결되어 있지 않으면 버린다 (best-effort).
func (h *Hub) dispatch(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.PlayerID == "" {
		// 전체 브로드캐스트
		for _, client := range h.clients {
			select {
			case client.send <- message:
			default:
				// 채널이 가득 찬 경우 연결 해제
				h.logger.Warn("Client send channel full, unregistering",
					zap.String("playerId", client.playerID))
				go func(c *Client) {
					h.unregister <- c
				}(client)
			}
		}
	} else {
		// 특정 플레이어에게만 전송
		if client, exists := h.clients[message.PlayerID]; exists {
			select {
			case client.send <- message:
			default:
				h.logger.Warn("Client send channel full",
					zap.String("playerId", message.PlayerID))
			}
		}
	}
}

// SendToPlayer 특정 플레이어에게 메시지 전송 (미접속 시 드롭)
func (h *Hub) SendToPlayer(playerID string, msgType string, payload interface{}) {
	h.send <- &Message{
		PlayerID: playerID,
		Type:     msgType,
		Payload:  payload,
	}
}

// Broadcast 접속 중인 모든 플레이어에게 메시지 전송
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	h.send <- &Message{
		PlayerID: "",
		Type:     msgType,
		Payload:  payload,
	}
}

// IsConnected 플레이어 접속 여부
func (h *Hub) IsConnected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.clients[playerID]
	return exists
}
