package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(h *Hub, playerID string) *Client {
	return &Client{
		hub:      h,
		send:     make(chan *Message, 4),
		playerID: playerID,
		logger:   h.logger,
	}
}

func TestHub_RegisterAndDispatch(t *testing.T) {
	h := NewHub(zap.NewNop())
	client := testClient(h, "p1")

	h.registerClient(client)
	assert.True(t, h.IsConnected("p1"))

	h.dispatch(&Message{PlayerID: "p1", Type: "match_found", Payload: "hello"})

	select {
	case msg := <-client.send:
		assert.Equal(t, "match_found", msg.Type)
	default:
		t.Fatal("expected message in client send channel")
	}

	// 미접속 플레이어 메시지는 버려짐
	h.dispatch(&Message{PlayerID: "ghost", Type: "match_found"})
}

func TestHub_ReplaceConnection(t *testing.T) {
	h := NewHub(zap.NewNop())
	old := testClient(h, "p1")
	replacement := testClient(h, "p1")

	h.registerClient(old)
	h.registerClient(replacement)

	// 교체 시 이전 연결의 채널은 닫힘
	_, open := <-old.send
	assert.False(t, open)

	// 메시지는 새 연결로 감
	h.dispatch(&Message{PlayerID: "p1", Type: "match_found"})
	require.Len(t, replacement.send, 1)
}

// 교체된 이전 연결의 늦은 해제가 새 연결을 지우면 안 된다
func TestHub_StaleUnregisterKeepsReplacement(t *testing.T) {
	h := NewHub(zap.NewNop())
	old := testClient(h, "p1")
	replacement := testClient(h, "p1")

	h.registerClient(old)
	h.registerClient(replacement)

	// 이전 연결의 readPump이 죽으면서 해제를 보냄
	h.unregisterClient(old)

	assert.True(t, h.IsConnected("p1"))

	h.dispatch(&Message{PlayerID: "p1", Type: "match_found"})
	select {
	case msg, open := <-replacement.send:
		require.True(t, open)
		assert.Equal(t, "match_found", msg.Type)
	default:
		t.Fatal("replacement client lost its connection")
	}

	// 새 연결 자신의 해제는 정상 동작
	h.unregisterClient(replacement)
	assert.False(t, h.IsConnected("p1"))
}
