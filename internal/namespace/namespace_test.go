package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/models"
)

func TestResolver_Keys(t *testing.T) {
	ns := New("prod")

	assert.Equal(t, "prod", ns.Prefix())
	assert.Equal(t, "prod:mm:queue:team_2v2", ns.QueueKey(models.ModeTeam2v2))
	assert.Equal(t, "prod:mm:entry:team_2v2", ns.EntryKey(models.ModeTeam2v2))
	assert.Equal(t, "prod:mm:lock:ranked_1v1", ns.LockKey(models.ModeRanked1v1))
	assert.Equal(t, "prod:mm:events", ns.EventChannel())
	assert.Equal(t, "prod:*", ns.Pattern())
}

func TestResolver_NormalizesPrefix(t *testing.T) {
	assert.Equal(t, "test", New("  test:  ").Prefix())
	assert.Equal(t, "default", New("").Prefix())
	assert.Equal(t, "default", New("   ").Prefix())
}

// 네임스페이스가 다르면 같은 모드라도 키가 절대 겹치지 않는다
func TestResolver_Isolation(t *testing.T) {
	a := New("deploy-a")
	b := New("deploy-b")

	assert.NotEqual(t, a.QueueKey(models.ModeTeam2v2), b.QueueKey(models.ModeTeam2v2))
	assert.NotEqual(t, a.LockKey(models.ModeTeam2v2), b.LockKey(models.ModeTeam2v2))
	assert.NotEqual(t, a.EventChannel(), b.EventChannel())
}
