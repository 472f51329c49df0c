package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleAppendsLine(t *testing.T) {
	dir := t.TempDir()
	c := NewConsumer("amqp://unused", dir, zap.NewNop())

	ev := DebtClearedEvent{UserID: "u1", AdminID: "a1", AdminName: "Chief", ClearedCount: 3, NotificationID: "n1", ClearedAt: "2024-01-02T03:04:05Z"}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, c.Handle(body))
	require.NoError(t, c.Handle(body))

	raw, err := os.ReadFile(filepath.Join(dir, "notifications.log"))
	require.NoError(t, err)
	want := "[2024-01-02T03:04:05Z] Debt cleared | user_id=u1 | admin_id=a1 | admin=\"Chief\" | cleared=3 | notification_id=n1\n"
	assert.Equal(t, want+want, string(raw))
}

func TestHandleRejectsBadPayloads(t *testing.T) {
	c := NewConsumer("amqp://unused", t.TempDir(), zap.NewNop())
	assert.Error(t, c.Handle([]byte("{not json")))
	assert.Error(t, c.Handle([]byte(`{"user_id":"u1"}`)))
}

func TestNewConsumerDefaultsLogDir(t *testing.T) {
	assert.Equal(t, "logs", NewConsumer("amqp://x", "", zap.NewNop()).LogDir)
}
