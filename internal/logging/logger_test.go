package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observed(t *testing.T) (*Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return FromZap(zap.New(core)), logs
}

func TestLogger_RedactsSensitiveKeys(t *testing.T) {
	t.Setenv("LOG_REDACTION_ENABLED", "")
	log, logs := observed(t)

	log.Info("filling", "password", "hunter2", "label", "Email", "email", "a@b.c")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, redacted, fields["password"])
	assert.Equal(t, redacted, fields["email"])
	assert.Equal(t, "Email", fields["label"])
}

func TestLogger_HashesIdentifiers(t *testing.T) {
	log, logs := observed(t)

	log.With("user_id", "local-user").Debug("run started")

	fields := logs.All()[0].ContextMap()
	hashed, ok := fields["user_id"].(string)
	require.True(t, ok)
	assert.Contains(t, hashed, "hash:")
	assert.NotContains(t, hashed, "local-user")
}

func TestLogger_NestedMaps(t *testing.T) {
	log, logs := observed(t)

	log.Warn("payload", "detail", map[string]any{"api_key": "k", "count": 3})

	detail := logs.All()[0].ContextMap()["detail"].(map[string]any)
	assert.Equal(t, redacted, detail["api_key"])
	assert.EqualValues(t, 3, detail["count"])
}

func TestLogger_RedactionDisabled(t *testing.T) {
	t.Setenv("LOG_REDACTION_ENABLED", "false")
	log, logs := observed(t)

	log.Info("raw", "password", "hunter2")

	assert.Equal(t, "hunter2", logs.All()[0].ContextMap()["password"])
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New("dev", "loud")
	assert.Error(t, err)

	l, err := New("prod", "debug")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestIsSensitiveKey(t *testing.T) {
	assert.True(t, IsSensitiveKey("WORKDAY_PASSWORD"))
	assert.True(t, IsSensitiveKey("storage_state_path"))
	assert.False(t, IsSensitiveKey("label"))
}
