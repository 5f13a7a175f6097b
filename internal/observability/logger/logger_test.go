package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/pioneer/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewBuildsLogger(t *testing.T) {
	log, err := New(nil, Config{ServiceName: "pioneer", Environment: "test", Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithActor(ctx, "user", "77")
	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "user", fields["actor_type"])
	assert.Equal(t, "77", fields["actor_id"])
	assert.Equal(t, "", fields["trace_id"])
}

func TestWithContextOmitsMissingValues(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithContext(context.Background(), zap.New(core)).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.NotContains(t, fields, "request_id")
	assert.NotContains(t, fields, "actor_type")
	assert.Contains(t, fields, "trace_id")
}

func TestRedactingCoreMasksRecipientFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(NewRedactingCore(core, DefaultRedactedKeys)).With(zap.String("email", "ana@example.com"))

	log.Info("send failed",
		zap.String("recipient", "bob@example.com"),
		zap.String("event", "opened"),
		zap.Int("attempt", 2),
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "a****@example.com", fields["email"])
	assert.Equal(t, "b****@example.com", fields["recipient"])
	assert.Equal(t, "opened", fields["event"])
	assert.EqualValues(t, 2, fields["attempt"])
}

func TestRedactingCoreRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(NewRedactingCore(core, []string{"to"}))
	log.Info("dropped", zap.String("to", "bob@example.com"))
	assert.Zero(t, logs.Len())
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "UPDATE", operationFromSQL("  update invitations set opened = true"))
	assert.Equal(t, "SELECT", operationFromSQL("(SELECT 1)"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
