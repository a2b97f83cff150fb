package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithWorkOrder(ctx, "order-9")
	ctx = log.WithActor(ctx, "collector-1", "COLLECTOR", "org-1")

	log.Error(ctx, "boom", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"work_order_id":"order-9"`)
	assert.Contains(t, out, `"actor_id":"collector-1"`)
	assert.Contains(t, out, `"actor_role":"COLLECTOR"`)
	assert.Contains(t, out, `"organization_id":"org-1"`)
	assert.Contains(t, out, `"stack"`)
	assert.Contains(t, out, `"service":"test"`)
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf})
	log.Info(context.Background(), "hidden")
	log.Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "Console"})
	log.Info(context.Background(), "pickup assigned")
	out := buf.String()
	assert.Contains(t, out, "pickup assigned")
	assert.NotContains(t, out, `"message"`)
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	ctx := log.WithWorkOrder(context.Background(), "x")
	log.Error(ctx, "ignored", errors.New("x"))
}

func TestFieldsDoNotLeakToParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	parent := log.WithField(context.Background(), "job", "outbox-retention")
	child := log.WithFields(parent, map[string]any{"deleted": 4})

	log.Info(parent, "parent")
	assert.Contains(t, buf.String(), `"job":"outbox-retention"`)
	assert.NotContains(t, buf.String(), `"deleted"`)

	buf.Reset()
	log.Info(child, "child")
	assert.Contains(t, buf.String(), `"job":"outbox-retention"`)
	assert.Contains(t, buf.String(), `"deleted":4`)
}
