package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewText_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := NewText(&buf, false)
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.Info(ctx, "shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "k=v")
}

func TestNewText_DebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	log := NewText(&buf, true)

	log.Debug(context.Background(), "dbg", "a", 1)

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "a=1")
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewText(&buf, false).With("component", "directory")

	log.Warn(context.Background(), "dropped", "id", "c1")

	out := buf.String()
	for _, want := range []string{"level=WARN", "component=directory", "id=c1"} {
		assert.Contains(t, out, want)
	}
}

func TestDiscard_DoesNotPanic(t *testing.T) {
	log := Discard()
	ctx := context.TODO()
	log.Info(ctx, "x")
	log.Error(ctx, "y")
	log.With("a", "b").Warn(ctx, "z")
}
