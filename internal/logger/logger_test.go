package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	Info("upload complete", "key", "uploads/2026-01-01/abc", "size", 42)

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "upload complete")
	assert.Contains(t, out, "key=uploads/2026-01-01/abc")
	assert.Contains(t, out, "size=42")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")

	Debug("not shown")
	Info("not shown either")
	Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "not shown")
	assert.Contains(t, out, "shown")

	// Restore default for other tests.
	SetLevel("INFO")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")

	Info("job claimed", "job_id", "abc123")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "job claimed", record["msg"])
	assert.Equal(t, "abc123", record["job_id"])

	SetFormat("text")
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	ctx := WithContext(context.Background(), &LogContext{
		JobID:    "j1",
		WorkerID: "w1",
	})
	InfoCtx(ctx, "batch flushed", "records", 1000)

	out := buf.String()
	assert.Contains(t, out, "job_id=j1")
	assert.Contains(t, out, "worker_id=w1")
	assert.Contains(t, out, "records=1000")

	// Context fields come before call-site fields.
	assert.Less(t, strings.Index(out, "job_id"), strings.Index(out, "records"))
}

func TestTextAttrOrdering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	Info("job failed",
		"records", 10,
		KeyError, "boom",
		KeyJobID, "j9",
		KeyRequestID, "r1")

	// Correlation ids lead the line, the error trails it, and the rest
	// keeps its call-site order in between.
	out := buf.String()
	assert.Less(t, strings.Index(out, "request_id=r1"), strings.Index(out, "job_id=j9"))
	assert.Less(t, strings.Index(out, "job_id=j9"), strings.Index(out, "records=10"))
	assert.Less(t, strings.Index(out, "records=10"), strings.Index(out, "error=boom"))
}

func TestFromContext_Missing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck
}
