package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "ja***@example.com", RedactEmail("jane.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestLogger_RedactsEmailFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO)

	l.log(INFO, "enrollment resolved", "contact_email", "jane.doe@example.com", "instance_id", "abc")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ja***@example.com", entry["contact_email"])
	assert.Equal(t, "abc", entry["instance_id"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN)

	l.log(INFO, "ignored")
	assert.Zero(t, buf.Len())

	l.log(ERROR, "kept")
	assert.NotZero(t, buf.Len())
}

func TestLogger_RedactsEmbeddedEmails(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO)

	l.log(WARN, "bounce", "reason", "mailbox jane.doe@example.com unavailable")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "mailbox ja***@example.com unavailable", entry["reason"])
}
