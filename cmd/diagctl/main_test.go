package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagflow/pkg/models"
	"diagflow/pkg/persist"
)

func sampleMessages() []*models.Message {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []*models.Message{
		{
			ID:        "1",
			Kind:      models.KindError,
			Text:      "disk full\nretrying",
			Timestamp: ts,
			Scope:     &models.Scope{Name: "backup", Depth: 1},
			Origin:    models.CallSite{Namespace: "example.com/app", Type: "Job", Method: "Run"},
		},
		{
			ID:        "2",
			Kind:      models.KindWarning,
			Text:      "slow response",
			Timestamp: ts.Add(time.Second),
			Origin:    models.CallSite{Namespace: "example.com/app", Method: "main"},
		},
	}
}

func TestWriteMessagesTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeMessagesTable(&buf, sampleMessages()))

	out := buf.String()
	assert.Contains(t, out, "disk full\\nretrying")
	assert.Contains(t, out, "backup")
	assert.Contains(t, out, "example.com/app.Job.Run")
	assert.Contains(t, out, "example.com/app.main")
	assert.Contains(t, out, "2024-05-01T12:00:00Z")

	buf.Reset()
	require.NoError(t, writeMessagesTable(&buf, nil))
	assert.Contains(t, buf.String(), "(no messages)")
}

func TestFilterKind(t *testing.T) {
	msgs := sampleMessages()

	errs := filterKind(msgs, models.KindError)
	require.Len(t, errs, 1)
	assert.Equal(t, "1", errs[0].ID)

	assert.Empty(t, filterKind(msgs, models.KindUnknown))
	assert.Len(t, msgs, 2, "input is left untouched")
}

func TestConvertDump(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "dump.json")
	out := filepath.Join(dir, "dump.msgpack")
	require.NoError(t, persist.SaveFile(in, sampleMessages()))

	n, err := convertDump(in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs, err := persist.LoadFile(out)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "slow response", msgs[1].Text)
	assert.Equal(t, "backup", msgs[0].Scope.Name)

	_, err = convertDump(filepath.Join(dir, "missing.json"), out)
	assert.Error(t, err)
}
