package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debug("hidden")
	l.WithField("file_id", "abc").Info("file stored")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "file stored", entry["msg"])
	require.Equal(t, "abc", entry["file_id"])
}

func TestNewDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)
	require.Equal(t, logrus.DebugLevel, l.GetLevel())
	l.Debug("visible")
	require.True(t, strings.Contains(buf.String(), "msg=visible"))
}
