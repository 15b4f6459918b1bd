package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTocMock(t *testing.T) {
	log, _ := test.NewNullLogger()
	root := newRoot(&app{log: log})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"toc", "--mock"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "4 tracks")
	assert.Equal(t, []string{"01", "0", "2250", "0:30"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"04", "7125", "4500", "1:00"}, strings.Fields(lines[5]))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", formatDuration(0))
	assert.Equal(t, "4:15", formatDuration(4*time.Minute+15*time.Second))
	assert.Equal(t, "1:00", formatDuration(59600*time.Millisecond))
	assert.Equal(t, "63:05", formatDuration(63*time.Minute+5*time.Second))
}
