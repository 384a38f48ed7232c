package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/tcmartin/crewdeck/pkg/models"
	"github.com/tcmartin/crewdeck/pkg/monitor"
)

func logLines(msgs ...string) []monitor.LogEntry {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entries := make([]monitor.LogEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = monitor.LogEntry{ID: m, Message: m, Level: "info", Timestamp: base.Add(time.Duration(i) * time.Second)}
	}
	return entries
}

func newPrinter() (*progressPrinter, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	return &progressPrinter{cmd: cmd}, &out
}

func TestPrinterReplaysServerLogAfterFallback(t *testing.T) {
	p, out := newPrinter()
	running := models.StatusRunning

	p.render(monitor.State{ExecutionID: "e1", Channel: monitor.ChannelPush, Status: running, Logs: logLines("pushed-1", "pushed-2", "pushed-3")})
	// attach to the poll channel still carries the pushed lines
	p.render(monitor.State{ExecutionID: "e1", Channel: monitor.ChannelPoll, Status: running, Logs: logLines("pushed-1", "pushed-2", "pushed-3")})
	p.render(monitor.State{ExecutionID: "e1", Channel: monitor.ChannelPoll, Status: running, Logs: logLines("server-1", "server-2", "server-3", "server-4")})

	text := out.String()
	assert.Contains(t, text, "live channel lost, polling")
	for _, line := range []string{"server-1", "server-2", "server-3", "server-4"} {
		assert.Contains(t, text, line)
	}
	assert.Equal(t, 1, strings.Count(text, "pushed-1"))
	assert.Equal(t, 4, p.logs)
}

func TestPrinterPrintsEachLineOnce(t *testing.T) {
	p, out := newPrinter()

	p.render(monitor.State{Channel: monitor.ChannelPoll, Logs: logLines("a")})
	p.render(monitor.State{Channel: monitor.ChannelPoll, Logs: logLines("a", "b")})
	p.render(monitor.State{Channel: monitor.ChannelPoll, Logs: logLines("a", "b")})

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, " a\n"))
	assert.Equal(t, 1, strings.Count(text, " b\n"))
	assert.NotContains(t, text, "live channel lost")
}
