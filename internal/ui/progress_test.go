package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tc39/proposal-richer-keys/internal/stress"
)

func TestApplyEventTracksWorkers(t *testing.T) {
	events := make(chan stress.Event)
	m := NewProgressModel("stress", 2, events).(*progressModel)

	m.applyEvent(stress.Event{Worker: 0, Stage: stress.StageIntern, Status: stress.StatusWorking, Done: 5, Total: 10})
	m.applyEvent(stress.Event{Worker: 1, Stage: stress.StageVerify, Status: stress.StatusDone, Done: 10, Total: 10})
	m.applyEvent(stress.Event{Worker: 7, Stage: stress.StageIntern, Status: stress.StatusWorking})
	m.applyEvent(stress.Event{Worker: stress.NoWorker, Stage: stress.StageCollect, Status: stress.StatusWorking})

	require.Len(t, m.items, 2)
	assert.Equal(t, "interning", m.items[0].status)
	assert.InDelta(t, 0.25, itemProgress(m.items[0]), 1e-9)
	assert.Equal(t, "done", m.items[1].status)
	assert.InDelta(t, 1.0, itemProgress(m.items[1]), 1e-9)
	assert.Equal(t, "collect: collecting", m.stageLabel)
	assert.False(t, m.failed)

	view := m.View()
	assert.Contains(t, view, "stress (collect: collecting)")
	assert.Contains(t, view, "worker 0  5/10")
	assert.Contains(t, view, "worker 1  10/10")
}

func TestApplyEventMarksFailure(t *testing.T) {
	m := NewProgressModel("stress", 1, nil).(*progressModel)
	m.applyEvent(stress.Event{Worker: stress.NoWorker, Stage: stress.StageCollect, Status: stress.StatusError})
	m.done = true
	assert.True(t, strings.HasPrefix(stripANSI(m.View()), "failed: stress"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
