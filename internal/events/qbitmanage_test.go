package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQbitManageSuppressed(t *testing.T) {
	assert.True(t, QbitManagePayload{Function: "run_start"}.Suppressed())
	assert.True(t, QbitManagePayload{Function: "run_end"}.Suppressed())
	assert.False(t, QbitManagePayload{Function: "tag_update"}.Suppressed())
	assert.False(t, QbitManagePayload{}.Suppressed())
}

func TestQbitManageSubjectPrecedence(t *testing.T) {
	assert.Equal(t, "My.Torrent", QbitManagePayload{Name: "My.Torrent", Function: "check"}.subjectName())
	assert.Equal(t, "check", QbitManagePayload{Function: "check"}.subjectName())
	assert.Equal(t, UnknownSubject, QbitManagePayload{}.subjectName())
}

func TestNormalizeQbitManage(t *testing.T) {
	p := QbitManagePayload{
		Function: "rem_unregistered",
		Name:     "Dead.Torrent",
		Result:   "completed",
		Summary:  "removed 3 unregistered torrents",
	}

	e := NormalizeQbitManage(p, "req-7", testNow)

	assert.Equal(t, SourceQbitManage, e.Source)
	assert.Equal(t, "rem_unregistered", e.EventKind)
	assert.Equal(t, ResultCompleted, e.Result)
	assert.Equal(t, "Dead.Torrent", e.SubjectName)
	assert.Equal(t, "removed 3 unregistered torrents", e.SummaryText, "producer summary wins")
	assert.Equal(t, "✅", e.Emoji, "classified result drives presentation")
}

func TestNormalizeQbitManageSummaryFallback(t *testing.T) {
	e := NormalizeQbitManage(QbitManagePayload{Function: "cleanup_dirs"}, "req-8", testNow)

	assert.Equal(t, ResultUnknown, e.Result)
	assert.Equal(t, "**Status:** ❓ unknown result", e.SummaryText)
	assert.Equal(t, "🧹", e.Emoji, "unknown result falls back to the kind style")
}
