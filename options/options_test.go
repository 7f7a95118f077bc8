package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerOption_Addr(t *testing.T) {
	opt := Default("10.0.0.5", 8021, "ClueCon")
	assert.Equal(t, "10.0.0.5:8021", opt.Addr())
}

func TestStore_AddReplaceIsIdempotentOnIdenticalOption(t *testing.T) {
	s := NewStore()
	opt := Default("127.0.0.1", 8021, "ClueCon")

	assert.True(t, s.Add(opt), "first insert is always auth-relevant")

	same := Default("127.0.0.1", 8021, "ClueCon")
	same.EventFilter = "CHANNEL_HANGUP"
	assert.False(t, s.Add(same), "non-auth fields changing shouldn't force a teardown")

	got, ok := s.Get("127.0.0.1:8021")
	require.True(t, ok)
	assert.Equal(t, "CHANNEL_HANGUP", got.EventFilter)
}

func TestStore_AddWithNewPasswordIsAuthRelevant(t *testing.T) {
	s := NewStore()
	s.Add(Default("127.0.0.1", 8021, "ClueCon"))

	changed := Default("127.0.0.1", 8021, "NewPassword")
	assert.True(t, s.Add(changed))
}

func TestStore_SnapshotIsStableCopy(t *testing.T) {
	s := NewStore()
	s.Add(Default("a", 1, "p"))
	s.Add(Default("b", 2, "p"))

	snap := s.Snapshot()
	assert.Len(t, snap, 2)

	s.Remove("a:1")
	assert.Len(t, snap, 2, "snapshot must not observe later mutation")
	assert.Len(t, s.Snapshot(), 1)
}
