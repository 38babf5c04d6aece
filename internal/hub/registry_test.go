package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synclab/synchub/internal/domain"
)

func TestJoinIsIdempotentPerIdentity(t *testing.T) {
	reg := NewRegistry(50, 24*time.Hour)
	key := domain.SessionRoom("s1")

	first, _ := reg.Join(key, "alice")
	assert.True(t, first)
	first, _ = reg.Join(key, "alice")
	assert.False(t, first, "second connection of the same identity is not a new member")

	members := reg.Members(key)
	require.Len(t, members, 1)
	assert.Equal(t, domain.UserID("alice"), members[0])
}

func TestLeaveRefcountsConnections(t *testing.T) {
	reg := NewRegistry(50, 24*time.Hour)
	key := domain.SessionRoom("s1")

	reg.Join(key, "alice")
	reg.Join(key, "alice")
	reg.Join(key, "bob")

	left, retired := reg.Leave(key, "alice")
	assert.False(t, left, "identity still holds a connection")
	assert.False(t, retired)
	assert.True(t, reg.IsMember(key, "alice"))

	left, retired = reg.Leave(key, "alice")
	assert.True(t, left)
	assert.False(t, retired, "bob is still a member")
	assert.False(t, reg.IsMember(key, "alice"))
}

func TestRoomRetiredWithLastMember(t *testing.T) {
	reg := NewRegistry(50, 24*time.Hour)
	key := domain.SessionRoom("s1")

	reg.Join(key, "alice")
	rm, ok := reg.get(key)
	require.True(t, ok)
	rm.hist.Append(Entry{Seq: rm.nextSeq(), TS: time.Now(), Kind: domain.EventChatMessage})

	left, retired := reg.Leave(key, "alice")
	assert.True(t, left)
	assert.True(t, retired)
	assert.Empty(t, reg.Members(key))
	assert.Zero(t, reg.Counts()[domain.RoomSession])

	// A re-created room starts fresh: empty membership, empty history,
	// sequence numbers from one.
	reg.Join(key, "carol")
	fresh, ok := reg.get(key)
	require.True(t, ok)
	assert.NotSame(t, rm, fresh)
	assert.Empty(t, reg.Replay(key))
	assert.Equal(t, uint64(1), fresh.nextSeq())
}

func TestNamespacesAreIndependent(t *testing.T) {
	reg := NewRegistry(50, 24*time.Hour)
	reg.Join(domain.SessionRoom("x"), "alice")
	reg.Join(domain.ProjectRoom("x"), "bob")

	assert.True(t, reg.IsMember(domain.SessionRoom("x"), "alice"))
	assert.False(t, reg.IsMember(domain.ProjectRoom("x"), "alice"))
	assert.Equal(t, 1, reg.Counts()[domain.RoomSession])
	assert.Equal(t, 1, reg.Counts()[domain.RoomProject])
}

func TestLiveResolvesCurrentIncarnationOnly(t *testing.T) {
	reg := NewRegistry(50, 24*time.Hour)
	key := domain.SessionRoom("s1")

	reg.Join(key, "alice")
	stale, ok := reg.get(key)
	require.True(t, ok)

	reg.Leave(key, "alice")
	assert.True(t, stale.retired, "retirement is marked on the room itself")

	_, ok = reg.live(key)
	assert.False(t, ok, "no incarnation exists after retirement")

	reg.Join(key, "bob")
	rm, ok := reg.live(key)
	require.True(t, ok)
	defer rm.mu.Unlock()
	assert.NotSame(t, stale, rm)
	assert.False(t, rm.retired)
}

func TestJoinReturnsHistorySnapshot(t *testing.T) {
	reg := NewRegistry(50, 24*time.Hour)
	key := domain.SessionRoom("s1")

	reg.Join(key, "alice")
	rm, ok := reg.get(key)
	require.True(t, ok)
	rm.hist.Append(Entry{Seq: rm.nextSeq(), TS: time.Now(), Kind: domain.EventChatMessage})

	_, replay := reg.Join(key, "bob")
	require.Len(t, replay, 1)
	assert.Equal(t, uint64(1), replay[0].Seq)

	_, replay = reg.Join(domain.ProjectRoom("p1"), "bob")
	assert.Empty(t, replay, "project rooms carry no history")
}

func TestLeaveUnknownRoomIsHarmless(t *testing.T) {
	reg := NewRegistry(50, 24*time.Hour)
	left, retired := reg.Leave(domain.SessionRoom("ghost"), "alice")
	assert.False(t, left)
	assert.False(t, retired)
}

func TestProjectRoomsKeepNoHistory(t *testing.T) {
	reg := NewRegistry(50, 24*time.Hour)
	key := domain.ProjectRoom("p1")
	reg.Join(key, "alice")
	assert.Empty(t, reg.Replay(key))
}
