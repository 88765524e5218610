package aliasmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/canframe"
	"github.com/edgeflow/lccstack/internal/nodeid"
)

func TestInsertAndBijection(t *testing.T) {
	m := New(zap.NewNop())
	nid := nodeid.FromUint64(0x010200000101)
	m.Insert(0x333, nid)

	assert.Equal(t, nid, m.GetNodeID(0x333))
	assert.Equal(t, nodeid.Alias(0x333), m.GetAlias(nid))
}

func TestSnapshot_ReflectsCurrentEntries(t *testing.T) {
	m := New(zap.NewNop())
	nidA := nodeid.FromUint64(0x010200000101)
	nidB := nodeid.FromUint64(0x010200000102)
	m.Insert(0x333, nidA)
	m.Insert(0x444, nidB)

	entries := m.Snapshot()
	assert.Len(t, entries, 2)

	m.Remove(0x333)
	assert.Len(t, m.Snapshot(), 1)
}

func TestUnknownLookupsReturnSentinels(t *testing.T) {
	m := New(zap.NewNop())
	assert.True(t, m.GetNodeID(0x555).IsZero())
	assert.Equal(t, nodeid.NoAlias, m.GetAlias(nodeid.FromUint64(0xDEADBEEF)))
}

func TestReinsertionReplacesBothDirections(t *testing.T) {
	m := New(zap.NewNop())
	n1 := nodeid.FromUint64(0x0102030405)
	n2 := nodeid.FromUint64(0x0605040302)

	m.Insert(0x200, n1)
	m.Insert(0x200, n2) // same alias, different NodeID
	assert.Equal(t, n2, m.GetNodeID(0x200))
	assert.Equal(t, nodeid.NoAlias, m.GetAlias(n1))

	m.Insert(0x300, n2) // same NodeID, different alias
	assert.Equal(t, nodeid.Alias(0x300), m.GetAlias(n2))
	assert.True(t, m.GetNodeID(0x200).IsZero())
}

func TestRemoveUnknownIsNoOp(t *testing.T) {
	m := New(zap.NewNop())
	assert.NotPanics(t, func() { m.Remove(0x999) })
}

func TestWatchersNotifiedOnceInOrder(t *testing.T) {
	m := New(zap.NewNop())
	var order []string

	m.AddWatcher(func(a nodeid.Alias, n nodeid.NodeID) { order = append(order, "w1") })
	m.AddWatcher(func(a nodeid.Alias, n nodeid.NodeID) { order = append(order, "w2") })

	m.Insert(0x111, nodeid.FromUint64(1))
	assert.Equal(t, []string{"w1", "w2"}, order)

	m.Insert(0x222, nodeid.FromUint64(2))
	assert.Equal(t, []string{"w1", "w2", "w1", "w2"}, order)
}

func TestProcessFrame_VerifiedNodeIDInserts(t *testing.T) {
	m := New(zap.NewNop())
	frames, err := canframe.Parse(":X19170444N010200000202;")
	require.NoError(t, err)
	require.Len(t, frames, 1)

	m.ProcessFrame(frames[0])
	assert.Equal(t, nodeid.Alias(0x444), m.GetAlias(nodeid.FromUint64(0x010200000202)))
}

func TestProcessFrame_AliasMapResetRemoves(t *testing.T) {
	m := New(zap.NewNop())
	nid := nodeid.FromUint64(0x010200000101)
	m.Insert(0x333, nid)

	amr := canframe.BuildAliasMapReset(0x333, nid)
	m.ProcessFrame(amr)
	assert.True(t, m.GetNodeID(0x333).IsZero())
}

func TestProcessFrame_AliasMapDefinitionInserts(t *testing.T) {
	m := New(zap.NewNop())
	nid := nodeid.FromUint64(0x0A0B0C0D0E0F)
	amd := canframe.BuildAliasMapDefinition(0x456, nid)

	m.ProcessFrame(amd)
	assert.Equal(t, nid, m.GetNodeID(0x456))
}

func TestProcessFrame_ControlFramesIgnored(t *testing.T) {
	m := New(zap.NewNop())
	rid := canframe.BuildReserveID(0x333)
	m.ProcessFrame(rid)
	assert.True(t, m.GetNodeID(0x333).IsZero())
}

func TestProcessFrame_OnlyLastResetPerAliasWins(t *testing.T) {
	m := New(zap.NewNop())
	n1 := nodeid.FromUint64(1)
	n2 := nodeid.FromUint64(2)

	m.ProcessFrame(canframe.BuildAliasMapDefinition(0x111, n1))
	m.ProcessFrame(canframe.BuildAliasMapReset(0x111, n1))
	m.ProcessFrame(canframe.BuildAliasMapDefinition(0x111, n2))

	assert.Equal(t, n2, m.GetNodeID(0x111))
}
