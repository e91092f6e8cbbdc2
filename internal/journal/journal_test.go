// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/objerr"
)

// ticking returns a clock that advances one second per reading.
func ticking() func() time.Time {
	t := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	j.now = ticking()
	return j
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.db")
	for i := 0; i < 2; i++ {
		j, err := Open(path)
		require.NoError(t, err, "open %d", i)
		require.NoError(t, j.Close())
	}
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestSessionsAndCalls(t *testing.T) {
	ctx := context.Background()
	j := openTest(t)

	require.NoError(t, j.OpenSession("a", "pipe"))
	require.NoError(t, j.OpenSession("b", "127.0.0.1:9"))
	require.NoError(t, j.OpenSession("a", "ignored"))

	require.NoError(t, j.RecordCall("a", "construct", "counter", time.Millisecond, nil))
	require.NoError(t, j.RecordCall("a", "invoke", "counter.get", 2*time.Millisecond,
		objerr.New(objerr.UnknownInstance, "unknown instance 9")))
	require.NoError(t, j.RecordCall("a", "run", "demo_addone", 0, errors.New("plain")))
	require.NoError(t, j.CloseSession("a"))
	require.NoError(t, j.CloseSession("a"))

	sessions, err := j.Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].ID, "newest first")
	assert.True(t, sessions[0].Open())
	assert.Equal(t, 0, sessions[0].Calls)

	a := sessions[1]
	assert.Equal(t, "pipe", a.Remote)
	assert.False(t, a.Open())
	assert.True(t, a.ClosedAt.After(a.OpenedAt))
	assert.Equal(t, 3, a.Calls)

	calls, err := j.Calls(ctx, "a")
	require.NoError(t, err)
	require.Len(t, calls, 3)
	assert.Equal(t, "construct", calls[0].Op)
	assert.False(t, calls[0].Failed())
	assert.Equal(t, time.Millisecond, calls[0].Elapsed)
	assert.Equal(t, "UnknownInstance", calls[1].ErrorKind)
	assert.Equal(t, "unknown instance 9", calls[1].ErrorMsg)
	assert.True(t, calls[2].Failed())
	assert.Less(t, calls[0].Seq, calls[1].Seq)

	limited, err := j.Sessions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCallRequiresSession(t *testing.T) {
	j := openTest(t)
	assert.Error(t, j.RecordCall("ghost", "invoke", "x", 0, nil))
}

func TestMemoryJournal(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer j.Close()
	require.NoError(t, j.OpenSession("m", ""))
	require.NoError(t, j.RecordCall("m", "retain", "counter#1", 0, nil))
	calls, err := j.Calls(context.Background(), "m")
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}

func TestClosedJournal(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	require.NoError(t, j.Close())
	assert.Error(t, j.OpenSession("x", ""))
	_, err = j.Sessions(context.Background(), 0)
	assert.Error(t, err)
}
