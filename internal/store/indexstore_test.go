package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexStore_RemoteFailureIsNotFatal(t *testing.T) {
	// Given: a working embedded store and a failing remote
	embedded := &fakeBackend{name: "sqlite"}
	remote := &fakeBackend{name: "meilisearch", UpsertFn: func(context.Context, *Document) error {
		return Unavailable("meilisearch", errors.New("connection refused"))
	}}
	s := NewIndexStore(embedded, remote)

	// When: upserting
	err := s.Upsert(context.Background(), &Document{Path: "/a.txt"})

	// Then: both were written to and the error is swallowed
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.txt"}, embedded.upserts)
	assert.Equal(t, []string{"/a.txt"}, remote.upserts)
}

func TestIndexStore_EmbeddedFailureSkipsRemote(t *testing.T) {
	embedded := &fakeBackend{name: "sqlite", UpsertFn: func(context.Context, *Document) error {
		return errors.New("disk full")
	}}
	remote := &fakeBackend{name: "meilisearch"}
	s := NewIndexStore(embedded, remote)

	err := s.Upsert(context.Background(), &Document{Path: "/a.txt"})

	assert.Error(t, err)
	assert.Empty(t, remote.upserts)
}

func TestIndexStore_RemoteOnlyReturnsRemoteError(t *testing.T) {
	remote := &fakeBackend{name: "meilisearch", UpsertFn: func(context.Context, *Document) error {
		return errors.New("rejected")
	}}
	s := NewIndexStore(nil, remote)

	assert.Error(t, s.Upsert(context.Background(), &Document{Path: "/a.txt"}))
}

func TestIndexStore_ChainOrder(t *testing.T) {
	embedded := &fakeBackend{name: "sqlite"}
	remote := &fakeBackend{name: "meilisearch"}

	chain := NewIndexStore(embedded, remote).Chain()
	require.Len(t, chain, 2)
	assert.Equal(t, "meilisearch", chain[0].Name())
	assert.Equal(t, "sqlite", chain[1].Name())

	assert.Empty(t, NewIndexStore(nil, nil).Chain())
}

func TestIndexStore_RecordWithoutBackends(t *testing.T) {
	s := NewIndexStore(nil, nil)

	_, err := s.Record(context.Background(), "/a.txt")
	assert.True(t, IsNotFound(err))
	require.NoError(t, s.Upsert(context.Background(), &Document{Path: "/a.txt"}))
	require.NoError(t, s.Close())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeFTS, false},
		{"FTS", ModeFTS, false},
		{"like", ModeLike, false},
		{" scan ", ModeScan, false},
		{"regex", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexStore_NoBackendsRefusesWrites(t *testing.T) {
	// Given: neither the embedded store nor the remote is enabled
	s := NewIndexStore(nil, nil)

	// When: upserting
	err := s.Upsert(context.Background(), &Document{Path: "/a.txt"})

	// Then: the write is refused rather than silently dropped
	require.Error(t, err)
	assert.True(t, IsIndexingDisabled(err))
	assert.False(t, s.Enabled())
	assert.True(t, NewIndexStore(nil, &fakeBackend{name: "meilisearch"}).Enabled())
}
