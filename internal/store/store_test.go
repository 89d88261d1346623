package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkKeyFormat(t *testing.T) {
	assert.Equal(t, "doc:manual:chunk:0", ChunkKey("manual", 0))
	assert.Equal(t, "doc:manual:chunk:42", ChunkKey("manual", 42))
}

func TestDocPrefixCoversChunkKeys(t *testing.T) {
	prefix := DocPrefix("manual")
	assert.True(t, HasPrefix(ChunkKey("manual", 7), prefix))
	assert.False(t, HasPrefix(ChunkKey("other", 7), prefix))
}

func TestHasPrefixEmptyMatchesAll(t *testing.T) {
	assert.True(t, HasPrefix("anything", ""))
}

func TestParseChunkRecordValid(t *testing.T) {
	raw := []byte(`{"id":"doc:a:chunk:0","doc_id":"a","text":"内容","embedding":[0.1,0.2]}`)

	record, err := ParseChunkRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, "doc:a:chunk:0", record.ID)
	assert.Equal(t, "a", record.DocID)
	assert.Equal(t, "内容", record.Text)
	assert.Len(t, record.Embedding, 2)
}

func TestParseChunkRecordToleratesUnknownFields(t *testing.T) {
	raw := []byte(`{"id":"x","doc_id":"a","text":"t","embedding":[1],"extra":"ignored","version":3}`)

	record, err := ParseChunkRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, "x", record.ID)
}

func TestParseChunkRecordRejectsMalformedJSON(t *testing.T) {
	_, err := ParseChunkRecord([]byte("not json"))
	require.Error(t, err)
}

func TestParseChunkRecordRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{}`,
		`{"text":"t","embedding":[1]}`,
		`{"id":"x","embedding":[1]}`,
		`{"id":"x","text":"t"}`,
		`{"id":"x","text":"t","embedding":[]}`,
	}
	for _, raw := range cases {
		_, err := ParseChunkRecord([]byte(raw))
		require.Error(t, err, "raw: %s", raw)
		assert.True(t, errors.Is(err, ErrInvalidRecord), "raw: %s", raw)
	}
}

func TestMemoryStorePagination(t *testing.T) {
	s := NewMemoryChunkStore(3)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		require.NoError(t, s.Put(ctx, ChunkKey("a", i), &ChunkRecord{
			ID: ChunkKey("a", i), DocID: "a", Text: "t", Embedding: []float32{1},
		}))
	}

	var all []string
	cursor := ""
	pages := 0
	for {
		keys, next, err := s.List(ctx, "doc:", cursor)
		require.NoError(t, err)
		all = append(all, keys...)
		pages++
		if next == "" {
			break
		}
		cursor = next
	}

	assert.Len(t, all, 8)
	assert.Equal(t, 3, pages)
	// 不重复
	seen := map[string]bool{}
	for _, k := range all {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestMemoryStoreGetMissingKey(t *testing.T) {
	s := NewMemoryChunkStore(10)
	raw, found, err := s.Get(context.Background(), "doc:none:chunk:0")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, raw)
}

func TestMemoryStoreInvalidCursor(t *testing.T) {
	s := NewMemoryChunkStore(10)
	s.PutRaw("doc:a:chunk:0", []byte("{}"))

	_, _, err := s.List(context.Background(), "doc:", "garbage")
	require.Error(t, err)
}

func TestMemoryStoreListPrefixFilter(t *testing.T) {
	s := NewMemoryChunkStore(10)
	s.PutRaw("doc:a:chunk:0", []byte("{}"))
	s.PutRaw("session:1", []byte("{}"))

	keys, next, err := s.List(context.Background(), "doc:", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc:a:chunk:0"}, keys)
	assert.Empty(t, next)
}
