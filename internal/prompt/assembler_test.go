package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/rag-gateway/internal/retrieval"
)

func TestAssembleRefusesOnEmptyResult(t *testing.T) {
	a := NewAssembler()

	request, ok := a.Assemble("什么是向量检索", &retrieval.Result{})
	assert.False(t, ok)
	assert.Nil(t, request)

	request, ok = a.Assemble("什么是向量检索", nil)
	assert.False(t, ok)
	assert.Nil(t, request)
}

func TestAssembleIncludesQuestionAndContext(t *testing.T) {
	a := NewAssembler()
	result := &retrieval.Result{
		Candidates: []retrieval.ScoredCandidate{
			{Text: "向量检索基于余弦相似度", DocID: "intro", Score: 0.9},
		},
	}

	request, ok := a.Assemble("什么是向量检索", result)
	require.True(t, ok)
	require.NotNil(t, request)

	assert.Contains(t, request.User, "什么是向量检索")
	assert.Contains(t, request.User, "向量检索基于余弦相似度")
	assert.Contains(t, request.User, "intro")
	assert.NotEmpty(t, request.System)
}

func TestAssembleCitationNumbersFollowRanking(t *testing.T) {
	a := NewAssembler()
	result := &retrieval.Result{
		Candidates: []retrieval.ScoredCandidate{
			{Text: "第一名", DocID: "doc1", Score: 0.9},
			{Text: "第二名", DocID: "doc2", Score: 0.8},
			{Text: "第三名", DocID: "doc3", Score: 0.7},
		},
	}

	request, ok := a.Assemble("问题", result)
	require.True(t, ok)

	first := request.User
	assert.Contains(t, first, "[1] (来源文档: doc1)")
	assert.Contains(t, first, "[2] (来源文档: doc2)")
	assert.Contains(t, first, "[3] (来源文档: doc3)")
	assert.Less(t,
		strings.Index(first, "第一名"),
		strings.Index(first, "第二名"))
	assert.Less(t,
		strings.Index(first, "第二名"),
		strings.Index(first, "第三名"))
}

func TestMessagesOrder(t *testing.T) {
	request := &GroundedRequest{System: "sys", User: "usr"}
	messages := request.Messages()

	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "sys", messages[0].Content)
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "usr", messages[1].Content)
}
