package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

type codesFake struct{ query string }

func (f *codesFake) RetrieveCodes(_ context.Context, query string) []domain.CodeCandidate {
	f.query = query
	return []domain.CodeCandidate{{Code: "56303", Title: "Rumah Minum/Kafe", Kind: domain.KindKBLI}}
}

type pubsFake struct {
	result domain.PublicationResult
	err    error
}

func (f pubsFake) RetrievePublications(context.Context, string) (domain.PublicationResult, error) {
	return f.result, f.err
}

type chatFake struct{ userID string }

func (f *chatFake) HandleMessage(_ context.Context, userID, text string) string {
	f.userID = userID
	return "balasan untuk " + text
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestLookupCodesReturnsCandidatesAsJSON(t *testing.T) {
	codes := &codesFake{}
	tools := NewTools(codes, pubsFake{}, &chatFake{}, nil)

	res, err := tools.lookupCodes(context.Background(), call(map[string]any{"query": "  warung kopi "}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "warung kopi", codes.query)
	assert.Contains(t, text(t, res), `"code": "56303"`)
}

func TestLookupCodesRequiresQuery(t *testing.T) {
	tools := NewTools(&codesFake{}, pubsFake{}, &chatFake{}, nil)
	for _, args := range []map[string]any{{}, {"query": "   "}} {
		res, err := tools.lookupCodes(context.Background(), call(args))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	}
}

func TestSearchPublications(t *testing.T) {
	listing := NewTools(&codesFake{}, pubsFake{result: domain.PublicationResult{IsListing: true, Catalog: "📚 Publikasi yang tersedia:"}}, &chatFake{}, nil)
	res, err := listing.searchPublications(context.Background(), call(map[string]any{"query": "daftar publikasi"}))
	require.NoError(t, err)
	assert.Equal(t, "📚 Publikasi yang tersedia:", text(t, res))

	ranked := NewTools(&codesFake{}, pubsFake{result: domain.PublicationResult{Candidates: []domain.PublicationCandidate{{Title: "Demak Dalam Angka", Year: "2024", Similarity: 0.61}}}}, &chatFake{}, nil)
	res, err = ranked.searchPublications(context.Background(), call(map[string]any{"query": "penduduk"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Demak Dalam Angka")

	failing := NewTools(&codesFake{}, pubsFake{err: errors.New("db down")}, &chatFake{}, nil)
	res, err = failing.searchPublications(context.Background(), call(map[string]any{"query": "penduduk"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.True(t, strings.Contains(text(t, res), "db down"))
}

func TestChatDefaultsUserID(t *testing.T) {
	chat := &chatFake{}
	tools := NewTools(&codesFake{}, pubsFake{}, chat, nil)

	res, err := tools.sendChat(context.Background(), call(map[string]any{"message": "/help"}))
	require.NoError(t, err)
	assert.Equal(t, "balasan untuk /help", text(t, res))
	assert.Equal(t, defaultUserID, chat.userID)

	_, err = tools.sendChat(context.Background(), call(map[string]any{"message": "halo", "user_id": "peneliti"}))
	require.NoError(t, err)
	assert.Equal(t, "peneliti", chat.userID)
}

func TestServerListsTools(t *testing.T) {
	s := NewTools(&codesFake{}, pubsFake{}, &chatFake{}, nil).Server()
	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"lookup_codes", "search_publications", "chat"} {
		assert.Contains(t, string(raw), `"name":"`+name+`"`)
	}
}
