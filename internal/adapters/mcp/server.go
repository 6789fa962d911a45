package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/muhshi/demakai-bot/internal/core/ports"
)

const (
	serverName    = "demakai"
	serverVersion = "1.0.0"
	defaultUserID = "mcp"
)

// Tools exposes the retrieval paths of the bot to MCP clients.
type Tools struct {
	codes  ports.CodeRetriever
	pubs   ports.PublicationRetriever
	chat   ports.MessageHandler
	logger *slog.Logger
}

func NewTools(codes ports.CodeRetriever, pubs ports.PublicationRetriever, chat ports.MessageHandler, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{codes: codes, pubs: pubs, chat: chat, logger: logger}
}

func (t *Tools) Server() *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("lookup_codes",
		mcp.WithDescription("Cari kode KBLI (usaha, 5 digit) dan KBJI (pekerjaan, 4 digit) yang relevan dengan deskripsi."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Deskripsi usaha atau pekerjaan, misal: warung kopi")),
	), t.lookupCodes)

	s.AddTool(mcp.NewTool("search_publications",
		mcp.WithDescription("Cari potongan publikasi statistik BPS Kabupaten Demak. Pertanyaan daftar publikasi mengembalikan katalog."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Topik atau judul publikasi")),
	), t.searchPublications)

	s.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Kirim pesan ke DemakAI seperti lewat WhatsApp, termasuk perintah #kbli, #publikasi dan /help."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Isi pesan")),
		mcp.WithString("user_id", mcp.Description("Identitas percakapan, default mcp")),
	), t.sendChat)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (t *Tools) ServeStdio() error {
	return server.ServeStdio(t.Server())
}

func (t *Tools) lookupCodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requiredText(req, "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	candidates := t.codes.RetrieveCodes(ctx, query)
	t.logger.Info("mcp_lookup_codes", "query", query, "candidates", len(candidates))
	return jsonResult(candidates)
}

func (t *Tools) searchPublications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requiredText(req, "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := t.pubs.RetrievePublications(ctx, query)
	if err != nil {
		t.logger.Error("mcp_search_publications_failed", "query", query, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("search publications: %v", err)), nil
	}
	if result.IsListing {
		return mcp.NewToolResultText(result.Catalog), nil
	}
	return jsonResult(result.Candidates)
}

func (t *Tools) sendChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := requiredText(req, "message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID := strings.TrimSpace(req.GetString("user_id", defaultUserID))
	if userID == "" {
		userID = defaultUserID
	}
	return mcp.NewToolResultText(t.chat.HandleMessage(ctx, userID, message)), nil
}

func requiredText(req mcp.CallToolRequest, name string) (string, error) {
	v, err := req.RequireString(name)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	return v, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
