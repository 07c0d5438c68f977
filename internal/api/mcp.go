package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/actpanama/guillermo/internal/pipeline"
	"github.com/actpanama/guillermo/internal/retrieval"
)

// MCPRetriever abstracts semantic article search for the MCP layer.
type MCPRetriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]retrieval.Hit, error)
	GetArticle(ctx context.Context, id string) (retrieval.Hit, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Answerer  Asker
	Retriever MCPRetriever
	TopK      int
}

// NewMCPServer creates an MCP server exposing the assistant to agent hosts.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"guillermo",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("Guillermo — asistente sobre la Constitución de la República de Panamá. Responde en español."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_constitution",
			mcp.WithDescription("Ask a question about the Panamanian constitution and get a grounded answer in Spanish."),
			mcp.WithString("question", mcp.Description("The citizen's question"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session ID from a previous call, to continue the conversation")),
		),
		mcpAskConstitution(deps),
	)

	s.AddTool(
		mcp.NewTool("search_articles",
			mcp.WithDescription("Semantically search constitutional articles without generating an answer."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of articles (default 3)")),
		),
		mcpSearchArticles(deps),
	)

	s.AddTool(
		mcp.NewTool("get_article",
			mcp.WithDescription("Fetch one constitutional article by its identifier, e.g. articulo-32."),
			mcp.WithString("id", mcp.Description("Article identifier"), mcp.Required()),
		),
		mcpGetArticle(deps),
	)

	return s
}

func mcpAskConstitution(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		sessionID := req.GetString("session_id", "")

		result, err := deps.Answerer.Ask(ctx, sessionID, question)
		if err != nil {
			if errors.Is(err, pipeline.ErrEmptyQuestion) {
				return mcpError("question is required"), nil
			}
			return mcpError(fmt.Sprintf("answering failed: %v", err)), nil
		}

		payload, err := json.Marshal(map[string]any{
			"answer":     result.Answer,
			"session_id": result.SessionID,
			"context":    toContextEntries(result.Context),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("encoding result: %v", err)), nil
		}
		return mcpText(string(payload)), nil
	}
}

func mcpSearchArticles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", deps.TopK)
		if limit <= 0 {
			limit = 3
		}
		if limit > 20 {
			limit = 20
		}

		hits, err := deps.Retriever.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(hits) == 0 {
			return mcpText("[]"), nil
		}

		payload, err := json.Marshal(hits)
		if err != nil {
			return mcpError(fmt.Sprintf("encoding results: %v", err)), nil
		}
		return mcpText(string(payload)), nil
	}
}

func mcpGetArticle(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		hit, err := deps.Retriever.GetArticle(ctx, id)
		if err != nil {
			if errors.Is(err, retrieval.ErrNotFound) {
				return mcpError(fmt.Sprintf("article %s not found", id)), nil
			}
			return mcpError(fmt.Sprintf("fetching article: %v", err)), nil
		}

		payload, err := json.Marshal(hit)
		if err != nil {
			return mcpError(fmt.Sprintf("encoding article: %v", err)), nil
		}
		return mcpText(string(payload)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
