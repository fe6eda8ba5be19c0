package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) clients(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	clients, err := h.ds.ListClients(ctx, CoachIDFromContext(ctx))
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(clients)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
