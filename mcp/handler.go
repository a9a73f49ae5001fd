package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/telechat/bridge/services"
)

type handler struct {
	service services.Service
}

func (h *handler) login(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, ok := request.Params.Arguments["email"].(string)
	if !ok {
		return nil, errors.New("email must be a string")
	}
	password, ok := request.Params.Arguments["password"].(string)
	if !ok {
		return nil, errors.New("password must be a string")
	}

	if err := h.service.Login(ctx, email, password); err != nil {
		return nil, err
	}

	return h.statusResult()
}

func (h *handler) getStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.statusResult()
}

func (h *handler) statusResult() (*mcp.CallToolResult, error) {
	data, err := json.Marshal(h.service.Status())
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handler) listChats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(h.service.Chats())
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handler) listMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contactID, ok := request.Params.Arguments["contact_id"].(string)
	if !ok {
		return nil, errors.New("contact_id must be a string")
	}

	limit := 0
	if l, ok := request.Params.Arguments["limit"].(float64); ok {
		limit = int(l)
	}

	messages, err := h.service.Messages(contactID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handler) openChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contactID, ok := request.Params.Arguments["contact_id"].(string)
	if !ok {
		return nil, errors.New("contact_id must be a string")
	}

	chat, err := h.service.SelectChat(ctx, contactID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(chat)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handler) sendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contactID, ok := request.Params.Arguments["contact_id"].(string)
	if !ok {
		return nil, errors.New("contact_id must be a string")
	}
	message, ok := request.Params.Arguments["message"].(string)
	if !ok {
		return nil, errors.New("message must be a string")
	}

	if err := h.service.SendMessage(ctx, contactID, message); err != nil {
		return nil, err
	}

	return mcp.NewToolResultText("message sent"), nil
}

func (h *handler) searchUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, ok := request.Params.Arguments["query"].(string)
	if !ok {
		return nil, errors.New("query must be a string")
	}

	results, err := h.service.SearchUsers(ctx, query)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(results)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handler) addContact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contactID, ok := request.Params.Arguments["contact_id"].(string)
	if !ok {
		return nil, errors.New("contact_id must be a string")
	}

	if err := h.service.AddContact(ctx, contactID); err != nil {
		return nil, err
	}

	return mcp.NewToolResultText("contact added"), nil
}
