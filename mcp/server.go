package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/telechat/bridge/services"
)

// NewMCPServer creates a new MCP server exposing the chat bridge as tools
func NewMCPServer(svc services.Service, name string, version string) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
	)

	h := &handler{service: svc}

	loginTool := mcp.NewTool("login",
		mcp.WithDescription("Authenticate against the chat backend and start syncing"),
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("Account email address"),
		),
		mcp.WithString("password",
			mcp.Required(),
			mcp.Description("Account password"),
		),
	)

	getStatusTool := mcp.NewTool("get_status",
		mcp.WithDescription("Retrieve the current session state of the bridge"),
	)

	listChatsTool := mcp.NewTool("list_chats",
		mcp.WithDescription("Retrieve all chats ordered by most recent message, with unread counts"),
	)

	listMessagesTool := mcp.NewTool("list_messages",
		mcp.WithDescription("Retrieve the message history with a contact, oldest first"),
		mcp.WithString("contact_id",
			mcp.Required(),
			mcp.Description("ID of the contact whose chat to read"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of most recent messages to return (default all)"),
		),
	)

	openChatTool := mcp.NewTool("open_chat",
		mcp.WithDescription("Select the chat with a contact, marking its unread messages as read"),
		mcp.WithString("contact_id",
			mcp.Required(),
			mcp.Description("ID of the contact whose chat to open"),
		),
	)

	sendMessageTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send a text message to a contact"),
		mcp.WithString("contact_id",
			mcp.Required(),
			mcp.Description("ID of the contact to message"),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The text of the message to send"),
		),
	)

	searchUsersTool := mcp.NewTool("search_users",
		mcp.WithDescription("Search users by username or display name substring"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term to match against usernames and display names"),
		),
	)

	addContactTool := mcp.NewTool("add_contact",
		mcp.WithDescription("Add a user as a contact (creates the relationship in both directions)"),
		mcp.WithString("contact_id",
			mcp.Required(),
			mcp.Description("ID of the user to add"),
		),
	)

	s.AddTool(loginTool, h.login)
	s.AddTool(getStatusTool, h.getStatus)
	s.AddTool(listChatsTool, h.listChats)
	s.AddTool(listMessagesTool, h.listMessages)
	s.AddTool(openChatTool, h.openChat)
	s.AddTool(sendMessageTool, h.sendMessage)
	s.AddTool(searchUsersTool, h.searchUsers)
	s.AddTool(addContactTool, h.addContact)

	return s
}

// StartMCPServer starts the MCP server
func StartMCPServer(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
