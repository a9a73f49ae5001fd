package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/telechat/bridge/models"
)

// MessageHistory lists every message exchanged between the two users in either
// direction, ordered by creation time ascending.
func (c *Client) MessageHistory(ctx context.Context, userA, userB string) ([]models.Message, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("or", fmt.Sprintf(
		"(and(sender_id.eq.%s,receiver_id.eq.%s),and(sender_id.eq.%s,receiver_id.eq.%s))",
		userA, userB, userB, userA,
	))
	q.Set("order", "created_at.asc")

	var rows []models.Message
	if err := c.get(ctx, "messages", q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type messageInsert struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// InsertMessage creates a message and returns the created row, including the
// id and timestamp assigned by the backend.
func (c *Client) InsertMessage(ctx context.Context, senderID, receiverID, content string) (models.Message, error) {
	var rows []models.Message
	err := c.insert(ctx, "messages", messageInsert{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}, &rows)
	if err != nil {
		return models.Message{}, err
	}
	if len(rows) == 0 {
		return models.Message{}, fmt.Errorf("insert messages: backend returned no row")
	}
	return rows[0], nil
}

// MarkMessagesRead flags the given message ids as read, constrained to rows
// addressed to receiverID. Read state only ever transitions false to true.
func (c *Client) MarkMessagesRead(ctx context.Context, ids []string, receiverID string) error {
	if len(ids) == 0 {
		return nil
	}

	q := url.Values{}
	q.Set("id", "in.("+strings.Join(ids, ",")+")")
	q.Set("receiver_id", "eq."+receiverID)

	return c.update(ctx, "messages", q, map[string]any{"is_read": true})
}
