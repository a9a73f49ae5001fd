package backend

import (
	"context"
	"net/url"

	"github.com/telechat/bridge/models"
)

// AcceptedContacts lists the accepted contact edges owned by ownerID, each
// joined with the target profile.
func (c *Client) AcceptedContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	q := url.Values{}
	q.Set("select", "*,profile:profiles!contacts_contact_id_fkey(*)")
	q.Set("user_id", "eq."+ownerID)
	q.Set("status", "eq."+models.StatusAccepted)

	var rows []models.Contact
	if err := c.get(ctx, "contacts", q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type contactInsert struct {
	UserID    string `json:"user_id"`
	ContactID string `json:"contact_id"`
	Status    string `json:"status"`
}

// InsertContact creates a single directed contact edge.
func (c *Client) InsertContact(ctx context.Context, ownerID, targetID, status string) error {
	return c.insert(ctx, "contacts", contactInsert{
		UserID:    ownerID,
		ContactID: targetID,
		Status:    status,
	}, nil)
}
