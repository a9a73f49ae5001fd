// Package services holds the chat view model: it composes contact and message
// data from the hosted backend into an ordered chat list, keeps that list in
// sync with the change feed, and tracks the single chat the user has open.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telechat/bridge/backend"
	"github.com/telechat/bridge/metrics"
	"github.com/telechat/bridge/models"
	"github.com/telechat/bridge/realtime"
)

// SearchLimit caps user search results.
const SearchLimit = 10

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyMessage     = errors.New("message content is empty")
	ErrUnknownContact   = errors.New("unknown contact")
	ErrSearchSuperseded = errors.New("search superseded by a newer query")
)

// Backend is the slice of the hosted-service client the view model depends on.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (backend.Session, error)
	SignOut(ctx context.Context) error
	AcceptedContacts(ctx context.Context, ownerID string) ([]models.Contact, error)
	InsertContact(ctx context.Context, ownerID, targetID, status string) error
	MessageHistory(ctx context.Context, userA, userB string) ([]models.Message, error)
	InsertMessage(ctx context.Context, senderID, receiverID, content string) (models.Message, error)
	MarkMessagesRead(ctx context.Context, ids []string, receiverID string) error
	SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]models.Profile, error)
	SetOnline(ctx context.Context, id string) error
	SetOffline(ctx context.Context, id string, lastSeen time.Time) error
	SendOfflineBeacon(userID string) error
}

// Feed is the change-feed subscription held for the lifetime of a session.
type Feed interface {
	Subscribe(table string, h realtime.Handler) error
	Close() error
}

// FeedDialer opens a change-feed connection for an authenticated session.
type FeedDialer func(ctx context.Context, accessToken string) (Feed, error)

type Service interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	Status() models.Status
	Chats() []models.Chat
	ActiveChat() (models.Chat, bool)
	Messages(contactID string) ([]models.Message, error)
	SelectChat(ctx context.Context, contactID string) (models.Chat, error)
	SendMessage(ctx context.Context, contactID, content string) error
	AddContact(ctx context.Context, targetID string) error
	SearchUsers(ctx context.Context, query string) ([]models.Profile, error)
	SearchUsersDebounced(ctx context.Context, query string) ([]models.Profile, error)
	RefreshContacts(ctx context.Context) error
	RefreshChats(ctx context.Context) error
	HandleFeedEvent(evt realtime.Event)
	Focus(ctx context.Context)
	Blur(ctx context.Context)
	Offline(ctx context.Context, userID string)
	Close(ctx context.Context) error
}

type service struct {
	backend     Backend
	dialFeed    FeedDialer
	searchDelay time.Duration
	searchGen   atomic.Int64

	mu       sync.RWMutex
	ownerID  string
	contacts []models.Contact
	chats    []models.Chat
	activeID string // contact id of the selected chat, "" when none
	lastErr  string
	feed     Feed
}

// NewService creates a new Service instance. dialFeed may be nil, in which
// case no change-feed subscription is established and callers must refresh
// manually.
func NewService(b Backend, dialFeed FeedDialer, searchDelay time.Duration) Service {
	return &service{
		backend:     b,
		dialFeed:    dialFeed,
		searchDelay: searchDelay,
	}
}

// Login authenticates the owner, marks them online, loads the initial contact
// and chat state, and acquires the change-feed subscription.
func (s *service) Login(ctx context.Context, email, password string) error {
	session, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	s.mu.Lock()
	s.ownerID = session.UserID
	s.lastErr = ""
	s.mu.Unlock()

	if err := s.backend.SetOnline(ctx, session.UserID); err != nil {
		log.Printf("presence: set online failed: %v", err)
	}

	if err := s.RefreshContacts(ctx); err != nil {
		log.Printf("initial contact load failed: %v", err)
	}

	if s.dialFeed != nil {
		feed, err := s.dialFeed(ctx, session.AccessToken)
		if err != nil {
			s.setError(fmt.Sprintf("change feed unavailable: %v", err))
			log.Printf("change feed dial failed: %v", err)
			return nil
		}
		if err := s.subscribe(feed); err != nil {
			feed.Close()
			s.setError(fmt.Sprintf("change feed subscribe failed: %v", err))
			log.Printf("change feed subscribe failed: %v", err)
			return nil
		}

		s.mu.Lock()
		s.feed = feed
		s.mu.Unlock()
	}

	return nil
}

func (s *service) subscribe(feed Feed) error {
	handler := func(evt realtime.Event) {
		go s.HandleFeedEvent(evt)
	}
	if err := feed.Subscribe("messages", handler); err != nil {
		return err
	}
	return feed.Subscribe("profiles", handler)
}

// HandleFeedEvent reconciles the view model after a change notification. The
// payload is not inspected: any notification invalidates the affected
// collection and triggers a full re-fetch.
func (s *service) HandleFeedEvent(evt realtime.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch evt.Table {
	case "messages":
		if err := s.RefreshChats(ctx); err != nil {
			log.Printf("reconcile chats after %s: %v", evt.Type, err)
		}
	case "profiles":
		if err := s.RefreshContacts(ctx); err != nil {
			log.Printf("reconcile contacts after %s: %v", evt.Type, err)
		}
	}
}

// Logout marks the owner offline, releases the change-feed subscription, and
// clears the session and all derived state.
func (s *service) Logout(ctx context.Context) error {
	s.mu.Lock()
	owner := s.ownerID
	feed := s.feed
	s.ownerID = ""
	s.contacts = nil
	s.chats = nil
	s.activeID = ""
	s.lastErr = ""
	s.feed = nil
	s.mu.Unlock()

	if owner == "" {
		return ErrNotAuthenticated
	}

	if err := s.backend.SetOffline(ctx, owner, time.Now()); err != nil {
		log.Printf("presence: set offline failed: %v", err)
	}
	if feed != nil {
		if err := feed.Close(); err != nil {
			log.Printf("change feed close failed: %v", err)
		}
	}
	if err := s.backend.SignOut(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

// RefreshContacts replaces the contact set with the owner's accepted edges
// and rebuilds the chat list. A fetch failure leaves the previous set intact
// and records a visible error state for the caller to retry.
func (s *service) RefreshContacts(ctx context.Context) error {
	owner := s.owner()
	if owner == "" {
		return ErrNotAuthenticated
	}

	contacts, err := s.backend.AcceptedContacts(ctx, owner)
	if err != nil {
		s.setError("failed to load contacts")
		metrics.Refreshes.WithLabelValues("contacts", "error").Inc()
		return fmt.Errorf("load contacts: %w", err)
	}

	s.mu.Lock()
	s.contacts = contacts
	s.lastErr = ""
	s.mu.Unlock()
	metrics.Refreshes.WithLabelValues("contacts", "ok").Inc()

	return s.RefreshChats(ctx)
}

// RefreshChats recomputes every chat from the current contact set: per-contact
// histories are fetched concurrently and awaited as a batch, a contact whose
// fetch fails degrades to an empty history, and the result is sorted by last
// message, newest first, with empty chats after all non-empty ones. The active
// selection is re-pointed by contact identity so it survives the rebuild.
func (s *service) RefreshChats(ctx context.Context) error {
	owner := s.owner()
	if owner == "" {
		return ErrNotAuthenticated
	}

	s.mu.RLock()
	contacts := make([]models.Contact, len(s.contacts))
	copy(contacts, s.contacts)
	s.mu.RUnlock()

	chats := make([]models.Chat, len(contacts))
	var wg sync.WaitGroup
	for i, contact := range contacts {
		wg.Add(1)
		go func(i int, contact models.Contact) {
			defer wg.Done()
			history, err := s.backend.MessageHistory(ctx, owner, contact.ContactID)
			if err != nil {
				log.Printf("load messages for contact %s failed: %v", contact.ContactID, err)
				history = nil
			}
			chats[i] = buildChat(contact, history, owner)
		}(i, contact)
	}
	wg.Wait()

	sortChats(chats)

	s.mu.Lock()
	s.chats = chats
	if s.activeID != "" {
		if _, ok := findChat(chats, s.activeID); !ok {
			s.activeID = ""
		}
	}
	s.mu.Unlock()
	metrics.Refreshes.WithLabelValues("chats", "ok").Inc()

	return nil
}

// buildChat derives one chat from a contact and its ascending message history.
func buildChat(contact models.Contact, history []models.Message, ownerID string) models.Chat {
	chat := models.Chat{
		Contact:  contact,
		Messages: history,
	}
	if len(history) > 0 {
		chat.LastMessage = &history[len(history)-1]
	}
	for _, msg := range history {
		if msg.ReceiverID == ownerID && !msg.IsRead {
			chat.UnreadCount++
		}
	}
	return chat
}

// sortChats orders by last-message time descending. Chats without any message
// sort after all chats that have one, keeping their relative order.
func sortChats(chats []models.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		a, b := chats[i].LastMessage, chats[j].LastMessage
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func findChat(chats []models.Chat, contactID string) (models.Chat, bool) {
	for _, chat := range chats {
		if chat.Contact.ContactID == contactID {
			return chat, true
		}
	}
	return models.Chat{}, false
}

// Chats returns the current chat list.
func (s *service) Chats() []models.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chat, len(s.chats))
	copy(out, s.chats)
	return out
}

// ActiveChat returns the currently selected chat, if any.
func (s *service) ActiveChat() (models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == "" {
		return models.Chat{}, false
	}
	return findChat(s.chats, s.activeID)
}

// Messages returns the message history of the chat with the given contact.
func (s *service) Messages(contactID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := findChat(s.chats, contactID)
	if !ok {
		return nil, ErrUnknownContact
	}
	return chat.Messages, nil
}

// SelectChat makes the chat with the given contact the active selection and
// flags its unread messages as read. The read-state write happens in the
// background and does not block returning the chat; re-selecting an already
// read chat issues no write.
func (s *service) SelectChat(ctx context.Context, contactID string) (models.Chat, error) {
	s.mu.Lock()
	owner := s.ownerID
	if owner == "" {
		s.mu.Unlock()
		return models.Chat{}, ErrNotAuthenticated
	}
	chat, ok := findChat(s.chats, contactID)
	if !ok {
		s.mu.Unlock()
		return models.Chat{}, ErrUnknownContact
	}
	s.activeID = contactID
	s.mu.Unlock()

	var unread []string
	for _, msg := range chat.Messages {
		if msg.ReceiverID == owner && !msg.IsRead {
			unread = append(unread, msg.ID)
		}
	}

	if len(unread) > 0 {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.backend.MarkMessagesRead(ctx, unread, owner); err != nil {
				log.Printf("mark %d messages read failed: %v", len(unread), err)
			}
		}()
	}

	return chat, nil
}

// SendMessage creates a message addressed to the given contact. The local
// chat is not updated optimistically; the change feed delivers the insert and
// the next reconciliation pass makes it visible.
func (s *service) SendMessage(ctx context.Context, contactID, content string) error {
	owner := s.owner()
	if owner == "" {
		return ErrNotAuthenticated
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	_, err := s.backend.InsertMessage(ctx, owner, contactID, content)
	if err != nil {
		metrics.MessagesSent.WithLabelValues("error").Inc()
		return fmt.Errorf("send message: %w", err)
	}
	metrics.MessagesSent.WithLabelValues("ok").Inc()

	return nil
}

// AddContact creates the accepted edge owner->target and the reverse edge
// target->owner. The two writes are not atomic: when the reverse write fails
// after the forward one succeeded, the relationship stays asymmetric and is
// not rolled back.
func (s *service) AddContact(ctx context.Context, targetID string) error {
	owner := s.owner()
	if owner == "" {
		return ErrNotAuthenticated
	}

	if err := s.backend.InsertContact(ctx, owner, targetID, models.StatusAccepted); err != nil {
		return fmt.Errorf("add contact: %w", err)
	}
	if err := s.backend.InsertContact(ctx, targetID, owner, models.StatusAccepted); err != nil {
		log.Printf("reverse contact edge %s->%s failed, relationship is asymmetric: %v", targetID, owner, err)
	}

	if err := s.RefreshContacts(ctx); err != nil {
		log.Printf("contact refresh after add failed: %v", err)
	}

	return nil
}

func (s *service) owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerID
}

func (s *service) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// Status returns the current state of the bridge session
func (s *service) Status() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Status{
		Authenticated: s.ownerID != "",
		UserID:        s.ownerID,
		Subscribed:    s.feed != nil,
		Contacts:      len(s.contacts),
		Chats:         len(s.chats),
		LastError:     s.lastErr,
	}
}

// Close is the teardown path: mark the owner offline through both the normal
// update and the redundant beacon, then release the feed. Neither presence
// write is guaranteed to land.
func (s *service) Close(ctx context.Context) error {
	s.mu.Lock()
	owner := s.ownerID
	feed := s.feed
	s.feed = nil
	s.mu.Unlock()

	if owner != "" {
		if err := s.backend.SendOfflineBeacon(owner); err != nil {
			log.Printf("offline beacon failed: %v", err)
		}
		if err := s.backend.SetOffline(ctx, owner, time.Now()); err != nil {
			log.Printf("presence: set offline failed: %v", err)
		}
	}

	if feed != nil {
		return feed.Close()
	}
	return nil
}
