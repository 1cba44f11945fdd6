// Package assistant runs the stylist chat shown on the storefront. Replies
// come from a generative model primed with the current catalog.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/bazaar-store/internal/shop"
)

const (
	DefaultModel = "gemini-2.5-flash"

	Greeting        = "أهلاً بك في بازار لوك! 🛍️ أنا مساعدك الذكي لتنسيق الأزياء. كيف يمكنني مساعدتك في اختيار إطلالتك اليوم؟ ✨"
	UnavailableText = "عذراً، خدمة المساعد الذكي غير متوفرة حالياً."
	ConnectionText  = "عذراً، واجهت مشكلة في الاتصال. هل يمكنك المحاولة مرة أخرى؟"
	EmptyReplyText  = "Sorry, I couldn't generate a response."

	DefaultIdleTimeout = 30 * time.Minute
	DefaultMaxSessions = 1000
)

// ErrSessionNotFound is returned for unknown or ended sessions.
var ErrSessionNotFound = errors.New("assistant session not found")

// ChatSession is one conversation with the model.
type ChatSession interface {
	Send(ctx context.Context, message string) (string, error)
}

// ChatClient opens conversations primed with a system instruction.
type ChatClient interface {
	StartChat(ctx context.Context, systemInstruction string) (ChatSession, error)
}

type session struct {
	chat     ChatSession
	lastUsed time.Time
}

// Service keeps chat sessions in memory. Sessions idle longer than the idle
// timeout are dropped, and the least recently used one makes room once the
// cap is reached. A nil client makes every reply the unavailable message.
type Service struct {
	client      ChatClient
	catalog     func() []shop.Product
	logger      *slog.Logger
	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// Option customises a Service.
type Option func(*Service)

func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) { s.idleTimeout = d }
}

func WithMaxSessions(n int) Option {
	return func(s *Service) { s.maxSessions = n }
}

func NewService(client ChatClient, catalog func() []shop.Product, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		client:      client,
		catalog:     catalog,
		logger:      logger.With("component", "assistant"),
		idleTimeout: DefaultIdleTimeout,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions reports how many conversations are held.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Available reports whether a model is configured.
func (s *Service) Available() bool {
	return s.client != nil
}

// StartSession opens a chat primed with the catalog as it is now and returns
// its id with the opening greeting.
func (s *Service) StartSession(ctx context.Context) (string, string, error) {
	var chat ChatSession = unavailable{}
	if s.client != nil {
		c, err := s.client.StartChat(ctx, SystemInstruction(s.catalog()))
		if err != nil {
			s.logger.Error("start chat failed", "error", err)
			return "", "", fmt.Errorf("start chat: %w", err)
		}
		chat = c
	}
	id := uuid.NewString()
	s.mu.Lock()
	now := s.now()
	s.evictLocked(now)
	s.sessions[id] = &session{chat: chat, lastUsed: now}
	s.mu.Unlock()
	if s.client == nil {
		return id, UnavailableText, nil
	}
	return id, Greeting, nil
}

// Send relays a message. Model failures turn into an apology reply rather
// than an error.
func (s *Service) Send(ctx context.Context, sessionID, message string) (string, error) {
	s.mu.Lock()
	now := s.now()
	sess, ok := s.sessions[sessionID]
	if ok && s.expired(sess, now) {
		delete(s.sessions, sessionID)
		ok = false
	}
	var chat ChatSession
	if ok {
		sess.lastUsed = now
		chat = sess.chat
	}
	s.mu.Unlock()
	if !ok {
		return "", ErrSessionNotFound
	}
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: message is required", shop.ErrValidation)
	}
	reply, err := chat.Send(ctx, message)
	if err != nil {
		s.logger.Warn("assistant send failed", "session", sessionID, "error", err)
		return ConnectionText, nil
	}
	if strings.TrimSpace(reply) == "" {
		return EmptyReplyText, nil
	}
	return reply, nil
}

// EndSession forgets a session.
func (s *Service) EndSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *Service) expired(sess *session, now time.Time) bool {
	return s.idleTimeout > 0 && now.Sub(sess.lastUsed) > s.idleTimeout
}

// evictLocked drops idle sessions, then the least recently used ones until a
// new session fits under the cap. Must be called with s.mu held.
func (s *Service) evictLocked(now time.Time) {
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
	if s.maxSessions <= 0 {
		return
	}
	for len(s.sessions) >= s.maxSessions {
		var (
			oldestID string
			oldest   time.Time
		)
		for id, sess := range s.sessions {
			if oldestID == "" || sess.lastUsed.Before(oldest) {
				oldestID, oldest = id, sess.lastUsed
			}
		}
		delete(s.sessions, oldestID)
		s.logger.Debug("assistant session evicted", "session", oldestID)
	}
}

type unavailable struct{}

func (unavailable) Send(context.Context, string) (string, error) { return UnavailableText, nil }

// SystemInstruction primes the model with the inventory and house rules.
func SystemInstruction(products []shop.Product) string {
	var b strings.Builder
	b.WriteString("You are 'Lok', the AI Fashion Assistant for the 'Bazzr lok' clothing store.\n\n")
	b.WriteString("STORE INVENTORY:\n")
	b.WriteString(shop.CatalogText(products))
	b.WriteString("\n\nYOUR GUIDELINES:\n")
	for i, rule := range guidelines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}
	return b.String()
}

var guidelines = []string{
	"Role: Act as a trendy, helpful, and polite fashion stylist.",
	"Recommendations: STRICTLY recommend products from the provided INVENTORY. Do not hallucinate products.",
	`Styling: Suggest outfit combinations using our items (e.g., "This shirt matches perfectly with [Pant Name]").`,
	"Unavailable Items: If a user asks for something we don't have, politely say so and suggest the closest alternative from our inventory.",
	"Language: Always reply in the same language as the user (Arabic or English).",
	"Tone: Use emojis occasionally to be friendly (e.g., 👗, ✨, 🛍️).",
	"Brevity: Keep responses concise and easy to read on a mobile device.",
}
