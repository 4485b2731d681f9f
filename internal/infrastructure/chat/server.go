package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"creatorhub/internal/core/domain"
	"creatorhub/internal/core/ports"
	"creatorhub/internal/core/services"
	"creatorhub/internal/infrastructure/distributed"
	"creatorhub/internal/infrastructure/middleware"
	"creatorhub/pkg/realtime"
	"creatorhub/pkg/tracing"
	"creatorhub/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Message results, used as metric label values.
const (
	ResultDelivered   = "delivered"
	ResultRelayed     = "relayed"
	ResultRejected    = "rejected"
	ResultRateLimited = "rate_limited"
)

type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration

	MessagesPerSecond float64
	Burst             int
	MaxMessageSize    int64

	// AllowedOrigins lists browser origins allowed to connect. Empty allows any.
	AllowedOrigins []string
}

// Metrics receives connection and message counts. Implemented by monitoring.PrometheusCollector.
type Metrics interface {
	RecordChatConnected()
	RecordChatDisconnected()
	RecordChatMessage(result string)
}

// Relay forwards events to other chat instances. Implemented by distributed.EventBus.
type Relay interface {
	PublishChatMessage(ctx context.Context, msg *domain.ChatMessage) error
	PublishUserConnected(ctx context.Context, userID domain.UserID) error
}

// Presence tracks which users are connected anywhere in the cluster.
// Implemented by distributed.PresenceRegistry.
type Presence interface {
	Register(ctx context.Context, userID domain.UserID) error
	Unregister(ctx context.Context, userID domain.UserID) error
	IsOnline(ctx context.Context, userID domain.UserID) (bool, error)
	Refresh(ctx context.Context, userIDs []domain.UserID) error
}

// Server relays direct messages between users who share a subscription.
type Server struct {
	authService services.AuthService
	authorizer  ports.SubscriptionAuthorizer
	cfg         Config
	upgrader    websocket.Upgrader
	metrics     Metrics
	relay       Relay
	presence    Presence
	logger      *zap.SugaredLogger

	clients map[domain.UserID]*client
	mu      sync.RWMutex
}

func NewServer(
	authService services.AuthService,
	authorizer ports.SubscriptionAuthorizer,
	cfg Config,
	logger *zap.SugaredLogger,
) *Server {
	s := &Server{
		authService: authService,
		authorizer:  authorizer,
		cfg:         cfg,
		logger:      logger,
		clients:     make(map[domain.UserID]*client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// WithMetrics enables Prometheus counters.
func (s *Server) WithMetrics(m Metrics) *Server {
	s.metrics = m
	return s
}

// WithRelay enables cross-instance delivery.
func (s *Server) WithRelay(relay Relay, presence Presence) *Server {
	s.relay = relay
	s.presence = presence
	return s
}

func (s *Server) SetupRoutes(router *gin.Engine) {
	router.GET("/ws", middleware.AuthMiddleware(s.authService, true), s.HandleWebSocket)
	router.GET("/health", s.HealthCheck)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades an authenticated request and serves it until the
// connection ends.
func (s *Server) HandleWebSocket(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	cl := newClient(userID, conn, rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.Burst))
	replaced := s.register(cl)
	s.logger.Infow("user connected", "user_id", userID, "reconnect", replaced)

	ctx := context.Background()
	if s.presence != nil {
		if err := s.presence.Register(ctx, userID); err != nil {
			s.logger.Warnw("failed to register presence", "user_id", userID, "error", err)
		}
	}
	if s.relay != nil {
		if err := s.relay.PublishUserConnected(ctx, userID); err != nil {
			s.logger.Warnw("failed to announce connection", "user_id", userID, "error", err)
		}
	}

	go cl.writePump(s.cfg.PingInterval, s.cfg.WriteTimeout)
	s.readPump(ctx, cl)

	if s.unregister(cl) && s.presence != nil {
		if err := s.presence.Unregister(ctx, userID); err != nil {
			s.logger.Warnw("failed to unregister presence", "user_id", userID, "error", err)
		}
	}
	s.logger.Infow("user disconnected", "user_id", userID)
}

// register installs cl, closing any previous connection of the same user.
func (s *Server) register(cl *client) bool {
	s.mu.Lock()
	old, exists := s.clients[cl.userID]
	s.clients[cl.userID] = cl
	s.mu.Unlock()

	if exists {
		old.close(websocket.ClosePolicyViolation)
	}
	if s.metrics != nil {
		s.metrics.RecordChatConnected()
	}
	return exists
}

// unregister removes cl unless a newer connection already replaced it.
// It reports whether cl was the user's current connection.
func (s *Server) unregister(cl *client) bool {
	cl.close(websocket.CloseNormalClosure)

	s.mu.Lock()
	current := s.clients[cl.userID] == cl
	if current {
		delete(s.clients, cl.userID)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordChatDisconnected()
	}
	return current
}

func (s *Server) readPump(ctx context.Context, cl *client) {
	conn := cl.conn
	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading from client", "user_id", cl.userID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		if !cl.limiter.Allow() {
			s.record(ResultRateLimited)
			cl.enqueue(realtime.NewError("rate limit exceeded"))
			continue
		}

		var env realtime.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.record(ResultRejected)
			cl.enqueue(realtime.NewError("malformed frame"))
			continue
		}

		if err := s.handleFrame(ctx, cl, env); err != nil {
			s.record(ResultRejected)
			cl.enqueue(realtime.NewError(err.Error()))
		}
	}
}

var (
	errUnsupportedFrame = errors.New("unsupported frame type")
	errNotPermitted     = errors.New("no subscription between sender and recipient")
	errUnavailable      = errors.New("service temporarily unavailable")
)

// handleFrame returns an error whose text is safe to send back to the client.
func (s *Server) handleFrame(ctx context.Context, cl *client, env realtime.Envelope) error {
	ctx, span := tracing.TraceChatMessage(ctx, env.Type, string(cl.userID))
	defer span.End()

	if env.Type != realtime.TypeMessage {
		return errUnsupportedFrame
	}

	to := strings.TrimSpace(env.To)
	if err := validation.ValidateUserID(to, "to"); err != nil {
		return err
	}
	var payload realtime.MessagePayload
	if len(env.Payload) == 0 || env.DecodePayload(&payload) != nil {
		return errors.New("payload.content is required")
	}
	if err := validation.ValidateMessageContent(payload.Content); err != nil {
		return err
	}

	recipient := domain.UserID(to)
	allowed, err := s.canMessage(ctx, cl.userID, recipient)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Errorw("access check failed", "from", cl.userID, "to", recipient, "error", err)
		return errUnavailable
	}
	if !allowed {
		return errNotPermitted
	}

	msg := &domain.ChatMessage{
		ID:      uuid.NewString(),
		From:    cl.userID,
		To:      recipient,
		Content: payload.Content,
		SentAt:  time.Now().UTC(),
	}

	result, err := s.deliver(ctx, msg)
	if err != nil {
		return err
	}
	s.record(result)
	tracing.AddOutcome(ctx, result)
	cl.enqueue(ackEnvelope(msg))
	return nil
}

// canMessage allows a conversation when either side is subscribed to the other.
func (s *Server) canMessage(ctx context.Context, from, to domain.UserID) (bool, error) {
	allowed, err := s.authorizer.HasAccess(ctx, from, to)
	if err != nil || allowed {
		return allowed, err
	}
	return s.authorizer.HasAccess(ctx, to, from)
}

func (s *Server) deliver(ctx context.Context, msg *domain.ChatMessage) (string, error) {
	if s.deliverLocal(msg) {
		return ResultDelivered, nil
	}
	if s.relay == nil {
		return "", domain.ErrUserNotConnected
	}

	if s.presence != nil {
		online, err := s.presence.IsOnline(ctx, msg.To)
		if err != nil {
			s.logger.Warnw("presence lookup failed, relaying anyway", "user_id", msg.To, "error", err)
		} else if !online {
			return "", domain.ErrUserNotConnected
		}
	}

	if err := s.relay.PublishChatMessage(ctx, msg); err != nil {
		s.logger.Errorw("failed to relay message", "to", msg.To, "error", err)
		return "", errUnavailable
	}
	return ResultRelayed, nil
}

func (s *Server) deliverLocal(msg *domain.ChatMessage) bool {
	s.mu.RLock()
	recipient, ok := s.clients[msg.To]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return recipient.enqueue(messageEnvelope(msg))
}

// HandleEvent applies an event published by another instance.
func (s *Server) HandleEvent(event *distributed.Event) error {
	switch event.Type {
	case distributed.EventChatMessage:
		msg, err := event.DecodeChatMessage()
		if err != nil {
			return err
		}
		s.deliverLocal(msg)
		return nil
	case distributed.EventUserConnected:
		s.mu.Lock()
		cl, ok := s.clients[event.UserID]
		if ok {
			delete(s.clients, event.UserID)
		}
		s.mu.Unlock()
		if ok {
			s.logger.Infow("user reconnected elsewhere, closing local connection", "user_id", event.UserID)
			cl.close(websocket.ClosePolicyViolation)
		}
		return nil
	default:
		return nil
	}
}

// RefreshPresence keeps this instance's presence entries alive until ctx is done.
func (s *Server) RefreshPresence(ctx context.Context, interval time.Duration) {
	if s.presence == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.presence.Refresh(ctx, s.ConnectedUsers()); err != nil {
				s.logger.Warnw("failed to refresh presence", "error", err)
			}
		}
	}
}

func (s *Server) ConnectedUsers() []domain.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserID, 0, len(s.clients))
	for id := range s.clients {
		users = append(users, id)
	}
	return users
}

func (s *Server) HealthCheck(c *gin.Context) {
	s.mu.RLock()
	count := len(s.clients)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"connections": count,
		"timestamp":   time.Now().Unix(),
	})
}

// Close disconnects every client with a going-away close frame.
func (s *Server) Close() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[domain.UserID]*client)
	s.mu.Unlock()

	for _, cl := range clients {
		cl.close(websocket.CloseGoingAway)
	}
}

func (s *Server) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordChatMessage(result)
	}
}
