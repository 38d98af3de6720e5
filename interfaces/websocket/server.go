package websocket

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"askingwho-backend/pkg/auth"
)

// Server upgrades authenticated requests to live connections
type Server struct {
	hub       *Hub
	validator *auth.JWTValidator
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewServer creates a new websocket server. allowedOrigins follows the CORS
// configuration; "*" accepts any origin.
func NewServer(hub *Hub, validator *auth.JWTValidator, allowedOrigins []string, logger *zap.Logger) *Server {
	return &Server{
		hub:       hub,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// ServeHTTP handles GET /ws
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		s.logger.Warn("WebSocket authentication failed",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if s.hub.ConnectionCount(userID) >= MaxConnectionsPerUser {
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := NewClient(userID, s.hub, conn, s.logger)
	client.Start()
	s.logger.Debug("WebSocket connection established",
		zap.String("userID", userID),
		zap.String("connectionID", client.id),
	)
}

// authenticate reads the token from the query string, falling back to the
// Authorization header
func (s *Server) authenticate(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	if token == "" {
		return "", auth.ErrMissingToken
	}
	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
