package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/TheMichaelB/zpass/internal/creds"
	"github.com/TheMichaelB/zpass/internal/events"
	"github.com/TheMichaelB/zpass/internal/models"
	"github.com/TheMichaelB/zpass/internal/transport"
)

// Account API endpoints.
const (
	LoginPath    = "/api/auth/login"
	RegisterPath = "/api/auth/register"
	VerifyPath   = "/api/auth/verify"
	TestPath     = "/api/test"
)

// Service handles account authentication. The bearer token it obtains is
// installed on the shared transport.
type Service struct {
	transport transport.Transport
	logger    *events.Logger

	// Token cache
	mu        sync.Mutex
	token     *models.TokenInfo
	tokenFile string

	// Combined credentials (optional)
	creds *creds.Combined
}

// NewService creates an auth service.
func NewService(t transport.Transport, tokenFile string, logger *events.Logger) *Service {
	return &Service{
		transport: t,
		tokenFile: tokenFile,
		logger:    logger.WithField("service", "auth"),
	}
}

// SetCredentials sets the combined credentials used when Login is called
// without a username or password.
func (s *Service) SetCredentials(c *creds.Combined) {
	s.creds = c
}

// Login exchanges account credentials for a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (*models.TokenInfo, error) {
	if s.creds != nil {
		if username == "" {
			username = s.creds.Auth.Username
		}
		if password == "" {
			password = s.creds.Auth.Password
		}
	}

	if username == "" || password == "" {
		return nil, errors.New("username and password required")
	}

	s.logger.WithField("username", username).Info("Logging in")

	var resp models.LoginResponse
	err := s.transport.PostJSON(ctx, LoginPath, models.LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}

	if resp.AccessToken == "" {
		return nil, errors.New("invalid login response: missing access_token")
	}

	token := &models.TokenInfo{
		Token:    resp.AccessToken,
		Username: username,
		Server:   s.transport.BaseURL(),
		IssuedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	s.transport.SetToken(token.Token)

	if err := s.saveToken(token); err != nil {
		s.logger.WithError(err).Warn("Failed to save token")
	}

	s.logger.Info("Login successful")
	return token, nil
}

// Register creates an account. It does not log in.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, errors.New("username, email and password required")
	}

	s.logger.WithField("username", req.Username).Info("Registering account")

	var resp struct {
		Message string       `json:"message"`
		User    *models.User `json:"user"`
	}
	if err := s.transport.PostJSON(ctx, RegisterPath, req, &resp); err != nil {
		return nil, fmt.Errorf("register request: %w", err)
	}

	if resp.User == nil {
		resp.User = &models.User{Username: req.Username, Email: req.Email}
	}
	return resp.User, nil
}

// Verify asks the server whether the current token is still accepted.
func (s *Service) Verify(ctx context.Context) (*models.User, error) {
	token, err := s.GetToken()
	if err != nil {
		return nil, err
	}

	var resp struct {
		User *models.User `json:"user"`
	}
	if err := s.transport.GetJSON(ctx, VerifyPath, &resp); err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	if resp.User == nil {
		resp.User = &models.User{Username: token.Username}
	}
	return resp.User, nil
}

// TestConnection checks that the server is reachable and returns its message.
func (s *Service) TestConnection(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := s.transport.GetJSON(ctx, TestPath, &resp); err != nil {
		return "", fmt.Errorf("test connection: %w", err)
	}
	return resp.Message, nil
}

// Logout clears the token locally. The server keeps no session to end.
func (s *Service) Logout(ctx context.Context) error {
	s.logger.Info("Logging out")

	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()

	s.transport.SetToken("")

	if s.tokenFile != "" {
		if err := os.Remove(s.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove token file: %w", err)
		}
	}

	return nil
}

// GetToken returns the current token, loading it from the token file when
// needed. Tokens issued by a different server are ignored.
func (s *Service) GetToken() (*models.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && !s.token.IsExpired() {
		return s.token, nil
	}

	token, err := s.loadToken()
	if err != nil || token.IsExpired() || token.Server != s.transport.BaseURL() {
		return nil, models.ErrNotAuthenticated
	}

	s.token = token
	s.transport.SetToken(token.Token)
	return token, nil
}

// AccountID identifies the logged-in account for the local cache.
func (s *Service) AccountID() (string, error) {
	token, err := s.GetToken()
	if err != nil {
		return "", err
	}
	return token.Username + "@" + token.Server, nil
}

// Token persistence

func (s *Service) saveToken(token *models.TokenInfo) error {
	if s.tokenFile == "" {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.tokenFile), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	return os.WriteFile(s.tokenFile, data, 0600)
}

func (s *Service) loadToken() (*models.TokenInfo, error) {
	if s.tokenFile == "" {
		return nil, errors.New("no token file configured")
	}

	data, err := os.ReadFile(s.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var token models.TokenInfo
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if token.Token == "" {
		return nil, errors.New("token file has no token")
	}

	return &token, nil
}
