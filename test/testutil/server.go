package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/TheMichaelB/zpass/internal/models"
)

// TestServer is an in-process vault API: account endpoints, one encrypted
// blob per user and a WebSocket stream announcing vault changes.
type TestServer struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]testUser
	tokens   map[string]string
	blobs    map[string]models.BlobRecord
	puts     map[string]int
	failNext int
	watchers map[string][]*websocket.Conn
	upgrader websocket.Upgrader
}

type testUser struct {
	Email    string
	Password string
}

// NewTestServer starts a server with no accounts.
func NewTestServer() *TestServer {
	ts := &TestServer{
		users:    make(map[string]testUser),
		tokens:   make(map[string]string),
		blobs:    make(map[string]models.BlobRecord),
		puts:     make(map[string]int),
		watchers: make(map[string][]*websocket.Conn),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", ts.handleLogin)
	mux.HandleFunc("/api/auth/register", ts.handleRegister)
	mux.HandleFunc("/api/auth/verify", ts.withUser(ts.handleVerify))
	mux.HandleFunc("/api/test", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "zpass test server"})
	})
	mux.HandleFunc("/api/vault", ts.withUser(ts.handleVault))
	mux.HandleFunc("/api/vault/events", ts.withUser(ts.handleEvents))

	ts.Server = httptest.NewServer(mux)
	return ts
}

// Close drops event streams and stops the server.
func (ts *TestServer) Close() {
	ts.mu.Lock()
	for _, conns := range ts.watchers {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}
	ts.watchers = make(map[string][]*websocket.Conn)
	ts.mu.Unlock()
	ts.Server.Close()
}

// AddUser creates an account.
func (ts *TestServer) AddUser(username, password string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.users[username] = testUser{Email: username + "@example.com", Password: password}
}

// Blob returns the stored record for username.
func (ts *TestServer) Blob(username string) (models.BlobRecord, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	record, ok := ts.blobs[username]
	return record, ok
}

// SetBlob replaces the stored record as another device would, and notifies
// watchers.
func (ts *TestServer) SetBlob(username string, record models.BlobRecord) {
	ts.mu.Lock()
	ts.blobs[username] = record
	ts.mu.Unlock()
	ts.Notify(username, models.WSTypeVaultUpdated)
}

// Puts returns how many uploads username made.
func (ts *TestServer) Puts(username string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.puts[username]
}

// FailNext makes the next n vault requests answer 503.
func (ts *TestServer) FailNext(n int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.failNext = n
}

// Watchers returns the number of open event streams for username.
func (ts *TestServer) Watchers(username string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.watchers[username])
}

// Notify pushes an event to username's streams.
func (ts *TestServer) Notify(username string, typ models.WSMessageType) {
	msg := models.WSMessage{Type: typ, Timestamp: time.Now().UTC()}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, conn := range ts.watchers[username] {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = conn.WriteJSON(msg)
	}
}

func (ts *TestServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ts.mu.Lock()
	user, ok := ts.users[req.Username]
	if !ok || user.Password != req.Password {
		ts.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := uuid.NewString()
	ts.tokens[token] = req.Username
	ts.mu.Unlock()

	writeJSON(w, http.StatusOK, models.LoginResponse{
		AccessToken: token,
		Message:     "Login successful",
		User:        &models.User{Username: req.Username, Email: user.Email},
	})
}

func (ts *TestServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password required")
		return
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, exists := ts.users[req.Username]; exists {
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	ts.users[req.Username] = testUser{Email: req.Email, Password: req.Password}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created successfully",
		"user":    models.User{ID: len(ts.users), Username: req.Username, Email: req.Email},
	})
}

func (ts *TestServer) handleVerify(w http.ResponseWriter, r *http.Request, username string) {
	ts.mu.Lock()
	email := ts.users[username].Email
	ts.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": models.User{Username: username, Email: email},
	})
}

func (ts *TestServer) handleVault(w http.ResponseWriter, r *http.Request, username string) {
	ts.mu.Lock()
	if ts.failNext > 0 {
		ts.failNext--
		ts.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, "try again later")
		return
	}
	ts.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		record, _ := ts.Blob(username)
		writeJSON(w, http.StatusOK, map[string]interface{}{"vault": record})

	case http.MethodPut:
		var record models.BlobRecord
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			writeError(w, http.StatusBadRequest, "invalid vault")
			return
		}
		if record.Empty() {
			writeError(w, http.StatusBadRequest, "encrypted_data and salt required")
			return
		}

		ts.mu.Lock()
		ts.blobs[username] = record
		ts.puts[username]++
		ts.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]string{"message": "Vault updated successfully"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (ts *TestServer) handleEvents(w http.ResponseWriter, r *http.Request, username string) {
	conn, err := ts.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ts.mu.Lock()
	ts.watchers[username] = append(ts.watchers[username], conn)
	ts.mu.Unlock()

	// Drain client frames so pings are answered.
	go func() {
		defer ts.dropWatcher(username, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (ts *TestServer) dropWatcher(username string, conn *websocket.Conn) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	conns := ts.watchers[username]
	for i, c := range conns {
		if c == conn {
			ts.watchers[username] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	_ = conn.Close()
}

func (ts *TestServer) withUser(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing Authorization Header")
			return
		}

		ts.mu.Lock()
		username, ok := ts.tokens[token]
		ts.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "Invalid token")
			return
		}
		next(w, r, username)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

