package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"LedgerCorpSuite/internal/logger"
	"LedgerCorpSuite/internal/serviceiface"
)

// Gate is the capability check every core operation runs before touching
// data. Role logic lives behind it; the core only sees allow/deny.
type Gate interface {
	Can(userID, action, resource string) bool
}

type UserSession struct {
	SessionID     string
	UserID        string
	TenantID      string
	Name          string
	Email         string
	Role          string
	RoleCode      string
	Grants        map[string]bool
	LastLoginTime string
	ClientIP      string
	IsLoggedIn    bool
}

type AuthService struct {
	db            *sql.DB
	maxUsers      int
	cleanerPeriod int
	users         map[string]*UserSession
	userPointers  map[string]*UserSession
	mu            sync.Mutex
	stopCh        chan struct{}
}

func NewAuthService(db *sql.DB, maxUsers, cleanerPeriod int) serviceiface.Service {
	if maxUsers <= 0 {
		maxUsers = 200
	}
	if cleanerPeriod <= 0 {
		cleanerPeriod = 300
	}
	return &AuthService{
		db:            db,
		maxUsers:      maxUsers,
		cleanerPeriod: cleanerPeriod,
		users:         make(map[string]*UserSession),
		userPointers:  make(map[string]*UserSession),
		stopCh:        make(chan struct{}),
	}
}

func (a *AuthService) Name() string { return "auth" }

func (a *AuthService) Start() error {
	go a.sessionCleaner()
	return nil
}

func (a *AuthService) Stop() error {
	close(a.stopCh)
	return nil
}

func (a *AuthService) Login(username, password, clientIP string) (*UserSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, session := range a.users {
		if session.Email == username && session.IsLoggedIn {
			session.LastLoginTime = time.Now().Format(time.RFC3339)
			session.ClientIP = clientIP
			if logger.GlobalLogger != nil {
				logger.GlobalLogger.LogAudit(fmt.Sprintf("User %s re-logged in, returning existing session", username))
			}
			return session, nil
		}
	}

	if len(a.users) >= a.maxUsers {
		return nil, errors.New("maximum concurrent users reached")
	}

	var (
		userID, tenantID, name, email string
		roleName, roleCode            sql.NullString
	)
	query := `
    SELECT
        u.id AS user_id,
        u.tenant_id,
        u.employee_name,
        u.email,
        r.name AS role_name,
        r.rolecode
    FROM users u
    LEFT JOIN user_roles ur ON u.id = ur.user_id
    LEFT JOIN roles r ON ur.role_id = r.id
    WHERE u.email = $1 AND u.password = $2
    `
	err := a.db.QueryRow(query, username, password).Scan(
		&userID, &tenantID, &name, &email, &roleName, &roleCode,
	)
	if err != nil {
		return nil, errors.New("invalid credentials or user not found")
	}

	session := &UserSession{
		SessionID:     generateSessionID(),
		UserID:        userID,
		TenantID:      tenantID,
		Name:          name,
		Email:         email,
		Role:          roleName.String,
		RoleCode:      roleCode.String,
		Grants:        a.loadGrants(roleCode.String),
		LastLoginTime: time.Now().Format(time.RFC3339),
		ClientIP:      clientIP,
		IsLoggedIn:    true,
	}

	a.users[session.SessionID] = session
	a.userPointers[userID] = session

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("User logged in: " + username)
	}
	return session, nil
}

// loadGrants reads the role's permitted action/resource pairs once at login.
func (a *AuthService) loadGrants(roleCode string) map[string]bool {
	grants := make(map[string]bool)
	if roleCode == "" {
		return grants
	}
	rows, err := a.db.Query(`
		SELECT p.action, p.resource
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		JOIN roles r ON r.id = rp.role_id
		WHERE r.rolecode = $1 AND rp.allowed = true`, roleCode)
	if err != nil {
		return grants
	}
	defer rows.Close()
	for rows.Next() {
		var action, resource string
		if err := rows.Scan(&action, &resource); err == nil {
			grants[grantKey(action, resource)] = true
		}
	}
	return grants
}

func (a *AuthService) Logout(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, exists := a.users[sessionID]
	if !exists {
		return errors.New("session not found")
	}
	delete(a.users, sessionID)
	delete(a.userPointers, session.UserID)

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("User logged out: " + session.UserID)
	}
	return nil
}

// Can implements Gate. Admin role codes bypass the grant table.
func (a *AuthService) Can(userID, action, resource string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	session, ok := a.userPointers[userID]
	if !ok || !session.IsLoggedIn {
		return false
	}
	if strings.EqualFold(session.RoleCode, "ADMIN") {
		return true
	}
	if session.Grants[grantKey(action, resource)] {
		return true
	}
	// Wildcard resource grant, e.g. recon:approve on "*"
	return session.Grants[grantKey(action, "*")]
}

func grantKey(action, resource string) string {
	return action + "|" + resource
}

func (a *AuthService) sessionCleaner() {
	ticker := time.NewTicker(time.Duration(a.cleanerPeriod) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.mu.Lock()
			cutoff := time.Now().Add(-24 * time.Hour)
			for id, s := range a.users {
				if t, err := time.Parse(time.RFC3339, s.LastLoginTime); err == nil && t.Before(cutoff) {
					delete(a.users, id)
					delete(a.userPointers, s.UserID)
				}
			}
			a.mu.Unlock()
		}
	}
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

var globalAuthService *AuthService

// SetGlobalAuthService wires the running AuthService for package-level access.
func SetGlobalAuthService(svc *AuthService) {
	globalAuthService = svc
}

// GetActiveSessions returns a snapshot of logged-in sessions.
func GetActiveSessions() []*UserSession {
	if globalAuthService == nil {
		return nil
	}
	globalAuthService.mu.Lock()
	defer globalAuthService.mu.Unlock()
	sessions := make([]*UserSession, 0, len(globalAuthService.users))
	for _, s := range globalAuthService.users {
		sessions = append(sessions, s)
	}
	return sessions
}

// GetSessionByUserID returns the live session for a user id, or nil.
func GetSessionByUserID(userID string) *UserSession {
	if globalAuthService == nil {
		return nil
	}
	globalAuthService.mu.Lock()
	defer globalAuthService.mu.Unlock()
	return globalAuthService.userPointers[userID]
}

// GlobalGate exposes the running service as the core's Gate. Before an auth
// service is wired it permits everything, since the tenant middleware has
// already rejected unauthenticated callers by then.
func GlobalGate() Gate {
	if globalAuthService == nil {
		return allowAll{}
	}
	return globalAuthService
}

type allowAll struct{}

func (allowAll) Can(string, string, string) bool { return true }
