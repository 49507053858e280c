package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleMember  Role = "member"
	RoleVIP     Role = "vip"
	RoleVIPPlus Role = "vip_plus"
	RoleMod     Role = "mod"
	RoleAdmin   Role = "admin"
)

var roleRanks = map[Role]int{
	RoleMember:  1,
	RoleVIP:     2,
	RoleVIPPlus: 3,
	RoleMod:     4,
	RoleAdmin:   5,
}

// ParseRole accepts the wire names plus the "vip++" spelling.
func ParseRole(raw string) (Role, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "vip++" {
		normalized = string(RoleVIPPlus)
	}

	role := Role(normalized)
	_, ok := roleRanks[role]
	return role, ok
}

// Rank orders roles member < vip < vip_plus < mod < admin. Unknown roles rank 0.
func (r Role) Rank() int {
	return roleRanks[r]
}

func (r Role) AtLeast(other Role) bool {
	return r.Rank() > 0 && r.Rank() >= other.Rank()
}

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"displayName"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Avatar       *string    `json:"avatar,omitempty"`
	IsVerified   bool       `json:"isVerified"`
	IsBanned     bool       `json:"isBanned"`
	BanReason    *string    `json:"banReason,omitempty"`
	BanExpiresAt *time.Time `json:"banExpiresAt,omitempty"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
	JoinedAt     time.Time  `json:"joinedAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// BanActive reports whether the ban still applies at now. A ban without an
// expiry is permanent.
func (u User) BanActive(now time.Time) bool {
	if !u.IsBanned {
		return false
	}
	return u.BanExpiresAt == nil || !u.BanExpiresAt.Before(now)
}

// BanLapsed reports a ban flag whose expiry has passed and should be cleared.
func (u User) BanLapsed(now time.Time) bool {
	return u.IsBanned && u.BanExpiresAt != nil && u.BanExpiresAt.Before(now)
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Avatar:      u.Avatar,
		IsVerified:  u.IsVerified,
		JoinedAt:    u.JoinedAt,
		LastSeen:    u.LastSeen,
	}
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// PublicUser is the profile returned to clients; it never carries the hash
// or moderation fields.
type PublicUser struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"displayName"`
	Role        Role       `json:"role"`
	Avatar      *string    `json:"avatar,omitempty"`
	IsVerified  bool       `json:"isVerified"`
	JoinedAt    time.Time  `json:"joinedAt"`
	LastSeen    *time.Time `json:"lastSeen,omitempty"`
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

type RefreshTokenRecord struct {
	TokenID   string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type SessionEntry struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	LoginTime time.Time `json:"loginTime"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AuthResult struct {
	User   PublicUser `json:"user"`
	Tokens TokenPair  `json:"tokens"`
}

type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// ClientInfo describes the caller of an auth endpoint for logs and session
// metadata.
type ClientInfo struct {
	IP        string
	UserAgent string
}
