// Package authv1 is the auth.v1 gRPC contract: request and response messages, the AuthService
// descriptor and client, and the JSON codec the messages travel in.
package authv1

// User is the public view of an account. Timestamps are RFC 3339 in UTC.
type User struct {
	Id          string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsVerified  bool   `json:"is_verified"`
	LastLoginAt string `json:"last_login_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type RegisterResponse struct {
	User *User `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries a bearer token pair. ExpiresIn is the access token lifetime in seconds.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse carries a new access token. RefreshToken is set only when rotation is enabled.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type LogoutAllRequest struct{}

type LogoutAllResponse struct {
	Revoked int32 `json:"revoked"`
}

type MeRequest struct{}

type MeResponse struct {
	User *User `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ChangePasswordResponse struct {
	Message string `json:"message"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ForgotPasswordResponse struct {
	Message string `json:"message"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type ResetPasswordResponse struct {
	Message string `json:"message"`
}

type GetPublicKeyRequest struct{}

// GetPublicKeyResponse is everything a relying service needs to verify access tokens offline.
type GetPublicKeyResponse struct {
	PublicKey string `json:"public_key"`
	Algorithm string `json:"algorithm"`
	KeyId     string `json:"key_id"`
}

// AuditEvent is one entry of the caller's audit trail.
type AuditEvent struct {
	Id        string `json:"id"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	Ip        string `json:"ip"`
	Metadata  string `json:"metadata,omitempty"`
	CreatedAt string `json:"created_at"`
}

type ListAuditEventsRequest struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

type ListAuditEventsResponse struct {
	Events []*AuditEvent `json:"events"`
}
