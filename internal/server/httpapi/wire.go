package httpapi

// Request and response bodies of the /auth/v1 protocol. All shapes are
// explicit structs; nothing on the wire is assembled dynamically.

type loginRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"` // legacy clients send username instead of id
	Password string `json:"password"`
	Server   string `json:"server"`
}

type loginResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Server      string `json:"server"`
	UserRef     string `json:"user_ref"`
}

type refreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type userPayload struct {
	UID        uint32 `json:"uid"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsActive   bool   `json:"is_active"`
	IsVerified bool   `json:"is_verified"`
	Server     string `json:"server"`
}

type meResponse struct {
	Success bool        `json:"success"`
	User    userPayload `json:"user"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createUserResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

type introspectRequest struct {
	Token  string `json:"token"`
	Server string `json:"server"`
}

type introspectResponse struct {
	Active   bool   `json:"active"`
	UserRef  string `json:"user_ref,omitempty"`
	UID      uint32 `json:"uid,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorBody struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
