package server

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthHandler handles registration and login requests.
type AuthHandler struct {
	userService *UserService
	jwtService  *JWTService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(userService *UserService, jwtService *JWTService, v *validator.Validate, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtService:  jwtService,
		validator:   v,
		logger:      logger,
	}
}

// Register handles POST /users/register with a JSON body.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, &ErrValidation{Message: "Invalid request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, err)
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.logger.Info("user registered", zap.String("username", user.Username))
	writeJSON(h.logger, w, http.StatusOK, map[string]string{"message": "User registered successfully"})
}

// Login handles POST /users/login. It accepts an OAuth2-style password form as well as
// a JSON body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLogin(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, err)
		return
	}

	user, err := h.userService.Login(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}

	token, err := h.jwtService.GenerateToken(user.Username)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		writeJSON(h.logger, w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
		return
	}

	writeJSON(h.logger, w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func decodeLogin(r *http.Request) (*LoginRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, &ErrValidation{Message: "Invalid request body"}
		}
		return &req, nil
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, &ErrValidation{Message: "Invalid form body"}
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, &ErrValidation{Message: "Invalid form body"}
	}
	return &LoginRequest{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}, nil
}

func (h *AuthHandler) fail(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("auth request failed", zap.Error(err))
	}
	writeJSON(h.logger, w, status, map[string]string{"error": publicMessage(err)})
}
