package handlers

import (
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/driftlog-app/driftlog/backend/internal/dberr"
	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	userRepository repositories.UserRepository
	firebaseAuth   *auth.Client
	jwtSecret      string
}

// NewAuthHandler creates a new AuthHandler. firebaseAuthClient may be nil
// when Firebase is not configured; the firebase-login route then rejects.
func NewAuthHandler(userRepo repositories.UserRepository, firebaseAuthClient *auth.Client, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		firebaseAuth:   firebaseAuthClient,
		jwtSecret:      jwtSecret,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(public, protected *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/signup", h.Signup)
	public.POST("/auth/signin", h.SignIn)
	public.POST("/auth/firebase-login", h.FirebaseLogin)

	protected.GET("/auth/me", h.Me)
}

// Register creates an account for an already verified Firebase UID
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user := &models.User{
		Name:        req.Name,
		Email:       req.Email,
		FirebaseUID: &req.FirebaseUID,
	}
	if err := h.userRepository.CreateUser(c.Request().Context(), user); err != nil {
		// The unique indexes arbitrate duplicate registrations, including
		// two racing first requests.
		if dberr.IsUniqueViolation(err) {
			return echo.NewHTTPError(http.StatusConflict, "User already registered")
		}
		return serviceError(err)
	}

	return c.JSON(http.StatusCreated, user)
}

// Signup handles local user registration with email and password
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.CreateLocalUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPassword),
	}
	if err := h.userRepository.CreateUser(c.Request().Context(), user); err != nil {
		if dberr.IsUniqueViolation(err) {
			return echo.NewHTTPError(http.StatusConflict, "User with this email already registered")
		}
		return serviceError(err)
	}

	token, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token after signup")
	}

	return c.JSON(http.StatusCreated, echo.Map{"token": token})
}

// SignIn handles local user authentication with email and password
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.userRepository.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	token, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin verifies a Firebase ID token, provisions a local account on
// first login and issues a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.firebaseAuth == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Firebase authentication is not configured")
	}

	var req FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	token, err := h.firebaseAuth.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	firebaseUID := token.UID
	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)

	user, err := h.userRepository.GetUserByFirebaseUID(ctx, firebaseUID)
	switch {
	case err == nil:
		// Known user, refresh the profile fields Firebase owns.
		if name != "" {
			user.Name = name
		}
		if email != "" {
			user.Email = email
		}
		if err := h.userRepository.UpdateUser(ctx, user); err != nil {
			return serviceError(err)
		}
	case dberr.IsRecordNotFound(err):
		user, err = h.provisionFirebaseUser(c, firebaseUID, email, name)
		if err != nil {
			return err
		}
	default:
		return serviceError(err)
	}

	localJWT, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": localJWT})
}

// provisionFirebaseUser links the Firebase UID to an existing account with
// the same email, or creates a new account. Two racing first logins both
// succeed: the loser of the insert race picks up the winner's row.
func (h *AuthHandler) provisionFirebaseUser(c echo.Context, firebaseUID, email, name string) (*models.User, error) {
	ctx := c.Request().Context()

	if email != "" {
		existing, err := h.userRepository.GetUserByEmail(ctx, email)
		if err == nil {
			existing.FirebaseUID = &firebaseUID
			if err := h.userRepository.UpdateUser(ctx, existing); err != nil {
				return nil, serviceError(err)
			}
			return existing, nil
		}
		if !dberr.IsRecordNotFound(err) {
			return nil, serviceError(err)
		}
	}

	user := &models.User{
		Name:        name,
		Email:       email,
		FirebaseUID: &firebaseUID,
	}
	err := h.userRepository.CreateUser(ctx, user)
	if err == nil {
		return user, nil
	}
	if dberr.IsUniqueViolation(err) {
		winner, err := h.userRepository.GetUserByFirebaseUID(ctx, firebaseUID)
		if err != nil {
			return nil, serviceError(err)
		}
		return winner, nil
	}
	return nil, serviceError(err)
}

// Me returns the authenticated user's own record
func (h *AuthHandler) Me(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), currentUserID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, user)
}

// generateJWT generates a JWT token for a given user
func (h *AuthHandler) generateJWT(user *models.User) (string, error) {
	claims := &models.JwtCustomClaims{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
