package controllers

import (
	"gradebook_go/middleware"
	"gradebook_go/services"

	"github.com/gofiber/fiber/v2"
)

type AuthController struct {
	auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in with email and password and returns a session token
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	sess, err := ac.auth.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if statusFor(err) == fiber.StatusUnauthorized {
			middleware.LogActivity(c, "LOGIN_FAILED", "auth", "", fiber.Map{"email": req.Email})
		}
		return respondError(c, err)
	}

	middleware.LogActivity(c, "LOGIN", "auth", sess.Profile.ID, nil)
	return c.JSON(fiber.Map{
		"message":    "Login successful",
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
		"profile":    sess.Profile,
	})
}

// Session returns the claims of the current token
func (ac *AuthController) Session(c *fiber.Ctx) error {
	claims, err := middleware.GetCurrentClaims(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"profile_id": claims.ProfileID,
		"email":      claims.Email,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt,
	})
}

// Logout revokes the current token for the rest of its lifetime
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	token := middleware.GetCurrentToken(c)
	if err := ac.auth.SignOut(c.UserContext(), token); err != nil {
		return respondError(c, err)
	}
	if claims, err := middleware.GetCurrentClaims(c); err == nil {
		middleware.LogActivity(c, "LOGOUT", "auth", claims.ProfileID, nil)
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// Profile returns the role, display name and hidden menus of the current profile
func (ac *AuthController) Profile(c *fiber.Ctx) error {
	claims, err := middleware.GetCurrentClaims(c)
	if err != nil {
		return respondError(c, err)
	}
	profile, err := ac.auth.GetProfile(c.UserContext(), claims.ProfileID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}
