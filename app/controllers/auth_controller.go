package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lingodesk/lingodesk/app/models"
	"github.com/lingodesk/lingodesk/app/repository"
	"github.com/lingodesk/lingodesk/internal/pkg/session"
	"github.com/lingodesk/lingodesk/internal/pkg/usercontext"
)

type registerRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	CompanyID *uint  `json:"company_id,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAuthRegister creates a user account and opens a session.
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	user.CompanyID = req.CompanyID
	if err := user.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := userRepo.GetByEmail(user.Email); err == nil {
		return jsonError(c, fiber.StatusConflict, "email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Auth] Register lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "registration failed")
	}

	if err := userRepo.Create(user); err != nil {
		log.Errorf("[Auth] Register create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "registration failed")
	}

	if err := openSession(c, user); err != nil {
		log.Errorf("[Auth] Session open failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "registration succeeded but login failed")
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleAuthLogin authenticates a user and opens a session.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByEmail(req.Email)
	// Deliberately vague on failures; don't reveal which field was wrong.
	if err != nil || !user.CheckPassword(req.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid credentials")
	}
	if !user.IsActive() {
		return jsonError(c, fiber.StatusForbidden, "account is not active")
	}

	if err := openSession(c, user); err != nil {
		log.Errorf("[Auth] Session open failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "login failed")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := userRepo.Update(user); err != nil {
		log.Warnf("[Auth] Failed to record last login for user %d: %v", user.ID, err)
	}

	return c.JSON(fiber.Map{
		"user_id":  user.ID,
		"name":     user.Name,
		"is_admin": user.Role == models.ROLE_ADMIN,
	})
}

// HandleAuthLogout destroys the current session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			log.Warnf("[Auth] Session destroy failed: %v", err)
		}
	}
	return c.JSON(fiber.Map{"logged_out": true})
}

func openSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}

	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyIsAdmin, user.Role == models.ROLE_ADMIN)
	if user.CompanyID != nil {
		sess.Set(usercontext.KeyCompanyID, *user.CompanyID)
	}

	return sess.Save()
}
