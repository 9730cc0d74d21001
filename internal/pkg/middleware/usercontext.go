package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lingodesk/lingodesk/internal/pkg/session"
	"github.com/lingodesk/lingodesk/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session into a UserContext local for
// every request. Webhook routes bypass it in the router; they authenticate
// by signature, not by session.
func UserContextMiddleware(c *fiber.Ctx) error {
	anonymous := usercontext.UserContext{IsLoggedIn: false, IsAdmin: false}

	store := session.GetSessionStore()
	if store == nil {
		c.Locals(usercontext.LocalsUserCtx, anonymous)
		return c.Next()
	}

	sess, err := store.Get(c)
	if err != nil {
		c.Locals(usercontext.LocalsUserCtx, anonymous)
		return c.Next()
	}

	userID, ok := sess.Get(usercontext.KeyUserID).(uint)
	if !ok || userID == 0 {
		c.Locals(usercontext.LocalsUserCtx, anonymous)
		return c.Next()
	}

	ctx := usercontext.UserContext{
		UserID:     userID,
		Username:   session.GetSessionValue(c, usercontext.KeyUsername),
		IsLoggedIn: true,
	}
	if companyID, ok := sess.Get(usercontext.KeyCompanyID).(uint); ok {
		ctx.CompanyID = companyID
	}
	if isAdmin, ok := sess.Get(usercontext.KeyIsAdmin).(bool); ok {
		ctx.IsAdmin = isAdmin
	}

	c.Locals(usercontext.LocalsUserCtx, ctx)
	return c.Next()
}
