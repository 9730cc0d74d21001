package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	AuthKey       = "authenticated"
	KeyUserID     = "user_id"
	KeyUsername   = "username"
	KeyCompanyID  = "company_id"
	KeyIsAdmin    = "isAdmin"
	KeyLoggedIn   = "logged_in"
	LocalsUserCtx = "USER_CONTEXT"
)
