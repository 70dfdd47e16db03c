package router

import (
	"net/http"

	"github.com/newdo/backend/internal/dashboard"
	"github.com/newdo/backend/internal/handlers"
	"github.com/newdo/backend/internal/middleware"
)

// New returns an http.Handler serving the API under /api/v1 plus the
// provider webhook. Every /api/v1 route runs behind user resolution;
// the webhook is called by the provider and carries no user.
func New(taskHandler *handlers.TaskHandler, dashHandler *dashboard.Handler, users middleware.UserLookup) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"
	auth := middleware.ResolveUser(users)

	mux.Handle("POST "+base+"/hairstyle", auth(http.HandlerFunc(taskHandler.CreateHairstyle)))
	mux.Handle("GET "+base+"/tasks/{task_no}", auth(http.HandlerFunc(taskHandler.GetTask)))
	mux.Handle("GET "+base+"/tasks", auth(http.HandlerFunc(taskHandler.ListTasks)))

	mux.Handle("GET "+base+"/account/me", auth(http.HandlerFunc(dashHandler.GetMe)))
	mux.Handle("GET "+base+"/credit-ledger", auth(http.HandlerFunc(dashHandler.ListCreditLedger)))
	mux.Handle("GET "+base+"/provider-credits", auth(http.HandlerFunc(dashHandler.GetProviderCredits)))

	mux.HandleFunc("POST /webhooks/kie-image", taskHandler.KieWebhook)

	return mux
}
