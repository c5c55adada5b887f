package routers

import (
	"github.com/danchettos12/EntrevistIA/internal/handlers"
	"github.com/danchettos12/EntrevistIA/internal/middleware"
	"github.com/danchettos12/EntrevistIA/internal/models"

	"github.com/go-chi/chi/v5"
)

func AuthRoutes(router *chi.Mux, authHandler *handlers.AuthHandler) {
	router.Get("/api/v1/auth/confirm", authHandler.ConfirmHandler)
}

func AppRoutes(router *chi.Mux, app *handlers.AppHandler) {
	router.Route("/api/v1/app", func(r chi.Router) {
		r.Post("/", app.CreateClient)

		r.Route("/{clientID}", func(r chi.Router) {
			r.Get("/", app.GetClient)
			r.Delete("/", app.DeleteClient)
			r.Get("/events", app.Events)

			r.With(middleware.ValidateRequest[*models.AuthOpenRequest]()).Post("/auth/open", app.OpenAuth)
			r.With(middleware.ValidateRequest[*models.RegisterRequest]()).Post("/auth/register", app.Register)
			r.With(middleware.ValidateRequest[*models.LoginRequest]()).Post("/auth/login", app.Login)
			r.Post("/auth/logout", app.Logout)
			r.With(middleware.ValidateRequest[*models.PreferredRoleRequest]()).Put("/profile/role", app.UpdatePreferredRole)

			r.Post("/back", app.Back)
			r.Post("/close", app.Close)
			r.Post("/setup", app.OpenSetup)
			r.Post("/documentation", app.OpenDocumentation)
			r.Get("/documentation", app.Documentation)
			r.Get("/dashboard", app.Dashboard)
			r.Post("/sessions/{sessionID}/view", app.ViewSession)

			r.Route("/interview", func(r chi.Router) {
				r.With(middleware.ValidateRequest[*models.SessionConfig]()).Post("/", app.StartInterview)
				r.Get("/", app.GetInterview)
				r.With(middleware.ValidateRequest[*models.ResponseTextRequest]()).Put("/response", app.SetResponse)
				r.With(middleware.ValidateRequest[*models.RecordingStartRequest]()).Post("/recording/start", app.StartRecording)
				r.Post("/recording/chunk", app.RecordingChunk)
				r.Post("/recording/stop", app.StopRecording)
				r.Post("/submit", app.Submit)
				r.Post("/finalize", app.Finalize)
			})

			r.Get("/feedback", app.Feedback)
			r.Get("/feedback/questions/{index}", app.FeedbackQuestion)
			r.Get("/feedback/mirror", app.FeedbackMirror)
			r.Post("/feedback/save", app.SaveFeedback)
		})
	})
}
