package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/ligasur/matchday/handlers"
	"github.com/ligasur/matchday/middleware"
)

// RouterConfig — параметры защиты маршрутов консоли.
type RouterConfig struct {
	JWTSecret     string
	DeviceKeyHash string
}

func SetupRoutes(
	router *chi.Mux,
	cfg RouterConfig,
	consoleHandler *handlers.ConsoleHandler,
	reportHandler *handlers.ReportHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Device-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Get("/swagger/*", httpSwagger.Handler())

	// Лента матча публична: зрители и отчётные консьюмеры читают тот же
	// поток, что и консоль.
	router.Get("/ws/matches/{matchID}", webSocketHandler.ServeWs)

	router.Route("/matches/{matchID}", func(r chi.Router) {
		// Публичные read-only маршруты
		r.Get("/report", reportHandler.GetReport)

		// Консоль скорера: мутации только для авторизованного устройства
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.JWTSecret))
			r.Use(middleware.Authorize("scorekeeper", "admin"))
			r.Use(middleware.RequireDeviceKey(cfg.DeviceKeyHash))

			r.Post("/console", consoleHandler.OpenSession)
			r.Delete("/console", consoleHandler.CloseSession)
			r.Get("/snapshot", consoleHandler.Snapshot)
			r.Post("/incidents", consoleHandler.RecordIncident)
			r.Delete("/incidents/{entryID}", consoleHandler.UndoIncident)
			r.Post("/phase", consoleHandler.TransitionPhase)
			r.Post("/report/export", reportHandler.ExportReport)
		})
	})
}
