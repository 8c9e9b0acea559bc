package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/chip-tournament-system/handlers"
	"github.com/Dosada05/chip-tournament-system/middleware"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	Settlement *handlers.SettlementHandler
	Account    *handlers.AccountHandler
	Platform   *handlers.PlatformHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, tokenParser middleware.TokenParser) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticator(tokenParser)

	router.Post("/auth/register", h.Auth.Register)
	router.Post("/auth/login", h.Auth.Login)

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты: лобби и карточки турниров
		r.Get("/", h.Tournament.List)
		r.Get("/validation-rules", h.Tournament.ValidationRules)
		r.Get("/{tournamentID}", h.Tournament.GetByID)
		r.Get("/{tournamentID}/status", h.Tournament.Status)
		r.Get("/{tournamentID}/leaderboard", h.Tournament.Leaderboard)

		// Защищённые маршруты: создание и управление жизненным циклом
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", h.Tournament.Create)
			r.Post("/{tournamentID}/transition", h.Tournament.Transition)
			r.Post("/{tournamentID}/cancel", h.Tournament.Cancel)
			r.Post("/{tournamentID}/join/{accountID}", h.Tournament.Join)
			r.Post("/{tournamentID}/rounds/{roundNumber}/open", h.Tournament.OpenRound)
			r.Post("/{tournamentID}/rounds/{roundNumber}/close", h.Tournament.CloseRound)
			r.Post("/{tournamentID}/logo", h.Tournament.UploadLogo)
		})
	})

	router.Route("/transactional", func(r chi.Router) {
		r.Get("/players/{accountID}/transactions", h.Account.Transactions)
		r.Get("/players/{accountID}/transaction-summary", h.Account.TransactionSummary)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/bet", h.Settlement.Bet)
			r.Post("/void", h.Settlement.Void)
			r.Post("/adjust", h.Settlement.Adjust)
		})
	})

	router.Route("/platforms", func(r chi.Router) {
		r.Get("/", h.Platform.List)
		r.Get("/{platformID}", h.Platform.GetByID)
		r.Get("/{platformID}/lobby", h.Tournament.Lobby)
		r.Get("/{platformID}/accounts", h.Platform.ListAccounts)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.Platform.Create)
		})
	})

	router.With(authenticate).Get("/accounts/{accountID}", h.Account.GetByID)

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.Subscribe)

	return router
}
