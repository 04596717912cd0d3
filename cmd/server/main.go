// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/dungeonbuilder/backend/internal/auth"
	"github.com/dungeonbuilder/backend/internal/database"
	"github.com/dungeonbuilder/backend/internal/handlers"
	"github.com/dungeonbuilder/backend/internal/lobby"
	"github.com/dungeonbuilder/backend/internal/middleware"
	"github.com/dungeonbuilder/backend/internal/notify"
	"github.com/dungeonbuilder/backend/internal/sweep"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := notify.ConnectRedis(); err != nil {
		logger.Warnf("redis unavailable, lobby events disabled: %v", err)
	}

	manager := lobby.NewManager(database.NewStore(), database.Directory{})
	manager.Log = logger
	if notify.Rdb != nil {
		manager.Notify = notify.NewPublisher(notify.Rdb, logger)
	}

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)

	// dungeon endpoints
	mux.Handle("/dungeon/create", logged(http.HandlerFunc(handlers.CreateDungeonHandler)))
	mux.Handle("/dungeon/get", logged(http.HandlerFunc(handlers.GetDungeonHandler)))
	mux.Handle("/dungeon/list", logged(http.HandlerFunc(handlers.ListDungeonsHandler)))

	// lobby endpoints
	mux.Handle("/lobby/create", logged(http.HandlerFunc(
		handlers.CreateLobbyHandler(manager, database.DungeonExists),
	)))
	mux.Handle("/lobby/list", logged(http.HandlerFunc(handlers.ListLobbiesHandler(manager))))
	mux.Handle("/lobby/get", logged(http.HandlerFunc(handlers.GetLobbyHandler(manager))))
	mux.Handle("/lobby/join", logged(http.HandlerFunc(handlers.JoinLobbyHandler(manager))))
	mux.Handle("/lobby/leave", logged(http.HandlerFunc(handlers.LeaveLobbyHandler(manager))))
	mux.Handle("/lobby/start", logged(http.HandlerFunc(handlers.StartLobbyHandler(manager))))
	mux.Handle("/lobby/complete", logged(http.HandlerFunc(handlers.CompleteLobbyHandler(manager))))
	mux.Handle("/lobby/cancel", logged(http.HandlerFunc(handlers.CancelLobbyHandler(manager))))

	// invite endpoints
	mux.Handle("/lobby/invite", logged(http.HandlerFunc(handlers.InviteHandler(manager))))
	mux.Handle("/lobby/invites", logged(http.HandlerFunc(handlers.ListInvitesHandler(manager))))
	mux.Handle("/lobby/invites/accept", logged(http.HandlerFunc(handlers.AcceptInviteHandler(manager))))
	mux.Handle("/lobby/invites/decline", logged(http.HandlerFunc(handlers.DeclineInviteHandler(manager))))

	// lobby event stream
	mux.Handle("/lobby/ws/", logged(http.HandlerFunc(handlers.LobbyWSHandler(logger, manager))))

	go sweep.New(manager, logger).Run(context.Background())

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
