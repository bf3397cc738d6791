package main

import (
	"time"

	"github.com/wecare-app/wecare-backend/config"
	"github.com/wecare-app/wecare-backend/models"
	"github.com/wecare-app/wecare-backend/realtime"
	"github.com/wecare-app/wecare-backend/routes"
	"github.com/wecare-app/wecare-backend/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.MediaFile{})

	// The broadcast hub lives for the whole process and is torn down on
	// shutdown so connected observers see their streams end cleanly.
	hub := realtime.NewHub()

	r := routes.SetupRouter(db, hub)

	// Start background cleanup for expired uploads (best-effort)
	utils.StartMediaCleaner(db, 5*time.Minute)

	srv := utils.NewServer(":"+cfg.AppPort, r, utils.DEFAULT_READ_TIMEOUT, utils.DEFAULT_WRITE_TIMEOUT)
	srv.OnShutdown(hub.Close)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
