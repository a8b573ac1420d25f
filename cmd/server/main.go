package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsync/internal/server"
	"chatsync/internal/utils"
)

func main() {
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}

	srv := server.New(server.Config{
		JWTSecret: utils.GetEnv("JWT_SECRET", "secret"),
		TokenTTL:  utils.GetEnvDuration("TOKEN_TTL", 72*time.Hour),
	})

	// Demo accounts so a fresh server is immediately usable.
	for _, u := range []struct{ name, pw string }{
		{"ana", "ana"}, {"bruno", "bruno"}, {"carla", "carla"},
	} {
		if _, err := srv.Users().Add(u.name, u.pw); err != nil {
			log.Printf("Warning: seed user %s: %v", u.name, err)
		}
	}

	port := utils.GetEnv("PORT", "3001")
	go func() {
		log.Printf("listening on :%s", port)
		if err := srv.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Println("Gracefully shutting down...")
	_ = srv.Shutdown()
	log.Println("Server shutdown complete")
}
