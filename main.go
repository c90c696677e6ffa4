package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smilyorg/contentsd/internal/checkpoint"
	"github.com/smilyorg/contentsd/internal/contents"
	"github.com/smilyorg/contentsd/internal/httpapi"
	"github.com/smilyorg/contentsd/internal/middleware"
	"github.com/smilyorg/contentsd/internal/network"

	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(0)

	godotenv.Load()

	rootDir := os.Getenv("CONTENTSD_ROOT")
	if rootDir == "" {
		var err error
		rootDir, err = os.Getwd()
		if err != nil {
			log.Fatalf("Failed to get current directory: %v", err)
		}
	}

	apiPrefix := os.Getenv("CONTENTSD_API_PREFIX")
	if apiPrefix == "" {
		apiPrefix = "/api"
	}

	log.Printf("Root: %s", rootDir)

	checkpoints, err := checkpoint.New(rootDir)
	if err != nil {
		log.Fatalf("Failed to open checkpoint store: %v", err)
	}
	defer checkpoints.Close()

	manager, err := contents.New(rootDir, checkpoints)
	if err != nil {
		log.Fatalf("Failed to open contents root: %v", err)
	}
	defer manager.Close()

	server := httpapi.NewServer(manager)
	corsHandler := middleware.CORS()(server.Handler())

	mux := http.NewServeMux()
	if apiPrefix == "/" {
		mux.Handle("/", corsHandler)
	} else {
		mux.Handle(apiPrefix+"/", http.StripPrefix(apiPrefix, corsHandler))
	}

	addr := os.Getenv("CONTENTSD_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to start listener: %v", err)
	}

	go func() {
		log.Println("Running (Press Ctrl+C to stop)")
		if err := network.PrintListenURLs(listener.Addr(), apiPrefix); err != nil {
			log.Printf("Warning: couldn't list all network addresses: %v", err)
			log.Printf("  API: http://%s%s", addr, apiPrefix)
		}

		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
