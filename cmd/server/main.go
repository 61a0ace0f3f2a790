package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lotplan-export/internal/api"
	"lotplan-export/internal/arcgis"
	"lotplan-export/internal/db"
	"lotplan-export/internal/intersect"
	"lotplan-export/internal/layers"
	"lotplan-export/internal/parcel"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to listen on")
	dbPath := flag.String("db", "", "Path to SQLite parcel cache (empty disables caching)")
	layersPath := flag.String("layers", "", "Path to layers.yaml")
	noCache := flag.Bool("no-cache", false, "Disable the parcel cache")
	flag.Parse()

	// Optional .env for local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Skipping .env: %v", err)
	}

	// Default paths relative to current working directory
	cwd, _ := os.Getwd()
	if *layersPath == "" {
		*layersPath = filepath.Join(cwd, "config", "layers.yaml")
	}
	if *dbPath == "" {
		*dbPath = filepath.Join(cwd, "data", "lotplan.db")
	}

	catalogue, err := layers.Load(*layersPath)
	if err != nil {
		log.Fatalf("Failed to load layer catalogue: %v", err)
	}
	log.Printf("Layer catalogue: %s (%d layers)", *layersPath, len(catalogue.All()))

	var database *db.DB
	if !*noCache {
		database, err = db.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()
		log.Printf("Parcel cache: %s", *dbPath)
	}

	cadastreCfg := parcel.ConfigFromEnv()
	if cadastreCfg.CadastreURL == "" {
		log.Printf("Warning: CADASTRE_URL not set, parcel resolution will fail")
	}

	client := arcgis.NewClient(httpTimeoutFromEnv())
	resolver := parcel.NewResolver(client, cadastreCfg, database)
	intersector := intersect.NewIntersector(client, catalogue)

	handlers := api.NewHandlers(database, resolver, intersector, catalogue)
	router := api.NewRouter(handlers, corsOriginsFromEnv())

	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{Addr: addr, Handler: router}

	// Shut down cleanly on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting server on http://localhost%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func httpTimeoutFromEnv() time.Duration {
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0 // client default
}

func corsOriginsFromEnv() []string {
	v := os.Getenv("CORS_ORIGINS")
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
