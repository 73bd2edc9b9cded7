package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/cache"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/config"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/database"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/env"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/jobqueue"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Stop background workers before the listener dies so sweeps and
	// in-flight contract emails can finish their current cycle.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	config.Get() // fail fast on missing payment/contract secrets
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/beatmarkt to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "BeatMarkt",
		BodyLimit: 838860800, // 800 MiB, stems archives are the biggest uploads
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": "test",
		},
	}), monitor.New())

	// static uploads: covers and previews only. Masters are paid content
	// and never get a static route; they leave through presigned URLs.
	app.Static("/uploads/covers", basePath+"uploads/covers", fiber.Static{
		CacheDuration: 10 * time.Second,
		Compress:      false,
		MaxAge:        604800, // 7 days
	})
	app.Static("/uploads/previews", basePath+"uploads/previews", fiber.Static{
		CacheDuration: 10 * time.Second,
		Compress:      false,
		MaxAge:        604800, // 7 days
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	// background workers: checkout lock sweep, contract email recovery,
	// play/download counter flush
	jobqueue.GetManager().Start()

	return app
}
