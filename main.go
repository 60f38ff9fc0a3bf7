package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"pdit/pkg/blob"
	"pdit/pkg/mail"
	"pdit/pkg/pipeline"
	"pdit/pkg/tasks"
	"pdit/pkg/transform"
)

var (
	jwtSecret  []byte // loaded from env JWT_SECRET (fallback to dev default)
	logger     *slog.Logger
	mailer     mail.Mailer
	runner     *tasks.Runner
	docService *pipeline.Service
)

func main() {
	// Load ./.env if present before reading vars; existing env wins.
	_ = godotenv.Load()
	logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./pdit migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()

	mailer = buildMailer()

	runner = tasks.NewRunner(logger,
		envInt("TASK_QUEUE_CAPACITY", tasks.DefaultCapacity),
		envInt("TASK_WORKERS", tasks.DefaultWorkers))
	if err := runner.Start(context.Background()); err != nil {
		log.Fatal("start task runner:", err)
	}

	docService = pipeline.NewService(pipeline.ServiceConfig{
		Log:           logger,
		Store:         pipeline.NewGormStore(db),
		Blobs:         buildBlobStore(),
		Container:     envDefault("BLOB_CONTAINER", "pdit"),
		Compare:       transform.NewCompareClient(envDefault("COMPARE_API_URL", "http://localhost:6004/compare"), 0),
		CompareInline: transform.NewInlineCompareClient(envDefault("COMPARE_INLINE_API_URL", "http://localhost:5005/api/Compare/document"), 0),
		Translate:     transform.NewTranslateClient(envDefault("TRANSLATE_API_URL", "http://localhost:6003/translate"), 0),
		Scheduler:     runner,
	})

	r := gin.Default()

	setupRoutes(r)

	r.Run(":" + envDefault("PORT", "8080"))
}

// buildBlobStore selects the artifact storage backend: GCS when
// BLOB_BACKEND=gcs, the local filesystem store otherwise.
func buildBlobStore() blob.Store {
	if os.Getenv("BLOB_BACKEND") == "gcs" {
		s, err := blob.NewGCSStore(context.Background())
		if err != nil {
			log.Fatal("gcs blob store:", err)
		}
		return s
	}
	s, err := blob.NewFSStore(
		envDefault("BLOB_BASE_DIR", "blobdata"),
		envDefault("BLOB_PUBLIC_HOST", "localhost:8080"))
	if err != nil {
		log.Fatal("fs blob store:", err)
	}
	return s
}

func buildMailer() mail.Mailer {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return &mail.LogMailer{Log: logger}
	}
	return mail.NewSMTPMailer(host,
		envInt("SMTP_PORT", 587),
		os.Getenv("SMTP_USERNAME"),
		os.Getenv("SMTP_PASSWORD"),
		envDefault("SMTP_FROM", "no-reply@pdit.local"))
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
