package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"examhub_backend/internal/config"
	"examhub_backend/internal/controller"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/service"
	"examhub_backend/pkg/configwatcher"
	"examhub_backend/pkg/database"
	"examhub_backend/pkg/logger"
	"examhub_backend/pkg/monitoring"
	"examhub_backend/pkg/security"
	"examhub_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services        *services
	configCallbacks []func(*config.Config)
	stopSweeps      chan struct{}
}

type repositories struct {
	user       *repository.UserRepository
	exam       *repository.ExamRepository
	question   *repository.QuestionRepository
	attempt    *repository.AttemptRepository
	submission *repository.SubmissionRepository
	result     *repository.ResultRepository
}

type services struct {
	auth        *service.AuthService
	exam        *service.ExamService
	attempt     *service.AttemptService
	propagation *service.PropagationService
	result      *service.ResultService
}

type controllers struct {
	auth    *controller.AuthController
	exam    *controller.ExamController
	attempt *controller.AttemptController
	result  *controller.ResultController
	health  *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		exam:       repository.NewExamRepository(db),
		question:   repository.NewQuestionRepository(db, rdb),
		attempt:    repository.NewAttemptRepository(db),
		submission: repository.NewSubmissionRepository(db),
		result:     repository.NewResultRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.propagation = service.NewPropagationService(repos.exam, repos.question, repos.submission, db)
	s.exam = service.NewExamService(repos.exam, repos.question, s.propagation)
	s.attempt = service.NewAttemptService(repos.attempt, repos.exam, repos.question, repos.submission, db)
	s.attempt.SweepBatch = cfg.Engine.SweepBatchSize
	s.result = service.NewResultService(repos.exam, repos.question, repos.submission, repos.result, db)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		exam:    controller.NewExamController(s.exam),
		attempt: controller.NewAttemptController(s.attempt),
		result:  controller.NewResultController(s.result),
		health:  controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundSweeps runs the two time-driven transitions: attempts past
// their deadline get finalized, and exams past their end date complete.
func (a *App) startBackgroundSweeps(s *services) {
	interval := time.Duration(a.Config.Engine.SweepIntervalSeconds) * time.Second

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopSweeps:
				return
			case <-ticker.C:
				if n, err := s.attempt.SweepExpired(); err != nil {
					logger.Log.Error("attempt expiry sweep error", zap.Error(err))
				} else if n > 0 {
					logger.Log.Info("attempt expiry sweep finalized attempts", zap.Int("count", n))
				}
				if _, err := s.exam.SweepCompleted(); err != nil {
					logger.Log.Error("exam completion sweep error", zap.Error(err))
				}
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		stopSweeps: make(chan struct{}),
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg, db)
	app.services = services
	controllers := app.initControllers(services, db)

	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		_, err := tracing.InitTracer("examhub", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	app.startBackgroundSweeps(services)

	// hot-reload: re-read the config file on change and notify subscribers
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		reloaded, ok := newCfg.(*config.Config)
		if !ok {
			return
		}
		logger.Log.Info("configuration reloaded")
		for _, callback := range app.configCallbacks {
			callback(reloaded)
		}
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	close(a.stopSweeps)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
