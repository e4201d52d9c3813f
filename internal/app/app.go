package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursecraft_backend/internal/config"
	"coursecraft_backend/internal/controller"
	"coursecraft_backend/internal/ordering"
	"coursecraft_backend/internal/repository"
	"coursecraft_backend/internal/service"
	"coursecraft_backend/internal/util"
	"coursecraft_backend/pkg/database"
	"coursecraft_backend/pkg/logger"
	"coursecraft_backend/pkg/monitoring"
	"coursecraft_backend/pkg/security"
	"coursecraft_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	module      *repository.ModuleRepository
	quiz        *repository.QuizRepository
	attempt     *repository.AttemptRepository
	completion  *repository.CompletionRepository
	certificate *repository.CertificateRepository
}

type services struct {
	storage     *service.StorageService
	resultCache *service.ResultCache
	course      *service.CourseService
	module      *service.ModuleService
	lesson      *service.LessonService
	quiz        *service.QuizService
	progress    *service.ProgressService
	certificate *service.CertificateService
	attempt     *service.AttemptService
}

type controllers struct {
	course      *controller.CourseController
	module      *controller.ModuleController
	lesson      *controller.LessonController
	quiz        *controller.QuizController
	progress    *controller.ProgressController
	certificate *controller.CertificateController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig hands a reloaded config to every registered callback.
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		module:      repository.NewModuleRepository(db),
		quiz:        repository.NewQuizRepository(db),
		attempt:     repository.NewAttemptRepository(db),
		completion:  repository.NewCompletionRepository(db),
		certificate: repository.NewCertificateRepository(db),
	}
}

func initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}
	manager := ordering.NewManager(db, cfg.Ordering.MaxRetries)

	s.storage = service.NewStorageService(cfg)
	s.resultCache = service.NewResultCache(rdb, cfg.Cache.ResultTTL())
	s.course = service.NewCourseService(repos.course, repos.certificate, db)
	s.module = service.NewModuleService(repos.module, s.course, manager)
	s.lesson = service.NewLessonService(repos.module, s.course, manager)
	s.quiz = service.NewQuizService(repos.quiz, repos.module, s.course, db)
	s.progress = service.NewProgressService(s.course, repos.module, repos.quiz, repos.attempt, repos.completion, repos.certificate)
	s.certificate = service.NewCertificateService(repos.certificate, s.course, s.progress, s.storage, db, cfg.Certificate.SerialPrefix)
	s.attempt = service.NewAttemptService(repos.attempt, repos.quiz, s.course, s.progress, s.certificate, s.resultCache, db)
	return s
}

func initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		course:      controller.NewCourseController(s.course, s.module),
		module:      controller.NewModuleController(s.module),
		lesson:      controller.NewLessonController(s.lesson, s.module),
		quiz:        controller.NewQuizController(s.quiz, s.attempt),
		progress:    controller.NewProgressController(s.progress),
		certificate: controller.NewCertificateController(s.certificate),
		health:      controller.NewHealthController(db, rdb),
	}
}

func setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(gin.Recovery())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}
	router.Use(monitoring.MetricsMiddleware())
}

// NewApp wires the service. Migration runs outside release mode, or when
// forced with -migrate.
func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("logger initialized", zap.String("mode", cfg.Server.Mode))

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize database", zap.Error(err))
	}
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("database migration failed", zap.Error(err))
		}
		logger.Log.Info("database migration completed")
	}

	app := &App{Config: cfg, DB: db}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// The result cache is an optimisation; run without it.
		logger.Log.Warn("redis unavailable, result cache disabled", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	if err := util.RegisterValidators(); err != nil {
		logger.Log.Fatal("failed to register validators", zap.Error(err))
	}

	repos := initRepositories(db)
	app.services = initServices(repos, cfg, db, rdb)
	ctrls := initControllers(app.services, db, rdb)

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("coursecraft", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	app.Router = router
	setupMiddlewares(router, cfg)
	registerRoutes(router, ctrls, repos, cfg)

	if cfg.Storage.Type == util.StorageLocal && cfg.Storage.LocalPath != "" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(logger.SetLevel)
	app.RegisterConfigCallback(func(c *config.Config) {
		app.services.resultCache.SetTTL(c.Cache.ResultTTL())
	})
	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("server listening", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("server forced to shutdown", zap.Error(err))
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Log.Info("server exited")
}
