package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Lelo88/inventario-api-golang/internal/config"
	"github.com/Lelo88/inventario-api-golang/internal/db"
	"github.com/Lelo88/inventario-api-golang/internal/departamentos"
	"github.com/Lelo88/inventario-api-golang/internal/docs"
	"github.com/Lelo88/inventario-api-golang/internal/fotos"
	"github.com/Lelo88/inventario-api-golang/internal/health"
	"github.com/Lelo88/inventario-api-golang/internal/httpx"
	"github.com/Lelo88/inventario-api-golang/internal/logger"
	"github.com/Lelo88/inventario-api-golang/internal/tombamentos"
)

// appPool es lo que main necesita del pool: ping para readiness,
// acceso SQL para los repositorios y Close al apagar.
type appPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// appDeps permite inyectar dependencias de arranque en tests.
type appDeps struct {
	loadConfig     func() (config.Config, error)
	newPool        func(ctx context.Context, url string) (appPool, error)
	newStorage     func(dir string) (*fotos.Storage, error)
	listenAndServe func(addr string, handler http.Handler) error
	logf           func(format string, args ...any)
}

var (
	loadConfigFn = config.Load
	newPoolFn    = func(ctx context.Context, url string) (appPool, error) {
		return db.NewPool(ctx, url)
	}
	newStorageFn     = fotos.New
	listenAndServeFn = http.ListenAndServe
	logfFn           = log.Printf
	fatalf           = log.Fatal
)

func main() {
	deps := appDeps{
		loadConfig:     loadConfigFn,
		newPool:        newPoolFn,
		newStorage:     newStorageFn,
		listenAndServe: listenAndServeFn,
		logf:           logfFn,
	}

	if err := run(context.Background(), deps); err != nil {
		fatalf(err)
	}
}

func run(ctx context.Context, deps appDeps) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return err
	}

	applicationLogger := logger.New(cfg.LogLevel, cfg.LogFormat)

	pool, err := deps.newPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	storage, err := deps.newStorage(cfg.UploadDir)
	if err != nil {
		return err
	}

	router := buildRouter(pool, storage, applicationLogger, cfg.APIToken)

	addr := ":" + cfg.Port
	deps.logf("listening on %s", addr)
	return deps.listenAndServe(addr, router)
}

func buildRouter(pool appPool, storage *fotos.Storage, applicationLogger *slog.Logger, apiToken string) chi.Router {
	router := chi.NewRouter()

	// Middlewares base para trazabilidad y estabilidad.
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.RequestLogger(applicationLogger))
	router.Use(middleware.Recoverer)
	// Los lotes grandes de importación pueden tardar.
	router.Use(middleware.Timeout(60 * time.Second))

	// Errores de routing se manejan a nivel router.
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, r, http.StatusNotFound, "not_found", "resource not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	healthHandler := health.New(pool)
	router.Get("/health", healthHandler.Health)
	router.Get("/ready", healthHandler.Ready)

	docs.RegisterRoutes(router)

	// Las fotos subidas se sirven como archivos estáticos.
	router.Handle("/uploads/*", http.StripPrefix(fotos.URLPrefix, http.FileServer(http.Dir(storage.Dir()))))

	departamentoRepository := departamentos.NewRepository(pool)
	departamentoService := departamentos.NewService(departamentoRepository)
	departamentoHandler := departamentos.NewHandler(departamentoService)

	tombamentoRepository := tombamentos.NewRepository(pool)
	tombamentoService := tombamentos.NewService(tombamentoRepository, departamentoRepository, storage, applicationLogger)
	tombamentoHandler := tombamentos.NewHandler(tombamentoService, storage)

	// Las rutas de negocio quedan detrás del token compartido, si está configurado.
	router.Group(func(router chi.Router) {
		router.Use(httpx.BearerAuth(apiToken))
		departamentos.RegisterRoutes(router, departamentoHandler, tombamentoHandler)
		tombamentos.RegisterRoutes(router, tombamentoHandler)
	})

	return router
}
