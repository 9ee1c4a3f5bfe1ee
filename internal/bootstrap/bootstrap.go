package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"
	"go.uber.org/zap"

	datasetinadapter "onsetscore/internal/modules/dataset/adapter/in"
	datasetoutadapter "onsetscore/internal/modules/dataset/adapter/out"
	datasetservice "onsetscore/internal/modules/dataset/service"
	datasetusecase "onsetscore/internal/modules/dataset/usecase"
	exhibitinadapter "onsetscore/internal/modules/exhibit/adapter/in"
	exhibitoutadapter "onsetscore/internal/modules/exhibit/adapter/out"
	exhibitout "onsetscore/internal/modules/exhibit/port/out"
	exhibitservice "onsetscore/internal/modules/exhibit/service"
	exhibitusecase "onsetscore/internal/modules/exhibit/usecase"
	exportinadapter "onsetscore/internal/modules/export/adapter/in"
	exportoutadapter "onsetscore/internal/modules/export/adapter/out"
	exportservice "onsetscore/internal/modules/export/service"
	exportusecase "onsetscore/internal/modules/export/usecase"
	navigationinadapter "onsetscore/internal/modules/navigation/adapter/in"
	navigationoutadapter "onsetscore/internal/modules/navigation/adapter/out"
	navigationservice "onsetscore/internal/modules/navigation/service"
	navigationusecase "onsetscore/internal/modules/navigation/usecase"
	onsetinadapter "onsetscore/internal/modules/onset/adapter/in"
	onsetservice "onsetscore/internal/modules/onset/service"
	onsetusecase "onsetscore/internal/modules/onset/usecase"
	sessioninadapter "onsetscore/internal/modules/session/adapter/in"
	sessionoutadapter "onsetscore/internal/modules/session/adapter/out"
	sessionout "onsetscore/internal/modules/session/port/out"
	sessionservice "onsetscore/internal/modules/session/service"
	sessionusecase "onsetscore/internal/modules/session/usecase"
	"onsetscore/internal/platform/blob"
	"onsetscore/internal/platform/clock"
	"onsetscore/internal/platform/config"
	"onsetscore/internal/platform/id"
	"onsetscore/internal/platform/logging"
	"onsetscore/internal/platform/metrics"
	uiapp "onsetscore/internal/ui/app"
)

type App struct {
	DatasetCLI    datasetinadapter.CLIHandler
	SessionCLI    sessioninadapter.CLIHandler
	SessionTUI    sessioninadapter.TUIHandler
	NavigationCLI navigationinadapter.CLIHandler
	OnsetCLI      onsetinadapter.CLIHandler
	OnsetTUI      onsetinadapter.TUIHandler
	ExhibitCLI    exhibitinadapter.CLIHandler
	ExhibitTUI    exhibitinadapter.TUIHandler
	ExportCLI     exportinadapter.CLIHandler

	Logger  *zap.Logger
	Metrics *metrics.Registry
	Surface *uiapp.Surface

	cfg        config.Config
	store      *sessionservice.Store
	prefetcher *exhibitservice.Prefetcher
	controller *navigationservice.Controller
	closers    []io.Closer
	metricsSrv *http.Server
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	reg := metrics.New()
	clk := clock.SystemClock{}
	app := &App{Logger: logger, Metrics: reg, Surface: uiapp.NewSurface(), cfg: cfg}

	data, err := blob.Open(ctx, cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("open data store: %w", err)
	}
	logger.Debug("data store ready", zap.String("driver", string(data.Driver())), zap.String("root", cfg.Data.Root))

	loader := datasetservice.NewLoader(datasetoutadapter.NewBlobSource(data, cfg.Data.Index), logger, reg)
	datasetUC := datasetusecase.NewInteractor(loader)

	repo, err := app.sessionRepository()
	if err != nil {
		return nil, err
	}
	app.store = sessionservice.NewStore(repo, clk, id.UUID{}, sessionservice.Options{
		Debounce: cfg.Session.Debounce,
		Logger:   logger,
		Metrics:  reg,
	})
	sessionUC := sessionusecase.NewInteractor(app.store, sessionoutadapter.NewFileActivePointerStore(cfg.Workspace), datasetUC)

	app.prefetcher = exhibitservice.NewPrefetcher(exhibitoutadapter.NewBlobFetcher(data), app.allocator(), exhibitservice.Options{
		Concurrency: cfg.Exhibit.Concurrency,
		Logger:      logger,
		Metrics:     reg,
	})
	exhibitUC := exhibitusecase.NewInteractor(app.prefetcher, datasetUC)

	exportUC := exportusecase.NewInteractor(exportservice.NewExportService(
		exportoutadapter.NewFileManifestStore(cfg.Workspace),
		exportoutadapter.NewGRPCHost(pluginLogger(cfg.Log)),
		clk,
		logger,
	))

	app.controller = navigationservice.NewController(navigationservice.Deps{
		Loader:     loader,
		Store:      app.store,
		Renderer:   navigationusecase.NewViewPublisher(app.Surface.Publish),
		Prefetcher: app.prefetcher,
		Notifier:   navigationoutadapter.NewExportNotifier(exportUC),
		Logger:     logger,
		Metrics:    reg,
	})
	navigationUC := navigationusecase.NewInteractor(app.controller, sessionUC)

	annotator := onsetservice.NewAnnotator(app.store, logger)
	annotator.Attach(app.Surface)
	onsetUC := onsetusecase.NewInteractor(annotator, sessionUC, datasetUC)

	app.DatasetCLI = datasetinadapter.NewCLIHandler(datasetUC)
	app.SessionCLI = sessioninadapter.NewCLIHandler(sessionUC)
	app.SessionTUI = sessioninadapter.NewTUIHandler(sessionUC)
	app.NavigationCLI = navigationinadapter.NewCLIHandler(navigationUC)
	app.OnsetCLI = onsetinadapter.NewCLIHandler(onsetUC)
	app.OnsetTUI = onsetinadapter.NewTUIHandler(onsetUC)
	app.ExhibitCLI = exhibitinadapter.NewCLIHandler(exhibitUC)
	app.ExhibitTUI = exhibitinadapter.NewTUIHandler(exhibitUC)
	app.ExportCLI = exportinadapter.NewCLIHandler(exportUC)
	return app, nil
}

func (a *App) sessionRepository() (sessionout.Repository, error) {
	if a.cfg.Session.Backend != "sqlite" {
		return sessionoutadapter.NewFileRepository(a.cfg.Workspace), nil
	}
	repo, err := sessionoutadapter.NewSQLiteRepository(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("new session repository: %w", err)
	}
	a.closers = append(a.closers, repo)
	return repo, nil
}

func (a *App) allocator() exhibitout.HandleAllocator {
	if a.cfg.Exhibit.Allocator == "memory" {
		return exhibitoutadapter.NewMemoryAllocator()
	}
	return exhibitoutadapter.NewTempFileAllocator(filepath.Join(a.cfg.Workspace, ".onsetscore", "exhibits"))
}

// pluginLogger routes exporter process output through hclog, which is what
// go-plugin speaks.
func pluginLogger(cfg config.Log) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "export",
		Level:      hclog.LevelFromString(cfg.Level),
		Output:     os.Stderr,
		JSONFormat: cfg.Format == "json",
	})
}

// ServeMetrics exposes the Prometheus registry on the configured address.
// It is a no-op when no address is set.
func (a *App) ServeMetrics() {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	a.metricsSrv = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
	a.Logger.Info("serving metrics", zap.String("addr", a.cfg.Metrics.Addr))
}

// Close stops navigation, writes any pending session change and releases
// exhibit handles.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	a.controller.Close()
	if err := a.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	if err := a.prefetcher.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release exhibits: %w", err))
	}
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics: %w", err))
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

func RunTUI(app *App) error {
	app.ServeMetrics()
	model := uiapp.NewModel(uiapp.Ports{
		Navigation: app.NavigationCLI,
		Scoring:    app.SessionTUI,
		Onset:      app.OnsetTUI,
		Exhibits:   app.ExhibitTUI,
		Datasets:   app.DatasetCLI,
		Exports:    app.ExportCLI,
	}, app.Surface)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
