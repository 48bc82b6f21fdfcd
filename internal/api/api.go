package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/preinstall/internal/config"
	"github.com/jbweber/homelab/preinstall/internal/domain"
	"github.com/jbweber/homelab/preinstall/internal/metrics"
	"github.com/jbweber/homelab/preinstall/internal/repository"
	"github.com/jbweber/homelab/preinstall/internal/session"
)

// API holds the live sessions and the repository finished sessions are saved to
type API struct {
	cfg      *config.Config
	records  repository.RecordRepository
	sessions *SessionStore
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
}

// recordStoreAdapter adapts RecordRepository to the RecordsStore interface
type recordStoreAdapter struct {
	repo repository.RecordRepository
}

func (a *recordStoreAdapter) ListRecords(ctx context.Context) ([]domain.ProvisioningRecord, error) {
	return a.repo.FindAll(ctx)
}

func (a *recordStoreAdapter) GetRecord(ctx context.Context, id int64) (domain.ProvisioningRecord, error) {
	return a.repo.FindByID(ctx, id)
}

func (a *recordStoreAdapter) GetRecordsByHostname(ctx context.Context, hostname string) ([]domain.ProvisioningRecord, error) {
	return a.repo.FindByHostname(ctx, hostname)
}

func (a *recordStoreAdapter) DeleteRecord(ctx context.Context, id int64) error {
	return a.repo.DeleteByID(ctx, id)
}

// NewAPI wires the handlers. A nil metrics value gets a private registry.
func NewAPI(records repository.RecordRepository, cfg *config.Config, logger *zap.SugaredLogger, m *metrics.Metrics) (*API, error) {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	planner, err := cfg.Planner()
	if err != nil {
		return nil, err
	}

	a := &API{
		cfg:     cfg,
		records: records,
		metrics: m,
		logger:  logger,
	}
	a.sessions = NewSessionStore(func(host domain.HostInfo) (*session.Session, error) {
		s, err := session.New(
			session.WithPlanner(planner),
			session.WithLocations(cfg.Locations),
			session.WithSecondInterface(cfg.SecondInterface),
			session.WithIPValidation(cfg.IPValidation),
			session.WithHostInfo(host),
			session.WithLogger(logger),
			session.WithObserver(m),
		)
		if err != nil {
			return nil, err
		}
		m.SessionsCreated.Inc()
		return s, nil
	})
	return a, nil
}

// Sessions exposes the live session store
func (a *API) Sessions() *SessionStore {
	return a.sessions
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Handle("/metrics", a.metrics.Handler())

	r.Get("/api/v0/locations", a.listLocationsHandler)

	r.Route("/api/v0/sessions", func(r chi.Router) {
		r.Post("/", a.createSessionHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getSessionHandler)
			r.Delete("/", a.deleteSessionHandler)
			r.Put("/location", a.selectLocationHandler)
			r.Put("/network", a.submitNetworkHandler)
			r.Post("/skip-validation", a.skipValidationHandler)
			r.Put("/disk/device", a.selectDiskHandler)
			r.Put("/disk", a.submitDiskHandler)
			r.Post("/confirm", a.confirmHandler)
			r.Get("/export", a.exportHandler)
		})
	})

	records := NewRecordsHandler(&recordStoreAdapter{repo: a.records}, a.logger)
	r.Route("/api/v0/records", func(r chi.Router) {
		r.Get("/", records.ListRecordsHandler)
		r.Get("/{id}", records.GetRecordHandler)
		r.Delete("/{id}", records.DeleteRecordHandler)
		r.Get("/hostname/{hostname}", records.GetRecordsByHostnameHandler)
	})

	r.Route("/api/v0/calc", func(r chi.Router) {
		r.Get("/gateway", a.gatewayHandler)
		r.Get("/convert", a.convertHandler)
	})
}

func (a *API) listLocationsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.logger, http.StatusOK, a.cfg.Locations)
}
