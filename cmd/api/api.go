package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"mpesa/internal/auth"
	"mpesa/internal/mpesa"
	"mpesa/internal/payments"
	"mpesa/internal/ratelimiter"
	"mpesa/internal/reference"
	"mpesa/internal/store"
)

type application struct {
	config        config
	logger        *zap.SugaredLogger
	mpesa         *mpesa.Client
	payments      *payments.PaymentManager
	journal       store.Journal
	references    *reference.Generator
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	addr            string
	env             string
	db              dbConfig
	mpesa           mpesa.Config
	auth            authConfig
	referenceSecret string
	rateLimiter     ratelimiter.Config
}

type authConfig struct {
	basic auth.Credentials
	token tokenConfig
}

type tokenConfig struct {
	secret        string
	refreshSecret string
	iss           string
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

// newApplication wires the gateway client over transport. Every exchange the
// client makes, including those started by the payment adapter, passes through
// the journal.
func newApplication(
	cfg config,
	logger *zap.SugaredLogger,
	journal store.Journal,
	refs *reference.Generator,
	authenticator auth.Authenticator,
	limiter ratelimiter.Limiter,
	transport mpesa.Transport,
) *application {
	settings := mpesa.NewStore(cfg.mpesa)

	client := mpesa.NewClientWithStore(settings,
		mpesa.WithTransport(&journalingTransport{
			next:     transport,
			settings: settings,
			journal:  journal,
			logger:   logger,
		}),
		mpesa.WithLogger(logger.Named("mpesa")),
	)

	manager := payments.NewPaymentManager()
	manager.RegisterGateway("mpesa", payments.NewMpesaAdapter(client))

	return &application{
		config:        cfg,
		logger:        logger,
		mpesa:         client,
		payments:      manager,
		journal:       journal,
		references:    refs,
		authenticator: authenticator,
		rateLimiter:   limiter,
	}
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// payment initiations may wait up to two minutes on the gateway
	r.Use(middleware.Timeout(150 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		r.Route("/authentication", func(r chi.Router) {
			r.With(app.BasicAuthMiddleware()).Post("/token", app.createTokenHandler)
			r.Post("/refresh", app.refreshTokenHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Use(app.RateLimiterMiddleware)

			r.Route("/mpesa", func(r chi.Router) {
				r.Post("/c2b", app.c2bPaymentHandler)
				r.Post("/b2c", app.b2cPaymentHandler)
				r.Post("/b2b", app.b2bPaymentHandler)
				r.Put("/reversal", app.reversalHandler)
				r.Get("/transactions/status", app.transactionStatusHandler)
				r.Get("/customers/{msisdn}", app.customerNameHandler)

				r.Get("/journal", app.listJournalHandler)
				r.Get("/journal/{reference}", app.getJournalHandler)

				r.Get("/configuration", app.getConfigurationHandler)
				r.Patch("/configuration", app.updateConfigurationHandler)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", app.CheckoutHandler)
				r.Post("/verify", app.VerifyCheckoutHandler)
				r.Post("/refund", app.RefundCheckoutHandler)
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 160,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
