package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/digitalmadrasa/madrasa/apps/api/echo"
	"github.com/digitalmadrasa/madrasa/assets"
	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
	docsvc "github.com/digitalmadrasa/madrasa/services/document"
	emailsvc "github.com/digitalmadrasa/madrasa/services/email"
	logsvc "github.com/digitalmadrasa/madrasa/services/logger"
	rendersvc "github.com/digitalmadrasa/madrasa/services/render"
	uploadsvc "github.com/digitalmadrasa/madrasa/services/upload"
	"github.com/digitalmadrasa/madrasa/storage/backend"
	"github.com/digitalmadrasa/madrasa/storage/database"
	sqlxrepos "github.com/digitalmadrasa/madrasa/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	httpClient := &http.Client{Timeout: conf.Backend.Timeout}
	remote := backend.NewClient(conf, httpClient)

	// set up the template store
	var templates certificate.TemplateRepository = remote
	if conf.TemplateSource == core.TemplateSourceMirror {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				logger.Error("failed to close database", err)
			}
		}()
		templates = sqlxrepos.NewTemplateRepository(db)
	}

	// set up services
	emailTemplates := core.NewEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf)
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, emailTemplates, log.New(os.Stdout, "EMAIL : ", log.LstdFlags))
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, emailTemplates, logger)
	}

	fonts, err := rendersvc.NewFonts(conf.Render.FontDir)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading fonts: %v", err), err)
	}
	defer func() { _ = fonts.Close() }()

	validate, translator := core.NewValidator()

	certSvc := certificate.NewService(certificate.Deps{
		Repo:      remote,
		Templates: templates,
		Renderer: rendersvc.New(rendersvc.Options{
			Fonts:        fonts,
			Fetcher:      rendersvc.HTTPFetcher{Client: httpClient},
			FetchTimeout: conf.Backend.Timeout,
			Logger:       logger,
		}),
		Documents: docsvc.NewPDFWriter(conf.AppName),
		Mail:      mailSvc,
		Logger:    logger,
		Validator: validate,
		Conf:      conf,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("templates").Set(conf.TemplateSource)

	if conf.Server.DebugHost != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.Options{
		Conf:         conf,
		Logger:       logger,
		Validator:    validate,
		Translator:   translator,
		Certificates: certSvc,
		Uploads:      uploadsvc.NewUploader(conf, &http.Client{}),
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Connect(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
