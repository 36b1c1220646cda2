package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
	docsvc "github.com/digitalmadrasa/madrasa/services/document"
	logsvc "github.com/digitalmadrasa/madrasa/services/logger"
	rendersvc "github.com/digitalmadrasa/madrasa/services/render"
	"github.com/digitalmadrasa/madrasa/storage/backend"
	"github.com/digitalmadrasa/madrasa/storage/database"
	sqlxrepos "github.com/digitalmadrasa/madrasa/storage/database/sqlx"
)

var validate, _ = core.NewValidator()

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(false)

	fonts, err := rendersvc.NewFonts(conf.Render.FontDir)
	if err != nil {
		logger.Fatal("loading fonts", err)
	}
	defer func() { _ = fonts.Close() }()

	httpClient := &http.Client{Timeout: conf.Backend.Timeout}
	remote := backend.NewClient(conf, httpClient)

	// start CLI
	cli := commandLine{
		conf:   conf,
		out:    os.Stdout,
		logger: logger,
		backend: func(token string) backendStore {
			return remote.WithToken(token)
		},
		mirror: func() (certificate.TemplateMirror, error) {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
			db, err := database.Connect(conf)
			if err != nil {
				return nil, err
			}
			return sqlxrepos.NewTemplateRepository(db), nil
		},
		migrateDB: func() (*sql.DB, error) {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
			return database.Open(conf)
		},
		renderer: rendersvc.New(rendersvc.Options{
			Fonts:   fonts,
			Fetcher: rendersvc.HTTPFetcher{Client: httpClient},
			Logger:  logger,
		}),
		docs: docsvc.NewPDFWriter(conf.AppName),
	}
	if err := cli.run(os.Args); err != nil {
		var fatalErr *certificate.FatalError
		switch {
		case err == errHelp:
		case errors.As(err, &fatalErr):
			// reported by the certificate service
			fmt.Fprintln(os.Stderr, err)
		default:
			logger.Error("command failed", err)
		}
		_ = fonts.Close()
		os.Exit(1)
	}
}
