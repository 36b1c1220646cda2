package main

import (
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/digitalmadrasa/madrasa/assets"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.migrateDB()
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], db, assets.FS, assets.MigrationsDir, arguments...)
}
