package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core/certificate"
)

func (cli *commandLine) syncTemplates(token string) error {
	mirror, err := cli.mirror()
	if err != nil {
		return errors.Wrap(err, "opening template mirror")
	}
	n, err := certificate.SyncTemplates(context.Background(), cli.backend(token), mirror)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d templates synced\n", n)
	return nil
}
