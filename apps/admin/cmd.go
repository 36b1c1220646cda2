package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type (
	// backendStore is the platform API, read with an admin token.
	backendStore interface {
		certificate.Repository
		certificate.TemplateRepository
	}

	commandLine struct {
		conf      *core.Config
		out       io.Writer
		logger    core.Logger
		backend   func(token string) backendStore
		mirror    func() (certificate.TemplateMirror, error)
		migrateDB func() (*sql.DB, error)
		renderer  certificate.Renderer
		docs      certificate.DocumentWriter
	}
)

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a database migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  synctemplates - copy the platform's certificate templates into the local mirror")
	fmt.Fprintln(cli.out, "  render -course ID -certificate ID [-format png|pdf] [-out FILE] - export a certificate")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	renderCmd := flag.NewFlagSet("render", flag.ContinueOnError)
	renderCmd.SetOutput(cli.out)
	renderCourse := renderCmd.String("course", "", "The course id.")
	renderCert := renderCmd.String("certificate", "", "The certificate id.")
	renderFormat := renderCmd.String("format", "png", "The export format: png or pdf.")
	renderOut := renderCmd.String("out", "", "The output file. Defaults to the certificate filename.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "synctemplates":
		token, err := cli.token()
		if err != nil {
			return err
		}
		return cli.syncTemplates(token)
	case "render":
		if err := renderCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *renderCourse == "" || *renderCert == "" {
			renderCmd.Usage()
			return errHelp
		}
		token, err := cli.token()
		if err != nil {
			return err
		}
		return cli.render(token, renderOpts{
			courseID: *renderCourse,
			certID:   *renderCert,
			format:   *renderFormat,
			out:      *renderOut,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}

// token is the configured backend token, else it is prompted for.
func (cli *commandLine) token() (string, error) {
	if tok := core.CleanString(cli.conf.Backend.Token); tok != "" {
		return tok, nil
	}
	fmt.Fprint(cli.out, "Enter backend token:")
	tok, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(tok) == 0 {
		return "", errHelp
	}
	return core.CleanString(string(tok)), nil
}
