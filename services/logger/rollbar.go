// Package logsvc reports to Rollbar and echoes every entry to a std logger.
package logsvc

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/digitalmadrasa/madrasa/core"
)

type RollbarLogger struct {
	std   *log.Logger
	debug bool // report debug entries too
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// split sorts args into rollbar arguments & the entry's person.
// The person travels in a context so concurrent entries never share it.
// expected fmt: error, map[string]interface{}, core.Person
func split(msg string, args []interface{}) ([]interface{}, *core.Person) {
	var person *core.Person
	out := make([]interface{}, 0, len(args)+2)
	out = append(out, msg)
	for _, arg := range args {
		if p, ok := arg.(core.Person); ok {
			if person == nil && p.ID != "" { // only the first Person
				p := p
				person = &p
			}
			continue
		}
		out = append(out, arg)
	}
	if person != nil {
		out = append(out, rollbar.NewPersonContext(context.Background(), &rollbar.Person{
			Id:       person.ID,
			Username: person.Username,
			Email:    person.Email,
		}))
	}
	return out, person
}

// format renders an entry on one line: `msg key=value ... error`.
func format(msg string, args []interface{}, person *core.Person) string {
	var b strings.Builder
	b.WriteString(msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case core.Person:
		case map[string]interface{}:
			keys := make([]string, 0, len(a))
			for k := range a {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, " %s=%v", k, a[k])
			}
		case error:
			fmt.Fprintf(&b, "\n%+v", a)
		default:
			fmt.Fprintf(&b, " %v", a)
		}
	}
	if person != nil {
		fmt.Fprintf(&b, " user=%s", person.ID)
	}
	return b.String()
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	rbArgs, person := split(msg, args)
	if level != rollbar.DEBUG || l.debug {
		rollbar.Log(level, rbArgs...)
	}
	l.std.Printf("[%s] %s", strings.ToUpper(level), format(msg, args, person))
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}

// Close flushes the pending reports.
func (l RollbarLogger) Close() {
	rollbar.Close()
}
