package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment
		Categories  []string // delivery tags, e.g. "certificate"

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}

	// EmailTemplates parses `<name>.txt` & `<name>.gohtml` templates, each with its `_base` layout.
	EmailTemplates struct {
		fsys            fs.FS
		dir             string
		frontendBaseURL string
		strict          bool

		once sync.Once
		text map[string]*texttmpl.Template
		html map[string]*htmltmpl.Template
		err  error
	}
)

func NewEmailTemplates(fsys fs.FS, dir string, conf *Config) *EmailTemplates {
	return &EmailTemplates{
		fsys:            fsys,
		dir:             dir,
		frontendBaseURL: conf.FrontendBaseURL,
		strict:          conf.Debug || conf.TestMode,
	}
}

// parse only runs once, during the first render
func (et *EmailTemplates) parse() {
	et.text = make(map[string]*texttmpl.Template)
	et.html = make(map[string]*htmltmpl.Template)

	fps, err := fs.Glob(et.fsys, path.Join(et.dir, "*"))
	if err != nil {
		et.err = errors.Wrap(err, "listing email templates")
		return
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)

		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(et.fsys, path.Join(et.dir, "_base.txt"), fp)
			if err != nil {
				et.err = errors.Wrapf(err, "parsing %s", fname)
				return
			}
			if et.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			et.text[name] = tmpl.Lookup(fname)
		} else {
			tmpl, err := htmltmpl.ParseFS(et.fsys, path.Join(et.dir, "_base.gohtml"), fp)
			if err != nil {
				et.err = errors.Wrapf(err, "parsing %s", fname)
				return
			}
			if et.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			et.html[name] = tmpl.Lookup(fname)
		}
	}
}

func (et *EmailTemplates) context(m *EmailMessage) ContextData {
	return ContextData{FrontendBaseURL: et.frontendBaseURL, Data: m.TemplateData}
}

func (et *EmailTemplates) renderText(m *EmailMessage) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	tmpl, ok := et.text[m.TemplateName]
	if !ok || tmpl == nil {
		return nil
	}
	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, et.context(m)); err != nil {
		return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
	}
	m.TextContent = buff.String()
	return nil
}

func (et *EmailTemplates) renderHTML(m *EmailMessage) error {
	tmpl, ok := et.html[m.TemplateName]
	if !ok || tmpl == nil {
		return nil
	}
	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, et.context(m)); err != nil {
		return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render fills the message's text & HTML contents from its template.
// A nil *EmailTemplates only renders BodyStr.
func (m *EmailMessage) Render(et *EmailTemplates) error {
	if m.BodyStr != "" && (et == nil || m.TemplateName == "") {
		m.TextContent = m.BodyStr
		return nil
	}
	if et == nil || m.TemplateName == "" {
		return nil
	}
	et.once.Do(et.parse)
	if et.err != nil {
		return et.err
	}
	if err := et.renderText(m); err != nil {
		return err
	}
	return et.renderHTML(m)
}

// AttachBytes attaches content, detecting its type unless given.
func (m *EmailMessage) AttachBytes(content []byte, filename string, ct ...string) {
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	_, _ = encoder.Write(content)
	_ = encoder.Close()

	if len(ct) > 0 && ct[0] != "" {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}
	m.AttachBytes(content, filename, ct...)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
