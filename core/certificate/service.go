package certificate

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/scene"
)

type (
	// Repository reads the records a certificate is rendered from.
	// Implementations return ErrNotFound (possibly wrapped) for missing records.
	Repository interface {
		GetCertificate(ctx context.Context, id string) (*Certificate, error)
		GetCourse(ctx context.Context, id string) (*Course, error)
		GetUser(ctx context.Context, id string) (*User, error)
		GetMentor(ctx context.Context, id string) (*User, error)
	}

	TemplateRepository interface {
		ListTemplates(ctx context.Context) ([]Template, error)
		GetTemplate(ctx context.Context, id string) (*Template, error)
		DeleteTemplate(ctx context.Context, id string) error
	}

	// TemplateMirror is a local copy of the remote template store.
	TemplateMirror interface {
		TemplateRepository
		SaveTemplates(ctx context.Context, templates ...Template) error
	}

	Deps struct {
		Repo      Repository
		Templates TemplateRepository
		Renderer  Renderer
		Documents DocumentWriter
		Mail      core.EmailService
		Logger    core.Logger
		Validator core.StructValidator
		Conf      *core.Config
		Now       func() time.Time // optional
	}

	Service struct {
		repo      Repository
		templates TemplateRepository
		renderer  Renderer
		docs      DocumentWriter
		mail      core.EmailService
		logger    core.Logger
		validate  core.StructValidator
		conf      *core.Config
		now       func() time.Time
	}
)

func NewService(deps Deps) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      deps.Repo,
		templates: deps.Templates,
		renderer:  deps.Renderer,
		docs:      deps.Documents,
		mail:      deps.Mail,
		logger:    deps.Logger,
		validate:  deps.Validator,
		conf:      deps.Conf,
		now:       now,
	}
}

// defaultSize is the canvas size of scenes that do not declare one.
func (svc *Service) defaultSize() scene.Size {
	return scene.Size{Width: svc.conf.Render.Width, Height: svc.conf.Render.Height}
}

func (svc *Service) exportScale() float64 {
	if s := svc.conf.Render.ExportScale; s > 0 {
		return s
	}
	return 2
}

// Open loads the certificate & course concurrently and starts the best-effort lookups
// (student profile, template, instructor) in the background.
// It fails with a *FatalError when the certificate or the course cannot be loaded.
func (svc *Service) Open(ctx context.Context, req RenderRequest) (*Session, error) {
	if err := req.Validate(svc.validate); err != nil {
		return nil, err
	}

	var (
		wg     sync.WaitGroup
		cert   Result[*Certificate]
		course Result[*Course]
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		c, err := svc.repo.GetCertificate(ctx, req.CertificateID)
		cert = Required(ResourceCertificate, c, err)
	}()
	go func() {
		defer wg.Done()
		c, err := svc.repo.GetCourse(ctx, req.CourseID)
		course = Required(ResourceCourse, c, err)
	}()
	wg.Wait()

	for _, err := range []error{cert.Err, course.Err} {
		if err == nil {
			continue
		}
		var fe *FatalError
		if errors.As(err, &fe) && fe.NotFound() {
			svc.logger.Info("certificate record not found", map[string]interface{}{
				"resource":       fe.Resource,
				"course_id":      req.CourseID,
				"certificate_id": req.CertificateID,
			}, req.Viewer.Person())
		} else {
			svc.logger.Error("certificate render failed", err, req.Viewer.Person())
		}
		return nil, err
	}
	if cert.Value == nil {
		return nil, &FatalError{Resource: ResourceCertificate, Err: ErrNotFound}
	}
	if course.Value == nil {
		return nil, &FatalError{Resource: ResourceCourse, Err: ErrNotFound}
	}
	return svc.newSession(ctx, req, *cert.Value, *course.Value), nil
}

// Preview assembles the certificate once every best-effort lookup settled.
func (svc *Service) Preview(ctx context.Context, req RenderRequest) (*Assembly, error) {
	s, err := svc.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	s.Settle(ctx)
	return s.Assemble(), nil
}

// Export is a downloadable rendition of a certificate.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
	Width       int
	Height      int
	Page        *Page
	Assembly    *Assembly
}

// ExportPNG renders the certificate at the export scale.
func (svc *Service) ExportPNG(ctx context.Context, req RenderRequest) (*Export, error) {
	s, err := svc.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	s.Settle(ctx)
	return s.ExportPNG(ctx)
}

// ExportPDF renders the certificate at the export scale and wraps it in a single-page document.
func (svc *Service) ExportPDF(ctx context.Context, req RenderRequest) (*Export, error) {
	s, err := svc.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	s.Settle(ctx)
	return s.ExportPDF(ctx)
}

// EmailCertificate sends the PDF certificate to its owner.
func (svc *Service) EmailCertificate(ctx context.Context, req RenderRequest) (string, error) {
	s, err := svc.Open(ctx, req)
	if err != nil {
		return "", err
	}
	defer s.Close()

	s.Settle(ctx)
	to := s.RecipientEmail()
	if to == "" {
		return "", ErrNoRecipient
	}
	exp, err := s.ExportPDF(ctx)
	if err != nil {
		return "", err
	}

	values := exp.Assembly.Values
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: values.StudentName, Address: to}},
		Subject:      "Your certificate for " + values.CourseTitle,
		Categories:   []string{"certificate"},
		TemplateName: "certificate",
		TemplateData: map[string]interface{}{
			"Values":   values,
			"Filename": exp.Filename,
		},
	}
	msg.AttachBytes(exp.Data, exp.Filename, exp.ContentType)
	svc.mail.SendMessages(msg)
	return to, nil
}

func (svc *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	return svc.templates.ListTemplates(ctx)
}

// templateQuerier sorts templates in the store.
type templateQuerier interface {
	QueryTemplates(ctx context.Context, orderings []core.DBOrdering) ([]Template, error)
}

// QueryTemplates lists templates, sorted by the store when it can.
func (svc *Service) QueryTemplates(ctx context.Context, orderings []core.DBOrdering) ([]Template, error) {
	if q, ok := svc.templates.(templateQuerier); ok && len(orderings) > 0 {
		return q.QueryTemplates(ctx, orderings)
	}
	return svc.templates.ListTemplates(ctx)
}

func (svc *Service) GetTemplate(ctx context.Context, id string) (*Template, error) {
	return svc.templates.GetTemplate(ctx, core.CleanString(id))
}

func (svc *Service) DeleteTemplate(ctx context.Context, id string) error {
	return svc.templates.DeleteTemplate(ctx, core.CleanString(id))
}

// SyncTemplates copies every template of the remote store into mirror.
func SyncTemplates(ctx context.Context, remote TemplateRepository, mirror TemplateMirror) (int, error) {
	tmpls, err := remote.ListTemplates(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "listing remote templates")
	}
	if len(tmpls) == 0 {
		return 0, nil
	}
	if err = mirror.SaveTemplates(ctx, tmpls...); err != nil {
		return 0, errors.Wrap(err, "saving templates")
	}
	return len(tmpls), nil
}
