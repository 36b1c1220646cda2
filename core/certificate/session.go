package certificate

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/scene"
)

var (
	errPending    = errors.New("lookup still pending")
	errNoOwner    = errors.New("certificate has no owner")
	errNoTemplate = errors.New("no template assigned")
)

// Session is one certificate view: the loaded certificate & course, the best-effort
// lookups as they arrive, and the view its renders are bound to.
// Lookups delivered after Close are dropped.
type Session struct {
	svc    *Service
	req    RenderRequest
	cert   Certificate
	course Course

	mu       sync.Mutex
	student  Result[*User]
	mentor   Result[*User]
	template Result[*Template]
	pending  int
	settled  bool
	closed   bool
	done     chan struct{} // closed once nothing is pending
	updates  chan struct{}
	cancel   context.CancelFunc

	view *View
}

// Assembly is a certificate ready to be painted.
type Assembly struct {
	Values        ValueMap      `json:"values"`
	Graph         *scene.Graph  `json:"scene"`
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	TemplateID    string        `json:"template_id,omitempty"`
	Fallback      bool          `json:"fallback"`
	UnknownTokens []string      `json:"unknown_tokens,omitempty"`
	Degradations  []Degradation `json:"degradations"`
}

func (a *Assembly) Degraded() bool { return len(a.Degradations) > 0 }

func (svc *Service) newSession(ctx context.Context, req RenderRequest, cert Certificate, course Course) *Session {
	timeout := svc.conf.Render.BestEffortTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	lctx, cancel := context.WithTimeout(ctx, timeout)

	s := &Session{
		svc:      svc,
		req:      req,
		cert:     cert,
		course:   course,
		student:  Ok[*User](nil),
		mentor:   Ok[*User](nil),
		template: Degrade[*Template](nil, errNoTemplate),
		done:     make(chan struct{}),
		updates:  make(chan struct{}, 1),
		cancel:   cancel,
		view:     NewView(),
	}

	var lookups []func()
	switch {
	case !cert.UserID.IsZero() && !NeedsStudentLookup(cert, req.Viewer):
		// the viewer owns the certificate
	case cert.UserID.IsZero():
		s.student = Degrade[*User](nil, errNoOwner)
	default:
		s.student = Degrade[*User](nil, errPending)
		lookups = append(lookups, func() {
			usr, err := svc.repo.GetUser(lctx, cert.UserID.String())
			s.deliver(func() { s.student = BestEffort(usr, err, nil) })
		})
	}

	if tmplID := core.FirstNonEmpty(cert.TemplateID.String(), course.TemplateID.String()); tmplID != "" {
		s.template = Degrade[*Template](nil, errPending)
		lookups = append(lookups, func() {
			tmpl, err := svc.templates.GetTemplate(lctx, tmplID)
			s.deliver(func() { s.template = BestEffort(tmpl, err, nil) })
		})
	}

	if NeedsMentorLookup(course) {
		s.mentor = Degrade[*User](nil, errPending)
		lookups = append(lookups, func() {
			mentor, err := svc.repo.GetMentor(lctx, course.MentorID.String())
			s.deliver(func() { s.mentor = BestEffort(mentor, err, nil) })
		})
	}

	s.pending = len(lookups)
	if s.pending == 0 {
		s.settleLocked()
	}
	for _, lookup := range lookups {
		go lookup()
	}
	return s
}

// deliver applies a lookup result and notifies watchers.
func (s *Session) deliver(apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	apply()
	s.pending--
	select {
	case s.updates <- struct{}{}:
	default:
	}
	if s.pending <= 0 {
		s.settleLocked()
	}
}

func (s *Session) settleLocked() {
	if !s.settled {
		s.settled = true
		close(s.done)
	}
}

// Updates signals every time a best-effort lookup is delivered.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Done is closed once every best-effort lookup was delivered, or the session closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Settle waits for the pending lookups, at most for the best-effort timeout.
// It reports whether everything was delivered.
func (s *Session) Settle(ctx context.Context) bool {
	timeout := s.svc.conf.Render.BestEffortTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
	case <-ctx.Done():
	case <-timer.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending <= 0 && !s.closed
}

// Snapshot returns the resolver inputs as currently known.
func (s *Session) Snapshot() Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Inputs{
		Certificate: s.cert,
		Course:      s.course,
		Viewer:      s.req.Viewer,
		RouteID:     s.req.CertificateID,
		Student:     s.student,
		Mentor:      s.mentor,
		Now:         s.svc.now(),
		Location:    s.svc.conf.Render.Location(),
	}
}

func (s *Session) templateResult() Result[*Template] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.template
}

// RecipientEmail is the certificate owner's email address, if known.
func (s *Session) RecipientEmail() string {
	in := s.Snapshot()
	if v := in.Viewer; v != nil && !v.ID.IsZero() && v.ID == in.Certificate.UserID {
		return core.CleanString(v.Email)
	}
	if in.Student.IsOK() && in.Student.Value != nil {
		return core.CleanString(in.Student.Value.Email)
	}
	return ""
}

// Assemble resolves the values, loads a fresh graph from the template, substitutes
// its tokens and falls back to the default layout when it has nothing to draw.
func (s *Session) Assemble() *Assembly {
	in := s.Snapshot()
	tmpl := s.templateResult()

	a := &Assembly{Values: ResolveValues(in), Degradations: make([]Degradation, 0)}
	if d, ok := in.Student.Degradation(ResourceStudent); ok {
		a.Degradations = append(a.Degradations, d)
	}
	if d, ok := in.Mentor.Degradation(ResourceInstructor); ok {
		a.Degradations = append(a.Degradations, d)
	}

	var g *scene.Graph
	if tmpl.IsOK() && tmpl.Value != nil {
		a.TemplateID = tmpl.Value.ID.String()
		var rep scene.Report
		g, rep = tmpl.Value.Graph(s.svc.defaultSize())
		switch {
		case rep.ParseErr != nil:
			a.Degradations = append(a.Degradations, Degradation{Resource: ResourceScene, Reason: rep.ParseErr.Error()})
		case rep.Skipped > 0:
			a.Degradations = append(a.Degradations, Degradation{
				Resource: ResourceScene,
				Reason:   fmt.Sprintf("%d objects could not be read", rep.Skipped),
			})
		}
	} else {
		if d, ok := tmpl.Degradation(ResourceTemplate); ok {
			a.Degradations = append(a.Degradations, d)
		}
		def := s.svc.defaultSize()
		g = scene.NewGraph(def.Width, def.Height)
	}

	Substitute(g, a.Values, s.svc.conf.Render.StripUnknownTokens)
	a.UnknownTokens = UnknownTokens(g)
	a.Fallback = FallbackLayout(g, a.Values)
	a.Graph, a.Width, a.Height = g, g.Width, g.Height

	if a.Degraded() {
		s.svc.logger.Warn("certificate rendered with degradations", map[string]interface{}{
			"certificate_id": s.req.CertificateID,
			"course_id":      s.req.CourseID,
			"degradations":   a.Degradations,
		}, s.req.Viewer.Person())
	}
	return a
}

// Render assembles the certificate and paints it on the session view.
// The surface belongs to the view: the next render or Close disposes it.
func (s *Session) Render(ctx context.Context, scale float64) (Surface, *Assembly, error) {
	a := s.Assemble()
	surf, err := s.view.Render(ctx, s.svc.renderer, a.Graph, scale)
	if err != nil {
		return nil, a, err
	}
	return surf, a, nil
}

// Watch renders right away, then again every time a lookup is delivered,
// until everything settled, the session closes or ctx is done.
func (s *Session) Watch(ctx context.Context, scale float64, fn func(Surface, *Assembly)) error {
	for {
		// deliveries made so far are all part of the next render
		select {
		case <-s.updates:
		default:
		}

		surf, a, err := s.Render(ctx, scale)
		if err != nil {
			if errors.Cause(err) == ErrViewClosed {
				return nil
			}
			return err
		}
		fn(surf, a)

		select {
		case <-s.updates:
		case <-s.done:
			if len(s.updates) == 0 {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ExportPNG paints the certificate at the export scale and encodes it.
func (s *Session) ExportPNG(ctx context.Context) (*Export, error) {
	surf, a, err := s.Render(ctx, s.svc.exportScale())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err = surf.EncodePNG(&buf); err != nil {
		return nil, &ExportError{Format: "png", Err: err}
	}
	return &Export{
		Filename:    Filename(a.Values.CourseTitle, "png"),
		ContentType: "image/png",
		Data:        buf.Bytes(),
		Width:       surf.Width(),
		Height:      surf.Height(),
		Assembly:    a,
	}, nil
}

// ExportPDF wraps the PNG export in a single-page document of the image's pixel size.
func (s *Session) ExportPDF(ctx context.Context) (*Export, error) {
	img, err := s.ExportPNG(ctx)
	if err != nil {
		return nil, err
	}
	if s.svc.docs == nil {
		return nil, &ExportError{Format: "pdf", Err: ErrDocumentCreation}
	}

	var buf bytes.Buffer
	page, err := s.svc.docs.WriteDocument(&buf, img.Data, img.Width, img.Height)
	if err != nil {
		return nil, &ExportError{Format: "pdf", Err: err}
	}
	if buf.Len() == 0 {
		return nil, &ExportError{Format: "pdf", Err: ErrDocumentCreation}
	}
	return &Export{
		Filename:    Filename(img.Assembly.Values.CourseTitle, "pdf"),
		ContentType: "application/pdf",
		Data:        buf.Bytes(),
		Width:       img.Width,
		Height:      img.Height,
		Page:        &page,
		Assembly:    img.Assembly,
	}, nil
}

// View returns the view renders are bound to.
func (s *Session) View() *View {
	return s.view
}

// Close tears the session down: pending lookups are cancelled and ignored, the surface disposed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	s.settleLocked()
	s.mu.Unlock()
	return s.view.Close()
}
