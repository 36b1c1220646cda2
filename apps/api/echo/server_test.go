package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/digitalmadrasa/madrasa/apps/api/echo"
	"github.com/digitalmadrasa/madrasa/assets"
	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
	"github.com/digitalmadrasa/madrasa/services/document"
	"github.com/digitalmadrasa/madrasa/services/email"
	"github.com/digitalmadrasa/madrasa/services/render"
	"github.com/digitalmadrasa/madrasa/services/upload"
	"github.com/digitalmadrasa/madrasa/storage/database/inmem"
	"github.com/digitalmadrasa/madrasa/tests"
)

type httpErr struct {
	Error string `json:"error"`
}

type recordingUploader struct {
	mu      sync.Mutex
	uploads []uploadsvc.Upload
	bodies  [][]byte
}

func (u *recordingUploader) Upload(_ context.Context, up uploadsvc.Upload) (uploadsvc.Result, error) {
	body, err := io.ReadAll(up.Body)
	if err != nil {
		return uploadsvc.Result{}, err
	}
	u.mu.Lock()
	u.uploads = append(u.uploads, up)
	u.bodies = append(u.bodies, body)
	u.mu.Unlock()
	return uploadsvc.Result{URL: "https://cdn.test/" + up.Path, Path: up.Path, Method: uploadsvc.MethodDirect, Size: up.Size}, nil
}

type fixture struct {
	conf     *core.Config
	db       *inmemdb.DB
	app      echoapi.Server
	uploads  *recordingUploader
	logger   *testutil.Logger
	user     string
	admin    string
	stranger string
}

type fixtureOption func(conf *core.Config, uploads *echoapi.Uploader)

func withUploader(u echoapi.Uploader) fixtureOption {
	return func(_ *core.Config, uploads *echoapi.Uploader) { *uploads = u }
}

func withConfig(fn func(conf *core.Config)) fixtureOption {
	return func(conf *core.Config, _ *echoapi.Uploader) { fn(conf) }
}

func setup(t *testing.T, opts ...fixtureOption) *fixture {
	conf := testutil.Config(t)
	recorder := new(recordingUploader)
	var uploader echoapi.Uploader = recorder
	for _, opt := range opts {
		opt(conf, &uploader)
	}
	db := inmemdb.NewDB()
	db.AddCertificates(certificate.Certificate{ID: "42", UserID: "9", CourseID: "7", TemplateID: "t-1"})
	db.AddCourses(certificate.Course{ID: "7", Title: "Advanced React", InstructorName: null.StringFrom("Yusuf Ali")})
	db.AddUsers(certificate.User{ID: "9", Name: "Aisha Khan", Email: "aisha@example.com"})
	require.NoError(t, db.SaveTemplates(context.Background(),
		certificate.Template{ID: "t-1", Name: "Modern", Scene: json.RawMessage(`{"objects": [{"type": "text", "left": 20, "top": 20, "text": "{{student_name}}"}]}`)},
		certificate.Template{ID: "t-2", Name: "Classic"},
	))

	fonts, err := rendersvc.NewFonts("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = fonts.Close() })

	validate, translator := core.NewValidator()
	logger := new(testutil.Logger)
	emailsvc.ResetSentMessages()

	svc := certificate.NewService(certificate.Deps{
		Repo:      db,
		Templates: db,
		Renderer:  rendersvc.New(rendersvc.Options{Fonts: fonts, Logger: logger}),
		Documents: docsvc.NewPDFWriter(conf.AppName),
		Mail:      emailsvc.NewConsoleServiceMock(conf, core.NewEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf)),
		Logger:    logger,
		Validator: validate,
		Conf:      conf,
	})
	app := echoapi.NewServer(echoapi.Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		Validator:      validate,
		Translator:     translator,
		Certificates:   svc,
		Uploads:        uploader,
	})
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	token := func(v certificate.Viewer) string {
		tok, err := echoapi.GenerateToken(conf, echoapi.NewClaims(conf, v))
		require.NoError(t, err)
		return tok
	}
	return &fixture{
		conf:     conf,
		db:       db,
		app:      app,
		uploads:  recorder,
		logger:   logger,
		user:     token(certificate.Viewer{ID: "9", Name: "Aisha Khan", Email: "aisha@example.com"}),
		admin:    token(certificate.Viewer{ID: "1", Name: "Admin", IsAdmin: true}),
		stranger: token(certificate.Viewer{ID: "5", Name: "Omar"}),
	}
}

func (f *fixture) do(method, path, token string, body io.Reader, contentType ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if len(contentType) > 0 {
		req.Header.Set("Content-Type", contentType[0])
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.app.ServeHTTP(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) string {
	var he httpErr
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &he), rec.Body.String())
	return he.Error
}

func TestHome(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_certificateApi_preview(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name        string
		path        string
		token       string
		wantCode    int
		wantErr     string
		wantStudent string
	}{
		{name: "no token", path: "/v1/certificates/7/42", wantCode: http.StatusUnauthorized, wantErr: "missing or malformed jwt"},
		{name: "bad token", path: "/v1/certificates/7/42", token: "not-a-jwt", wantCode: http.StatusUnauthorized},
		{name: "owner", path: "/v1/certificates/7/42", token: f.user, wantCode: http.StatusOK, wantStudent: "Aisha Khan"},
		{name: "any viewer", path: "/v1/certificates/7/42", token: f.stranger, wantCode: http.StatusOK, wantStudent: "Aisha Khan"},
		{name: "certificate not found", path: "/v1/certificates/7/404", token: f.user, wantCode: http.StatusNotFound, wantErr: "certificate not found"},
		{name: "course not found", path: "/v1/certificates/404/42", token: f.user, wantCode: http.StatusNotFound, wantErr: "course not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.path, tt.token, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeErr(t, rec))
			}
			if tt.wantStudent == "" {
				return
			}
			var a struct {
				Values       certificate.ValueMap      `json:"values"`
				Width        int                       `json:"width"`
				Scene        map[string]interface{}    `json:"scene"`
				Degradations []certificate.Degradation `json:"degradations"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
			assert.Equal(t, tt.wantStudent, a.Values.StudentName)
			assert.Equal(t, "CERT-42", a.Values.CertificateID)
			assert.Equal(t, 400, a.Width)
			assert.NotNil(t, a.Scene["objects"])
			assert.Empty(t, a.Degradations)
		})
	}
}

func Test_certificateApi_upstreamFailure(t *testing.T) {
	f := setup(t)
	f.db.SetFailure(certificate.ResourceCourse, errors.New("connection reset"))

	rec := f.do(http.MethodGet, "/v1/certificates/7/42", f.user, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotEmpty(t, decodeErr(t, rec))
	assert.Equal(t, 1, f.logger.Count("error"), "reported once")
}

func Test_certificateApi_exports(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name        string
		path        string
		wantType    string
		wantPrefix  []byte
		wantDisplay string
	}{
		{name: "png", path: "/v1/certificates/7/42/png", wantType: "image/png", wantPrefix: []byte("\x89PNG"), wantDisplay: `attachment; filename="Advanced React.png"`},
		{name: "pdf", path: "/v1/certificates/7/42/pdf", wantType: "application/pdf", wantPrefix: []byte("%PDF"), wantDisplay: `attachment; filename="Advanced React.pdf"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.path, f.user, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantType, rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantDisplay, rec.Header().Get("Content-Disposition"))
			assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), tt.wantPrefix))
		})
	}
}

func Test_certificateApi_email(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodPost, "/v1/certificates/7/42/email", f.user, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var res echoapi.EmailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "aisha@example.com", res.SentTo)
	assert.Len(t, emailsvc.GetSentMessages(), 1)
}

func Test_templateApi(t *testing.T) {
	f := setup(t)

	t.Run("admin only", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/certificate-templates", f.user, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "permission denied", decodeErr(t, rec))
		assert.GreaterOrEqual(t, f.logger.Count("warn"), 1)
	})

	t.Run("list ordered by name", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/certificate-templates?ordering=name", f.admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list echoapi.TemplateList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list.Items, 2)
		assert.Equal(t, "Classic", list.Items[0].Name)
		assert.Equal(t, "Modern", list.Items[1].Name)

		rec = f.do(http.MethodGet, "/v1/certificate-templates?ordering=-name", f.admin, nil)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Equal(t, "Modern", list.Items[0].Name)
	})

	t.Run("retrieve", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/certificate-templates/t-1", f.admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var tmpl certificate.Template
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tmpl))
		assert.Equal(t, "Modern", tmpl.Name)

		rec = f.do(http.MethodGet, "/v1/certificate-templates/nope", f.admin, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("destroy", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/v1/certificate-templates/t-2", f.admin, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = f.do(http.MethodDelete, "/v1/certificate-templates/t-2", f.admin, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func multipartFile(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func Test_templateApi_uploadBackground(t *testing.T) {
	f := setup(t)
	path := "/v1/certificate-templates/backgrounds"

	t.Run("png", func(t *testing.T) {
		body, ct := multipartFile(t, "Seal.PNG", "image/png", []byte("png-bytes"))
		rec := f.do(http.MethodPost, path, f.admin, body, ct)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res uploadsvc.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Regexp(t, `^certificate-templates/backgrounds/[0-9a-f-]{36}\.png$`, res.Path)
		assert.Equal(t, "https://cdn.test/"+res.Path, res.URL)

		require.Len(t, f.uploads.uploads, 1)
		assert.Equal(t, "image/png", f.uploads.uploads[0].ContentType)
		assert.Equal(t, int64(9), f.uploads.uploads[0].Size)
		assert.Equal(t, []byte("png-bytes"), f.uploads.bodies[0])
	})

	t.Run("type from extension", func(t *testing.T) {
		body, ct := multipartFile(t, "paper.webp", "application/octet-stream", []byte("webp"))
		rec := f.do(http.MethodPost, path, f.admin, body, ct)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("not an image", func(t *testing.T) {
		body, ct := multipartFile(t, "notes.pdf", "application/pdf", []byte("%PDF"))
		rec := f.do(http.MethodPost, path, f.admin, body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var fldErrs map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fldErrs))
		assert.Equal(t, "only png, jpeg and webp images are allowed", fldErrs["content_type"])
	})

	t.Run("no file", func(t *testing.T) {
		rec := f.do(http.MethodPost, path, f.admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("admin only", func(t *testing.T) {
		body, ct := multipartFile(t, "seal.png", "image/png", []byte("png"))
		rec := f.do(http.MethodPost, path, f.user, body, ct)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func Test_uploadBackground_inFlight(t *testing.T) {
	started, release := make(chan struct{}, 4), make(chan struct{})
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(store.Close)

	conf := testutil.Config(t)
	conf.Storage.UploadBaseURL = store.URL
	f := setup(t, withUploader(uploadsvc.NewUploader(conf, store.Client())))
	path := "/v1/certificate-templates/backgrounds"

	post := func(token string, header ...string) chan *httptest.ResponseRecorder {
		body, ct := multipartFile(t, "Seal.png", "image/png", []byte("png-bytes"))
		done := make(chan *httptest.ResponseRecorder, 1)
		go func() {
			req := httptest.NewRequest(http.MethodPost, path, body)
			req.Header.Set("Content-Type", ct)
			req.Header.Set("Authorization", "Bearer "+token)
			if len(header) == 2 {
				req.Header.Set(header[0], header[1])
			}
			rec := httptest.NewRecorder()
			f.app.ServeHTTP(rec, req)
			done <- rec
		}()
		return done
	}

	first := post(f.admin)
	<-started

	t.Run("same file while in flight", func(t *testing.T) {
		rec := <-post(f.admin)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "This file is already being uploaded.", decodeErr(t, rec))
	})

	keyed := post(f.admin, "Idempotency-Key", "seal-v2")
	<-started
	t.Run("explicit idempotency key", func(t *testing.T) {
		rec := <-post(f.admin, "Idempotency-Key", "seal-v2")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	close(release)
	for _, done := range []chan *httptest.ResponseRecorder{first, keyed} {
		rec := <-done
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	t.Run("same file once done", func(t *testing.T) {
		rec := <-post(f.admin)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func Test_bodyLimits(t *testing.T) {
	f := setup(t, withConfig(func(conf *core.Config) {
		conf.Server.BodyLimit = "1K"
		conf.Server.UploadBodyLimit = "8K"
	}))
	path := "/v1/certificate-templates/backgrounds"

	tests := []struct {
		name     string
		size     int
		wantCode int
	}{
		{name: "upload above the app limit", size: 4 << 10, wantCode: http.StatusCreated},
		{name: "upload above its own limit", size: 16 << 10, wantCode: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartFile(t, "seal.png", "image/png", bytes.Repeat([]byte{'x'}, tt.size))
			rec := f.do(http.MethodPost, path, f.admin, body, ct)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	t.Run("other routes keep the app limit", func(t *testing.T) {
		body := bytes.NewReader(bytes.Repeat([]byte{' '}, 2<<10))
		rec := f.do(http.MethodPost, "/v1/certificates/7/42/email", f.user, body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}
