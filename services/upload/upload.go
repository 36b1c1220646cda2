// Package uploadsvc stores files in the static object bucket.
package uploadsvc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/digitalmadrasa/madrasa/core"
)

// Upload methods
const (
	MethodDirect    = "direct"
	MethodPresigned = "presigned"
)

var (
	// errors
	ErrInProgress = errors.New("an identical upload is already in progress")
	ErrNoPresign  = errors.New("presign response has no url")

	// BackgroundsDir holds certificate template background images.
	BackgroundsDir = "certificate-templates/backgrounds"
)

type (
	// Upload is one file to store at Path. Size must be the exact body length.
	// Key identifies the submission; uploads sharing it never run concurrently. It defaults to Path.
	Upload struct {
		Key         string    `json:"-"`
		Path        string    `json:"path" validate:"required,objectpath"`
		ContentType string    `json:"content_type" validate:"required,imagetype"`
		Size        int64     `json:"size" validate:"gt=0"`
		Body        io.Reader `json:"-"`

		// OnProgress receives increasing percentages, ending at 100 on success.
		OnProgress func(percent int) `json:"-"`
	}

	Result struct {
		URL    string `json:"url"`
		Path   string `json:"path"`
		Method string `json:"method"`
		Size   int64  `json:"size"`
	}

	Uploader struct {
		client    *http.Client
		baseURL   string
		cdnURL    string
		token     string
		threshold int64

		mu       sync.Mutex
		inFlight map[string]bool
	}
)

func (up *Upload) Validate(validate core.StructValidator) error {
	up.Path = strings.TrimSpace(up.Path)
	up.ContentType = core.CleanString(up.ContentType, true /* lower */)
	return validate.Struct(up)
}

func NewUploader(conf *core.Config, client *http.Client) *Uploader {
	if client == nil {
		client = &http.Client{}
	}
	return &Uploader{
		client:    client,
		baseURL:   conf.Storage.UploadBaseURL,
		cdnURL:    conf.Storage.CDNBaseURL,
		token:     conf.Backend.Token,
		threshold: conf.Storage.PresignThreshold,
		inFlight:  make(map[string]bool),
	}
}

// UsesPresign reports whether a file of size bytes goes through a presigned url.
func (u *Uploader) UsesPresign(size int64) bool {
	return size > u.threshold
}

// PublicURL is where a stored object is served from.
func (u *Uploader) PublicURL(objectPath string) string {
	return u.cdnURL + "/" + strings.TrimLeft(objectPath, "/")
}

// BackgroundPath returns a new object path for a template background named filename.
func BackgroundPath(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return BackgroundsDir + "/" + uuid.New().String() + ext
}

// SubmissionKey identifies a file submitted by the same user under the same name & size.
func SubmissionKey(userID, filename string, size int64) string {
	return userID + "|" + strings.ToLower(path.Base(filename)) + "|" + strconv.FormatInt(size, 10)
}

func (up Upload) submission() string {
	if up.Key != "" {
		return up.Key
	}
	return up.Path
}

func (u *Uploader) acquire(key string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.inFlight[key] {
		return false
	}
	u.inFlight[key] = true
	return true
}

func (u *Uploader) release(key string) {
	u.mu.Lock()
	delete(u.inFlight, key)
	u.mu.Unlock()
}

// InFlight reports whether the submission key (or object path, for unkeyed uploads) is running.
func (u *Uploader) InFlight(key string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.inFlight[key]
}

// Upload stores the file directly, or through a presigned url above the size threshold.
// A second upload of the same submission fails with ErrInProgress while the first runs.
func (u *Uploader) Upload(ctx context.Context, up Upload) (Result, error) {
	key := up.submission()
	if !u.acquire(key) {
		return Result{}, ErrInProgress
	}
	defer u.release(key)

	body := newProgressReader(up.Body, up.Size, up.OnProgress)
	res := Result{Path: up.Path, Size: up.Size, URL: u.PublicURL(up.Path)}

	var err error
	if u.UsesPresign(up.Size) {
		res.Method = MethodPresigned
		err = u.uploadPresigned(ctx, up, body)
	} else {
		res.Method = MethodDirect
		err = u.uploadDirect(ctx, up, body)
	}
	if err != nil {
		return Result{}, err
	}
	body.done()
	return res, nil
}

func (u *Uploader) uploadDirect(ctx context.Context, up Upload, body io.Reader) error {
	q := url.Values{}
	q.Set("path", up.Path)
	q.Set("contentType", up.ContentType)
	endpoint := u.baseURL + "/static/objects?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "creating upload request")
	}
	req.ContentLength = up.Size
	req.Header.Set("Content-Type", up.ContentType)
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	return errors.Wrap(u.do(req), "uploading object")
}

func (u *Uploader) presign(ctx context.Context, key string) (string, error) {
	req := rest.Request{
		Method:      rest.Get,
		BaseURL:     u.baseURL + "/r2/static-bucket/presign",
		QueryParams: map[string]string{"key": key},
		Headers:     map[string]string{"Accept": "application/json"},
	}
	if u.token != "" {
		req.Headers["Authorization"] = "Bearer " + u.token
	}
	client := rest.Client{HTTPClient: u.client}
	res, err := client.SendWithContext(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "requesting presigned url")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return "", errors.Errorf("requesting presigned url: status %d", res.StatusCode)
	}

	var payload struct {
		URL  string `json:"url"`
		Data *struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err = json.Unmarshal([]byte(res.Body), &payload); err != nil {
		return "", errors.Wrap(err, "decoding presign response")
	}
	signed := payload.URL
	if signed == "" && payload.Data != nil {
		signed = payload.Data.URL
	}
	if signed == "" {
		return "", ErrNoPresign
	}
	return signed, nil
}

func (u *Uploader) uploadPresigned(ctx context.Context, up Upload, body io.Reader) error {
	signed, err := u.presign(ctx, up.Path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signed, body)
	if err != nil {
		return errors.Wrap(err, "creating presigned upload request")
	}
	req.ContentLength = up.Size
	req.Header.Set("Content-Type", up.ContentType)
	return errors.Wrap(u.do(req), "uploading object to presigned url")
}

func (u *Uploader) do(req *http.Request) error {
	res, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("status %d", res.StatusCode)
	}
	return nil
}
