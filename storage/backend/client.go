// Package backend reads certificates, courses, users & templates from the platform REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
)

// StatusError is a non-success response from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

type Client struct {
	rest    rest.Client
	baseURL string
	token   string
	timeout time.Duration
}

var (
	_ certificate.Repository         = (*Client)(nil)
	_ certificate.TemplateRepository = (*Client)(nil)
)

func NewClient(conf *core.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		rest:    rest.Client{HTTPClient: httpClient},
		baseURL: conf.Backend.BaseURL,
		token:   conf.Backend.Token,
		timeout: conf.Backend.Timeout,
	}
}

// WithToken returns a copy of the client authenticating with token.
func (c *Client) WithToken(token string) *Client {
	cc := *c
	cc.token = token
	return &cc
}

func (c *Client) send(ctx context.Context, method rest.Method, path string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}

	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(certificate.ErrNotFound, "%s %s", method, path)
	case res.StatusCode >= http.StatusBadRequest:
		return nil, &StatusError{Method: string(method), Path: path, Code: res.StatusCode}
	}
	return []byte(res.Body), nil
}

// unwrap returns the payload of a `{"data": ...}` envelope, or body itself.
func unwrap(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return body
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return body
	}
	if data, ok := env["data"]; ok && len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		return data
	}
	return body
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	body, err := c.send(ctx, rest.Get, path)
	if err != nil {
		return err
	}
	body = unwrap(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return errors.Wrapf(certificate.ErrNotFound, "GET %s: empty response", path)
	}
	if err = json.Unmarshal(body, dest); err != nil {
		return errors.Wrapf(err, "decoding GET %s", path)
	}
	return nil
}

func entityPath(collection, id string) string {
	return "/" + collection + "/" + url.PathEscape(id)
}

func (c *Client) GetCertificate(ctx context.Context, id string) (*certificate.Certificate, error) {
	var cert certificate.Certificate
	if err := c.get(ctx, entityPath("learner-certificates", id), &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

func (c *Client) GetCourse(ctx context.Context, id string) (*certificate.Course, error) {
	var course certificate.Course
	if err := c.get(ctx, entityPath("courses", id), &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*certificate.User, error) {
	var usr certificate.User
	if err := c.get(ctx, entityPath("users", id), &usr); err != nil {
		return nil, err
	}
	return &usr, nil
}

func (c *Client) GetMentor(ctx context.Context, id string) (*certificate.User, error) {
	var mentor certificate.User
	if err := c.get(ctx, entityPath("mentors", id), &mentor); err != nil {
		return nil, err
	}
	return &mentor, nil
}

func (c *Client) ListTemplates(ctx context.Context) ([]certificate.Template, error) {
	body, err := c.send(ctx, rest.Get, "/certificate-templates")
	if err != nil {
		return nil, err
	}
	body = unwrap(body)

	tmpls := make([]certificate.Template, 0)
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &tmpls)
	} else {
		var page struct {
			Items []certificate.Template `json:"items"`
		}
		if err = json.Unmarshal(body, &page); err == nil && page.Items != nil {
			tmpls = page.Items
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "decoding GET /certificate-templates")
	}
	return tmpls, nil
}

func (c *Client) GetTemplate(ctx context.Context, id string) (*certificate.Template, error) {
	var tmpl certificate.Template
	if err := c.get(ctx, entityPath("certificate-templates", id), &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	_, err := c.send(ctx, rest.Delete, entityPath("certificate-templates", id))
	return err
}
