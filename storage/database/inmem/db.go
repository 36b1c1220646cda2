// Package inmemdb keeps certificate records in memory, for tests & local runs.
package inmemdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core/certificate"
)

// DB holds every table. Lookups optionally wait Delay and fail with the error set in Failures.
type DB struct {
	mu           sync.RWMutex
	certificates map[string]certificate.Certificate
	courses      map[string]certificate.Course
	users        map[string]certificate.User
	mentors      map[string]certificate.User
	templates    map[string]certificate.Template

	Delay    map[string]time.Duration // by resource
	Failures map[string]error         // by resource
}

var (
	_ certificate.Repository     = (*DB)(nil)
	_ certificate.TemplateMirror = (*DB)(nil)
)

func NewDB() *DB {
	return &DB{
		certificates: make(map[string]certificate.Certificate),
		courses:      make(map[string]certificate.Course),
		users:        make(map[string]certificate.User),
		mentors:      make(map[string]certificate.User),
		templates:    make(map[string]certificate.Template),
		Delay:        make(map[string]time.Duration),
		Failures:     make(map[string]error),
	}
}

func (db *DB) AddCertificates(certs ...certificate.Certificate) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, c := range certs {
		db.certificates[c.ID.String()] = c
	}
}

func (db *DB) AddCourses(courses ...certificate.Course) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, c := range courses {
		db.courses[c.ID.String()] = c
	}
}

func (db *DB) AddUsers(users ...certificate.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range users {
		db.users[u.ID.String()] = u
	}
}

func (db *DB) AddMentors(mentors ...certificate.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, m := range mentors {
		db.mentors[m.ID.String()] = m
	}
}

// wait applies the configured delay & failure of resource.
func (db *DB) wait(ctx context.Context, resource string) error {
	db.mu.RLock()
	delay, failure := db.Delay[resource], db.Failures[resource]
	db.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return failure
}

// SetDelay makes lookups of resource wait d.
func (db *DB) SetDelay(resource string, d time.Duration) {
	db.mu.Lock()
	db.Delay[resource] = d
	db.mu.Unlock()
}

// SetFailure makes lookups of resource fail with err.
func (db *DB) SetFailure(resource string, err error) {
	db.mu.Lock()
	db.Failures[resource] = err
	db.mu.Unlock()
}

func notFound(resource, id string) error {
	return errors.Wrapf(certificate.ErrNotFound, "%s %q", resource, id)
}

func (db *DB) GetCertificate(ctx context.Context, id string) (*certificate.Certificate, error) {
	if err := db.wait(ctx, certificate.ResourceCertificate); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if c, ok := db.certificates[id]; ok {
		return &c, nil
	}
	return nil, notFound(certificate.ResourceCertificate, id)
}

func (db *DB) GetCourse(ctx context.Context, id string) (*certificate.Course, error) {
	if err := db.wait(ctx, certificate.ResourceCourse); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if c, ok := db.courses[id]; ok {
		return &c, nil
	}
	return nil, notFound(certificate.ResourceCourse, id)
}

func (db *DB) GetUser(ctx context.Context, id string) (*certificate.User, error) {
	if err := db.wait(ctx, certificate.ResourceStudent); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if u, ok := db.users[id]; ok {
		return &u, nil
	}
	return nil, notFound(certificate.ResourceStudent, id)
}

func (db *DB) GetMentor(ctx context.Context, id string) (*certificate.User, error) {
	if err := db.wait(ctx, certificate.ResourceInstructor); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if m, ok := db.mentors[id]; ok {
		return &m, nil
	}
	return nil, notFound(certificate.ResourceInstructor, id)
}

func (db *DB) ListTemplates(ctx context.Context) ([]certificate.Template, error) {
	if err := db.wait(ctx, certificate.ResourceTemplate); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	tmpls := make([]certificate.Template, 0, len(db.templates))
	for _, t := range db.templates {
		tmpls = append(tmpls, t)
	}
	sort.Slice(tmpls, func(i, j int) bool { return tmpls[i].ID < tmpls[j].ID })
	return tmpls, nil
}

func (db *DB) GetTemplate(ctx context.Context, id string) (*certificate.Template, error) {
	if err := db.wait(ctx, certificate.ResourceTemplate); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if t, ok := db.templates[id]; ok {
		return &t, nil
	}
	return nil, notFound(certificate.ResourceTemplate, id)
}

func (db *DB) SaveTemplates(_ context.Context, templates ...certificate.Template) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, t := range templates {
		db.templates[t.ID.String()] = t
	}
	return nil
}

func (db *DB) DeleteTemplate(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.templates[id]; !ok {
		return notFound(certificate.ResourceTemplate, id)
	}
	delete(db.templates, id)
	return nil
}
