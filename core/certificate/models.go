package certificate

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/scene"
)

// RefID is a backend identifier. The backend hands out numbers for some records
// and strings for others, so both decode here.
type RefID string

func (id *RefID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RefID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = RefID(n.String())
	return nil
}

func (id RefID) String() string { return string(id) }

// timestampLayouts are tried in order; zone-less values are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// unixMillisFloor separates unix seconds from unix milliseconds (year 5138 in seconds).
const unixMillisFloor = 1e11

// Timestamp is a backend time. It decodes RFC3339, naive ISO & SQL-style strings
// and unix seconds or milliseconds; anything else decodes as absent.
type Timestamp struct {
	null.Time
}

func TimestampFrom(t time.Time) Timestamp {
	return Timestamp{Time: null.TimeFrom(t)}
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	*ts = Timestamp{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
		raw = strings.TrimSpace(raw)
	}
	if t, ok := parseTimestamp(raw); ok {
		*ts = TimestampFrom(t)
	}
	return nil
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		if n <= 0 {
			return time.Time{}, false
		}
		if n >= unixMillisFloor {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		sec := int64(n)
		return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC(), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Before reports whether ts is earlier than other; absent timestamps sort first.
func (ts Timestamp) Before(other Timestamp) bool {
	if !ts.Valid || !other.Valid {
		return !ts.Valid && other.Valid
	}
	return ts.Time.Time.Before(other.Time.Time)
}

func (id RefID) IsZero() bool { return id == "" }

// Numeric returns the id as an integer when it is one.
func (id RefID) Numeric() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// Template is a named certificate design.
// Vars only documents which placeholders the design uses; substitution never reads it.
type Template struct {
	ID        RefID           `json:"id"`
	Name      string          `json:"name"`
	Vars      []string        `json:"vars"`
	Scene     json.RawMessage `json:"scene"`
	CreatedAt Timestamp       `json:"created_at"`
	UpdatedAt Timestamp       `json:"updated_at"`
}

// Graph loads a fresh scene graph from the template's scene document.
func (t Template) Graph(def scene.Size) (*scene.Graph, scene.Report) {
	return scene.Load(t.Scene, def)
}

// Certificate is issued by the backend when a learner completes a course. Read-only here.
type Certificate struct {
	ID             RefID     `json:"id"`
	UserID         RefID     `json:"user_id"`
	CourseID       RefID     `json:"course_id"`
	TemplateID     RefID     `json:"certificate_template_id"`
	IssueTimestamp Timestamp `json:"issue_timestamp"`
}

type Course struct {
	ID             RefID       `json:"id"`
	Title          string      `json:"title"`
	Name           string      `json:"name"`
	InstructorName null.String `json:"instructor_name"`
	MentorID       RefID       `json:"mentor_id"`
	TemplateID     RefID       `json:"certificate_template_id"`
}

// DisplayTitle is the course title, falling back to its name.
func (c Course) DisplayTitle() string {
	return core.FirstNonEmpty(c.Title, c.Name)
}

// User is a backend user profile (learners & mentors alike).
type User struct {
	ID    RefID  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DisplayName is the cleaned profile name.
func (u User) DisplayName() string {
	return core.CleanString(u.Name)
}

// Viewer is the authenticated user a certificate is rendered for.
type Viewer struct {
	ID      RefID
	Name    string
	Email   string
	IsAdmin bool
}

// Person returns who to report log entries for.
func (v *Viewer) Person() core.Person {
	if v == nil {
		return core.Person{}
	}
	return core.Person{ID: v.ID.String(), Username: v.Name, Email: v.Email}
}

// RenderRequest identifies a certificate view: `/dashboard/certificate/{courseId}/{certificateId}`.
type RenderRequest struct {
	CourseID      string  `json:"course_id" validate:"required,entityid"`
	CertificateID string  `json:"certificate_id" validate:"required,entityid"`
	Viewer        *Viewer `json:"-"`
}

func (rr *RenderRequest) Validate(validate core.StructValidator) error {
	rr.CourseID = core.CleanString(rr.CourseID)
	rr.CertificateID = core.CleanString(rr.CertificateID)
	return validate.Struct(rr)
}
