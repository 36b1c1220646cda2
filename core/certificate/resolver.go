package certificate

import (
	"fmt"
	"time"

	"github.com/digitalmadrasa/madrasa/core"
)

// Inputs are the records one value map is resolved from.
type Inputs struct {
	Certificate Certificate
	Course      Course
	Viewer      *Viewer
	RouteID     string // certificate id as passed by the caller

	// best-effort lookups; zero results count as missing
	Student Result[*User]
	Mentor  Result[*User]

	Now      time.Time
	Location *time.Location
}

// NeedsStudentLookup reports whether the owner's profile must be fetched,
// i.e. the viewer is not the certificate owner.
func NeedsStudentLookup(cert Certificate, viewer *Viewer) bool {
	if viewer != nil && !viewer.ID.IsZero() && viewer.ID == cert.UserID {
		return false
	}
	return !cert.UserID.IsZero()
}

// NeedsMentorLookup reports whether the instructor name must come from the course mentor.
func NeedsMentorLookup(course Course) bool {
	return core.CleanString(course.InstructorName.String) == "" && !course.MentorID.IsZero()
}

// ResolveValues builds the value map of one render. Every value is non-empty.
func ResolveValues(in Inputs) ValueMap {
	return ValueMap{
		CertificateID:  displayID(in.Certificate, in.RouteID),
		StudentName:    studentName(in),
		CourseTitle:    core.FirstNonEmpty(in.Course.DisplayTitle(), FallbackCourseTitle),
		InstructorName: instructorName(in),
		Date:           issueDate(in),
	}
}

func displayID(cert Certificate, routeID string) string {
	if n, ok := cert.ID.Numeric(); ok {
		return fmt.Sprintf("CERT-%d", n)
	}
	return core.FirstNonEmpty(core.CleanString(routeID), cert.ID.String())
}

func studentName(in Inputs) string {
	if !NeedsStudentLookup(in.Certificate, in.Viewer) && in.Viewer != nil {
		if name := core.CleanString(in.Viewer.Name); name != "" {
			return name
		}
	}
	if in.Student.IsOK() && in.Student.Value != nil {
		if name := in.Student.Value.DisplayName(); name != "" {
			return name
		}
	}
	return FallbackStudentName
}

func instructorName(in Inputs) string {
	if name := core.CleanString(in.Course.InstructorName.String); in.Course.InstructorName.Valid && name != "" {
		return name
	}
	if in.Mentor.IsOK() && in.Mentor.Value != nil {
		if name := in.Mentor.Value.DisplayName(); name != "" {
			return name
		}
	}
	return FallbackInstructorName
}

func issueDate(in Inputs) string {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	if issued := in.Certificate.IssueTimestamp; issued.Valid && !issued.Time.Time.IsZero() {
		return issued.Time.Time.In(loc).Format(DateLayout)
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.In(loc).Format(DateLayout)
}
