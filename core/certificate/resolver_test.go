package certificate

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestResolveValues(t *testing.T) {
	issued := time.Date(2024, 3, 3, 20, 30, 0, 0, time.UTC)
	now := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	kolkata := time.FixedZone("IST", 5*3600+1800)
	aisha := &User{ID: "9", Name: " Aisha Khan ", Email: "aisha@example.com"}

	tests := []struct {
		name string
		in   Inputs
		want ValueMap
	}{
		{
			name: "everything known",
			in: Inputs{
				Certificate: Certificate{ID: "42", UserID: "9", IssueTimestamp: TimestampFrom(issued)},
				Course:      Course{Title: "Advanced React", InstructorName: null.StringFrom("Yusuf Ali")},
				Student:     Ok(aisha),
				Now:         now,
			},
			want: ValueMap{
				CertificateID:  "CERT-42",
				StudentName:    "Aisha Khan",
				CourseTitle:    "Advanced React",
				InstructorName: "Yusuf Ali",
				Date:           "March 3, 2024",
			},
		},
		{
			name: "nothing known",
			in:   Inputs{RouteID: " abc-1 ", Now: now},
			want: ValueMap{
				CertificateID:  "abc-1",
				StudentName:    FallbackStudentName,
				CourseTitle:    FallbackCourseTitle,
				InstructorName: FallbackInstructorName,
				Date:           "January 15, 2025",
			},
		},
		{
			name: "viewer owns the certificate",
			in: Inputs{
				Certificate: Certificate{ID: "uuid-7", UserID: "9"},
				Course:      Course{Name: "Fiqh"},
				Viewer:      &Viewer{ID: "9", Name: "Aisha"},
				Student:     Ok(&User{Name: "Someone Else"}),
				Mentor:      Ok(&User{Name: "Mentor Name"}),
				Now:         now,
			},
			want: ValueMap{
				CertificateID:  "uuid-7",
				StudentName:    "Aisha",
				CourseTitle:    "Fiqh",
				InstructorName: "Mentor Name",
				Date:           "January 15, 2025",
			},
		},
		{
			name: "degraded student lookup",
			in: Inputs{
				Certificate: Certificate{ID: "1", UserID: "9"},
				Viewer:      &Viewer{ID: "1", IsAdmin: true},
				Student:     Degrade(aisha, errors.New("timeout")),
				Now:         now,
			},
			want: ValueMap{
				CertificateID:  "CERT-1",
				StudentName:    FallbackStudentName,
				CourseTitle:    FallbackCourseTitle,
				InstructorName: FallbackInstructorName,
				Date:           "January 15, 2025",
			},
		},
		{
			name: "issue date in the configured zone",
			in: Inputs{
				Certificate: Certificate{ID: "2", IssueTimestamp: TimestampFrom(issued)},
				Student:     Ok(&User{Name: "   "}),
				Location:    kolkata,
			},
			want: ValueMap{
				CertificateID:  "CERT-2",
				StudentName:    FallbackStudentName,
				CourseTitle:    FallbackCourseTitle,
				InstructorName: FallbackInstructorName,
				Date:           "March 4, 2024",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveValues(tt.in))
		})
	}
}

func TestNeedsLookups(t *testing.T) {
	cert := Certificate{ID: "1", UserID: "9"}
	assert.False(t, NeedsStudentLookup(cert, &Viewer{ID: "9"}))
	assert.True(t, NeedsStudentLookup(cert, &Viewer{ID: "3"}))
	assert.True(t, NeedsStudentLookup(cert, nil))
	assert.False(t, NeedsStudentLookup(Certificate{ID: "1"}, &Viewer{ID: "3"}))

	assert.True(t, NeedsMentorLookup(Course{MentorID: "3"}))
	assert.True(t, NeedsMentorLookup(Course{MentorID: "3", InstructorName: null.StringFrom(" ")}))
	assert.False(t, NeedsMentorLookup(Course{MentorID: "3", InstructorName: null.StringFrom("Yusuf")}))
	assert.False(t, NeedsMentorLookup(Course{}))
}
