package certificate

// Recognized placeholder tokens, written `{{token}}` in template text.
const (
	TokenCertificateID      = "certificate_id"
	TokenCertificateIDAlias = "certificateID"
	TokenStudentName        = "student_name"
	TokenCourseName         = "course_name"
	TokenCourseTitle        = "course_title"
	TokenInstructorName     = "instructor_name"
	TokenDate               = "date"
	TokenDateAlias          = "dateofIssue"
)

// Display fallbacks used when a source field is missing.
const (
	FallbackStudentName    = "Student Name"
	FallbackCourseTitle    = "Course"
	FallbackInstructorName = "Instructor"
)

// DateLayout renders dates like "March 3, 2024".
const DateLayout = "January 2, 2006"

// Tokens lists every recognized token.
var Tokens = []string{
	TokenCertificateID,
	TokenCertificateIDAlias,
	TokenStudentName,
	TokenCourseName,
	TokenCourseTitle,
	TokenInstructorName,
	TokenDate,
	TokenDateAlias,
}

// ValueMap holds the display strings of one render. It is rebuilt for every render.
type ValueMap struct {
	CertificateID  string `json:"certificate_id"`
	StudentName    string `json:"student_name"`
	CourseTitle    string `json:"course_title"`
	InstructorName string `json:"instructor_name"`
	Date           string `json:"date"`
}

// Lookup returns the value of a recognized token; aliases share their value.
func (vm ValueMap) Lookup(token string) (string, bool) {
	switch token {
	case TokenCertificateID, TokenCertificateIDAlias:
		return vm.CertificateID, true
	case TokenStudentName:
		return vm.StudentName, true
	case TokenCourseName, TokenCourseTitle:
		return vm.CourseTitle, true
	case TokenInstructorName:
		return vm.InstructorName, true
	case TokenDate, TokenDateAlias:
		return vm.Date, true
	default:
		return "", false
	}
}

// Map returns every token with its value.
func (vm ValueMap) Map() map[string]string {
	m := make(map[string]string, len(Tokens))
	for _, tok := range Tokens {
		m[tok], _ = vm.Lookup(tok)
	}
	return m
}
