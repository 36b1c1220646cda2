package certificate

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name        string
		res         Result[string]
		wantOK      bool
		wantOutcome Outcome
		wantValue   string
		wantReason  string
	}{
		{name: "required ok", res: Required(ResourceCourse, "course", nil), wantOK: true, wantOutcome: OK, wantValue: "course"},
		{name: "required failed", res: Required(ResourceCourse, "course", boom), wantOutcome: Fatal},
		{name: "best effort ok", res: BestEffort("Yusuf", nil, "Instructor"), wantOK: true, wantOutcome: OK, wantValue: "Yusuf"},
		{name: "best effort failed", res: BestEffort("", boom, "Instructor"), wantOutcome: Degraded, wantValue: "Instructor", wantReason: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantOK, tt.res.IsOK())
			assert.Equal(t, tt.wantOutcome, tt.res.Outcome)
			assert.Equal(t, tt.wantValue, tt.res.Value)

			d, degraded := tt.res.Degradation(ResourceInstructor)
			assert.Equal(t, tt.wantOutcome == Degraded, degraded)
			assert.Equal(t, tt.wantReason, d.Reason)

			if tt.wantOutcome == Fatal {
				var fe *FatalError
				if assert.True(t, errors.As(tt.res.Err, &fe)) {
					assert.Equal(t, ResourceCourse, fe.Resource)
					assert.False(t, fe.NotFound())
				}
			}
		})
	}
}
