package core

import "testing"

func TestOrderBy(t *testing.T) {
	allowed := map[string]string{"name": "name", "created_at": "created_at"}
	def := DBOrdering{Field: "name", Ascending: true}

	tests := []struct {
		name      string
		orderings []DBOrdering
		want      string
	}{
		{name: "default", want: "name ASC"},
		{name: "single", orderings: []DBOrdering{{Field: "created_at"}}, want: "created_at DESC"},
		{name: "several", orderings: []DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}, want: "name ASC, created_at DESC"},
		{name: "unknown only", orderings: []DBOrdering{{Field: "1; DROP TABLE x"}}, want: "name ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OrderBy(tt.orderings, allowed, def); got != tt.want {
				t.Errorf("OrderBy() = %q; want %q", got, tt.want)
			}
		})
	}
}
