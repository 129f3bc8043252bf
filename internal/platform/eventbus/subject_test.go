package eventbus

import "testing"

func TestMatchSubject(t *testing.T) {
	cases := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"gl.events.posting.requested", "gl.events.posting.requested", true},
		{"gl.events.posting.requested", "gl.events.posting.completed", false},
		{"gl.events.*", "gl.events.posting", true},
		{"gl.events.*", "gl.events.posting.requested", false},
		{"gl.events.>", "gl.events.posting.requested", true},
		{"gl.events.>", "gl.events.entry.reversed", true},
		{"gl.events.>", "gl.events", false},
		{"gl.events.>", "ar.events.invoice.created", false},
		{"*.events.>", "gl.events.posting.requested", true},
		{"*.events.>", "ar.events.invoice.created", true},
		{"gl.events.posting.*", "gl.events.posting.requested", true},
		{"gl.events.posting.*", "gl.events.posting", false},
	}

	for _, tc := range cases {
		got := MatchSubject(tc.pattern, tc.subject)
		if got != tc.want {
			t.Errorf("MatchSubject(%q, %q) = %v, want %v", tc.pattern, tc.subject, got, tc.want)
		}
	}
}
