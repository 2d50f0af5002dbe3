package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/ragline/ragline/internal/log"
)

var errStub = errors.New("completion failed")

// stubCompleter scripts GenerateJSON for this package's tests.
type stubCompleter struct {
	text  string
	err   error
	calls int
}

func (s *stubCompleter) GenerateJSON(context.Context, []string, float32) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestContactPipelineEmptyText(t *testing.T) {
	t.Parallel()

	c := &stubCompleter{}
	got := ContactPipeline(context.Background(), c, "no contacts here", nil, log.NewNop())

	if len(got.URLs) != 0 || len(got.Emails) != 0 || len(got.Phones) != 0 {
		t.Errorf("ContactPipeline() = %+v, want empty payload", got)
	}
	if got.URLs == nil || got.Emails == nil || got.Phones == nil {
		t.Error("empty payload must have non-nil slices so all arrays serialize")
	}
	if c.calls != 0 {
		t.Errorf("titling call made with no contacts, calls = %d", c.calls)
	}
}

func TestContactPipelineTitles(t *testing.T) {
	t.Parallel()

	c := &stubCompleter{text: `{"https://example.org/visit.html": "Plan Your Visit"}`}
	got := ContactPipeline(context.Background(), c,
		"see https://example.org/visit.html or write jane.doe@example.org", nil, log.NewNop())

	if len(got.URLs) != 1 || got.URLs[0].Title != "Plan Your Visit" {
		t.Errorf("URLs = %+v, want generated title", got.URLs)
	}
	if len(got.Emails) != 1 || got.Emails[0].Title != "Email Jane Doe" {
		t.Errorf("Emails = %+v, want deterministic fallback title", got.Emails)
	}
}

func TestDefaultEmailTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email string
		want  string
	}{
		{"jane.doe@example.org", "Email Jane Doe"},
		{"info@example.org", "Email Info"},
		// Only dots become spaces; title-casing still capitalizes after the
		// separator, so underscores and hyphens stay in the name.
		{"front_desk@example.org", "Email Front_Desk"},
		{"visitor-center@example.org", "Email Visitor-Center"},
	}
	for _, tt := range tests {
		if got := defaultEmailTitle(tt.email); got != tt.want {
			t.Errorf("defaultEmailTitle(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestContactPipelineTitleFailureFallsBack(t *testing.T) {
	t.Parallel()

	c := &stubCompleter{text: "not json at all"}
	got := ContactPipeline(context.Background(), c,
		"call (918) 453-5000 or see https://example.org/contact.html", nil, log.NewNop())

	if len(got.URLs) != 1 || got.URLs[0].Title != "Visit Link" {
		t.Errorf("URLs = %+v, want Visit Link fallback", got.URLs)
	}
	if len(got.Phones) != 1 || got.Phones[0].Title != "Call (918) 453-5000" {
		t.Errorf("Phones = %+v, want Call fallback", got.Phones)
	}
}

func TestFollowUps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		err  error
		want int
	}{
		{"three questions", `{"questions": ["a?", "b?", "c?"]}`, nil, 3},
		{"fenced json", "```json\n{\"questions\": [\"a?\", \"b?\"]}\n```", nil, 2},
		{"truncated to three", `{"questions": ["a?", "b?", "c?", "d?"]}`, nil, 3},
		{"model failure", "", errStub, 0},
		{"not json", "sorry, no", nil, 0},
		{"missing key", `{"answers": []}`, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &stubCompleter{text: tt.text, err: tt.err}
			got := FollowUps(context.Background(), c, "turn text", log.NewNop())
			if got == nil {
				t.Fatal("FollowUps returned nil, want non-nil slice")
			}
			if len(got) != tt.want {
				t.Errorf("len(FollowUps()) = %d, want %d", len(got), tt.want)
			}
		})
	}
}
