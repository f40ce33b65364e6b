package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/facility-etl/internal/history"
	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/validate"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("render: %v", err)
	}
	return b.String()
}

func TestIndexPage(t *testing.T) {
	cards := []ServiceCard{{
		Service:   "healthcare",
		Label:     "Healthcare services",
		Countries: []string{"FR", "DE"},
		LastRun: &history.RunSummary{
			Trigger:   "schedule",
			StartedAt: time.Date(2024, 3, 7, 3, 0, 0, 0, time.UTC),
			Updated:   2,
		},
	}}
	got := renderString(t, IndexPage(cards))

	for _, want := range []string{
		"<title>Facility datasets</title>",
		"<h2>Healthcare services</h2>",
		`<a href="/report/healthcare/FR">FR</a>`,
		`<a href="/report/healthcare/DE">DE</a>`,
		"Last run 2024-03-07 03:00 (schedule): 2 updated, 0 skipped, 0 failed",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("index page missing %q", want)
		}
	}
}

func TestReportPage(t *testing.T) {
	tests := []struct {
		name string
		rep  validate.Report
		want []string
		deny []string
	}{
		{
			name: "clean",
			rep:  validate.Report{Service: schema.Education, Country: "EE", Rows: 3},
			want: []string{"Validation education EE", `<p class="ok">3 rows, no violation.</p>`},
			deny: []string{"<table>"},
		},
		{
			name: "violations escaped",
			rep: validate.Report{
				Service:    schema.Healthcare,
				Country:    "FR",
				Rows:       2,
				Violations: []validate.Violation{
					{Check: "values_among", Column: "emergency", Message: `invalid value "<script>"`},
					{Check: "geo_extent", Column: "lon,lat", Row: 2, Message: "invalid latitude 95"},
				},
			},
			want: []string{"2 rows, 2 violations.", "&lt;script&gt;", "<td>2</td>", "<td></td>"},
			deny: []string{"<script>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderString(t, ReportPage(tt.rep))
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("page missing %q", w)
				}
			}
			for _, d := range tt.deny {
				if strings.Contains(got, d) {
					t.Errorf("page contains %q", d)
				}
			}
		})
	}
}

func TestErrorPage(t *testing.T) {
	got := renderString(t, ErrorPage(404, "table not found", "", "IO001"))
	if !strings.Contains(got, "<h1>404 Not Found</h1>") || !strings.Contains(got, "<code>IO001</code>") {
		t.Errorf("error page = %s", got)
	}
	if strings.Contains(got, "<p></p>") {
		t.Error("empty action rendered")
	}
}
