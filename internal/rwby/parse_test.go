package rwby

import (
	"fmt"
	"strings"
	"testing"
)

func schedulePage(rows ...string) []byte {
	return []byte(`<!DOCTYPE html><html><body><div class="sch-table">` +
		strings.Join(rows, "") + `</div></body></html>`)
}

func scheduleRow(depart, selling string) string {
	return fmt.Sprintf(`<div class="sch-table__row" data-train-info="x" data-ticket_selling_allowed="%s">`+
		`<div class="sch-table__cell">`+
		`<div class="sch-table__time train-from-time">%s</div>`+
		`</div>`+
		`<div class="sch-table__cell"><div class="sch-table__time train-to-time">23:59</div></div>`+
		`</div>`, selling, depart)
}

func TestParseOutcomes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		body   []byte
		target string
		kind   OutcomeKind
	}{
		{
			name:   "selling allowed",
			body:   schedulePage(scheduleRow("15:29", "true")),
			target: "15:29",
			kind:   KindAvailable,
		},
		{
			name:   "selling not allowed",
			body:   schedulePage(scheduleRow("15:29", "false")),
			target: "15:29",
			kind:   KindUnavailable,
		},
		{
			name:   "selling attr uppercase",
			body:   schedulePage(scheduleRow("15:29", "True")),
			target: "15:29",
			kind:   KindAvailable,
		},
		{
			name:   "no matching departure",
			body:   schedulePage(scheduleRow("07:44", "true"), scheduleRow("09:10", "true")),
			target: "15:29",
			kind:   KindTrainNotFound,
		},
		{
			name:   "whitespace around time text",
			body:   schedulePage(scheduleRow("  15:29  ", "true")),
			target: "15:29",
			kind:   KindAvailable,
		},
		{
			name: "error content region",
			body: []byte(`<html><body><div class="error_content">Станция отправления не найдена</div></body></html>`),
			kind: KindRouteError,
		},
		{
			name: "error title region",
			body: []byte(`<html><body><div class="error_title">Ошибка</div></body></html>`),
			kind: KindRouteError,
		},
		{
			name: "error region wins over schedule",
			body: []byte(`<html><body><div class="error_title">Ошибка</div>` +
				scheduleRow("15:29", "true") + `</body></html>`),
			target: "15:29",
			kind:   KindRouteError,
		},
		{
			name: "time cell outside any row",
			body: []byte(`<html><body>` +
				`<div class="sch-table__time train-from-time">15:29</div>` +
				`</body></html>`),
			target: "15:29",
			kind:   KindTransient,
		},
		{
			name:   "empty body",
			body:   []byte(""),
			target: "15:29",
			kind:   KindTrainNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Parse(tt.body, tt.target)
			if got.Kind != tt.kind {
				t.Fatalf("Parse() kind = %v, want %v", got.Kind, tt.kind)
			}
		})
	}
}

func TestParseErrorTextJoined(t *testing.T) {
	t.Parallel()
	body := []byte(`<html><body>` +
		`<div class="error_title">Ошибка</div>` +
		`<div class="error_content">Станция не найдена</div>` +
		`</body></html>`)
	got := Parse(body, "15:29")
	if got.Kind != KindRouteError {
		t.Fatalf("kind = %v, want %v", got.Kind, KindRouteError)
	}
	// Both regions contribute, joined with " | ". Document order puts the
	// title first here.
	want := "Ошибка | Станция не найдена"
	if got.ErrorText != want {
		t.Fatalf("ErrorText = %q, want %q", got.ErrorText, want)
	}
}

func TestParseRowLookupSurvivesWrappers(t *testing.T) {
	t.Parallel()
	// Extra wrappers between the time cell and the row must not break the
	// ancestor lookup.
	body := []byte(`<html><body>` +
		`<div class="sch-table__row" data-ticket_selling_allowed="true">` +
		`<div class="wrap-a"><div class="wrap-b">` +
		`<div class="sch-table__time train-from-time">15:29</div>` +
		`</div></div>` +
		`</div>` +
		`</body></html>`)
	got := Parse(body, "15:29")
	if got.Kind != KindAvailable {
		t.Fatalf("kind = %v, want %v", got.Kind, KindAvailable)
	}
}

func TestParseIsPure(t *testing.T) {
	t.Parallel()
	body := schedulePage(scheduleRow("15:29", "false"))
	first := Parse(body, "15:29")
	for i := 0; i < 5; i++ {
		if got := Parse(body, "15:29"); got != first {
			t.Fatalf("Parse() = %+v on run %d, want %+v", got, i, first)
		}
	}
}

func TestRouteURL(t *testing.T) {
	t.Parallel()
	got := RouteURL("", "Минск", "Брест", "2026-08-30")
	if !strings.HasPrefix(got, DefaultBaseURL+"?") {
		t.Fatalf("RouteURL() = %q, want %q prefix", got, DefaultBaseURL)
	}
	for _, part := range []string{"date=2026-08-30", "from=", "to="} {
		if !strings.Contains(got, part) {
			t.Fatalf("RouteURL() = %q, missing %q", got, part)
		}
	}
}
