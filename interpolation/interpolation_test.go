package interpolation_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/go-graphql-supergraph-mesh/interpolation"
)

func TestString(t *testing.T) {
	data := interpolation.Data{
		Env: interpolation.Environment{"REGION": "eu", "TOKEN": "secret"},
		Context: map[string]any{
			"headers": map[string]string{"authorization": "Bearer abc", "x-region": "us"},
			"tenant":  map[string]any{"id": 42},
		},
		Info:      map[string]any{"operationName": "GetUser"},
		Variables: map[string]any{"id": "u1"},
	}

	tests := []struct {
		name string
		tpl  string
		want string
	}{
		{name: "no placeholder", tpl: "https://svc/graphql", want: "https://svc/graphql"},
		{name: "env", tpl: "https://{env.REGION}.svc/graphql", want: "https://eu.svc/graphql"},
		{name: "context path", tpl: "{context.headers.authorization}", want: "Bearer abc"},
		{name: "dashed key", tpl: "https://{context.headers.x-region}.svc", want: "https://us.svc"},
		{name: "number", tpl: "tenant-{context.tenant.id}", want: "tenant-42"},
		{name: "object renders as json", tpl: "{context.tenant}", want: `{"id":42}`},
		{name: "info", tpl: "{info.operationName}", want: "GetUser"},
		{name: "variables", tpl: "{variables.id}", want: "u1"},
		{name: "missing env", tpl: "x{env.NOPE}y", want: "xy"},
		{name: "missing path", tpl: "x{context.nope.deeper}y", want: "xy"},
		{name: "unknown root is kept", tpl: "{foo.bar}", want: "{foo.bar}"},
		{name: "json literal is kept", tpl: `{"a":1}`, want: `{"a":1}`},
		{name: "literal next to placeholder", tpl: `{"region":"{env.REGION}"}`, want: `{"region":"eu"}`},
		{name: "nil root", tpl: "{root.id}", want: ""},
		{name: "whitespace", tpl: "{ env.TOKEN }", want: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := interpolation.String(tt.tpl, data); got != tt.want {
				t.Errorf("String(%q) = %q, want %q", tt.tpl, got, tt.want)
			}
		})
	}
}

func TestHeaders(t *testing.T) {
	data := interpolation.Data{
		Env:     interpolation.Environment{"TOKEN": "secret"},
		Context: map[string]any{"requestId": "r-1"},
	}

	got := interpolation.Headers(map[string]string{
		"Authorization": "Bearer {env.TOKEN}",
		"x-request-id":  "{context.requestId}",
		"X-Static":      "static",
		"X-Json":        `{"a":1}`,
	}, data)

	want := map[string][]string{
		"Authorization": {"Bearer secret"},
		"X-Request-Id":  {"r-1"},
		"X-Static":      {"static"},
		"X-Json":        {`{"a":1}`},
	}
	if diff := cmp.Diff(want, map[string][]string(got)); diff != "" {
		t.Errorf("Headers() mismatch (-want +got):\n%s", diff)
	}
}

func TestHasPlaceholders(t *testing.T) {
	if interpolation.HasPlaceholders("https://svc/graphql") {
		t.Error("expected no placeholders")
	}
	if !interpolation.HasPlaceholders("https://{env.HOST}/graphql") {
		t.Error("expected placeholders")
	}
	if interpolation.HasPlaceholders(`{"a":1}`) {
		t.Error("json literal is not a placeholder")
	}
}
