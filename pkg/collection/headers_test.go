package collection

import (
	"strings"
	"testing"
)

func TestCookieInjector_Value(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  string
	}{
		{
			name:  "plain tokens",
			creds: Credentials{AccessToken: "A", RefreshToken: "B"},
			want:  "account_id=514; central_jwt_token=A; central_jwt_refresh_token=B",
		},
		{
			name:  "tokens with surrounding newlines",
			creds: Credentials{AccessToken: "\nA\n", RefreshToken: "  B\r\n"},
			want:  "account_id=514; central_jwt_token=A; central_jwt_refresh_token=B",
		},
	}

	ci := NewCookieInjector("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ci.Value(tt.creds)
			if got != tt.want {
				t.Errorf("Value() = %q, want %q", got, tt.want)
			}
			if strings.ContainsAny(got, "\n\r\t") {
				t.Errorf("Value() contains raw whitespace: %q", got)
			}
		})
	}
}

func TestCookieInjector_ValueCollapsesInnerWhitespace(t *testing.T) {
	got := NewCookieInjector("77").Value(Credentials{AccessToken: "a\n\nb", RefreshToken: "c"})
	want := "account_id=77; central_jwt_token=a b; central_jwt_refresh_token=c"
	if got != want {
		t.Errorf("Value() = %q, want %q", got, want)
	}
}

func TestCookieInjector_Inject(t *testing.T) {
	creds := Credentials{AccessToken: "A", RefreshToken: "B"}
	ci := NewCookieInjector("")

	t.Run("replaces existing header case-insensitively", func(t *testing.T) {
		req := &Request{Header: []*Header{
			{Key: "Accept", Value: "application/json"},
			{Key: "cookie", Value: "old", Disabled: true},
		}}
		ci.Inject(req, creds)

		if len(req.Header) != 2 {
			t.Fatalf("headers = %d, want 2", len(req.Header))
		}
		h := req.Header[1]
		if h.Key != CookieHeader || h.Value != ci.Value(creds) || h.Disabled {
			t.Errorf("cookie header = %+v", h)
		}
	})

	t.Run("adds header when missing", func(t *testing.T) {
		req := &Request{}
		ci.Inject(req, creds)
		if len(req.Header) != 1 || req.Header[0].Key != CookieHeader {
			t.Fatalf("headers = %+v", req.Header)
		}
	})

	t.Run("nil request is a no-op", func(t *testing.T) {
		ci.Inject(nil, creds)
	})
}

func TestCookieInjector_InjectAll(t *testing.T) {
	c := mustParse(t, `{"item": [
  {"name": "a", "request": {"method": "GET", "header": [{"key": "Cookie", "value": "x"}]}},
  {"name": "f", "item": [{"name": "b", "request": "https://x/b"}]},
  {"name": "orphan"}
]}`)

	n := NewCookieInjector("").InjectAll(c, Credentials{AccessToken: "A", RefreshToken: "B"})
	if n != 2 {
		t.Errorf("InjectAll() = %d, want 2", n)
	}

	c.Walk(func(it *Item) {
		if it.Request == nil {
			return
		}
		if len(it.Request.Header) != 1 || !strings.Contains(it.Request.Header[0].Value, "central_jwt_token=A") {
			t.Errorf("%s headers = %+v", it.Name, it.Request.Header)
		}
	})
}

func TestCredentials_Valid(t *testing.T) {
	if (Credentials{AccessToken: "a"}).Valid() {
		t.Error("missing refresh token should be invalid")
	}
	if (Credentials{AccessToken: " ", RefreshToken: "b"}).Valid() {
		t.Error("blank access token should be invalid")
	}
	if !(Credentials{AccessToken: "a", RefreshToken: "b"}).Valid() {
		t.Error("both tokens present should be valid")
	}
}
