package collection

import (
	"fmt"
	"strings"
)

// DefaultAccountID is sent in the session cookie when none is configured.
const DefaultAccountID = "514"

// CookieHeader is the header rewritten by the injector.
const CookieHeader = "Cookie"

// CookieInjector rewrites the session cookie on requests.
type CookieInjector struct {
	AccountID string
}

// NewCookieInjector creates an injector for the given account. An empty
// account id falls back to DefaultAccountID.
func NewCookieInjector(accountID string) *CookieInjector {
	if strings.TrimSpace(accountID) == "" {
		accountID = DefaultAccountID
	}
	return &CookieInjector{AccountID: accountID}
}

// Value builds the Cookie header value for creds. Whitespace runs, newlines
// included, collapse to a single space.
func (ci *CookieInjector) Value(creds Credentials) string {
	raw := fmt.Sprintf("account_id=%s; central_jwt_token=%s; central_jwt_refresh_token=%s",
		strings.TrimSpace(ci.AccountID),
		strings.TrimSpace(creds.AccessToken),
		strings.TrimSpace(creds.RefreshToken))
	return strings.Join(strings.Fields(raw), " ")
}

// Inject sets the Cookie header on req, adding one if missing. Header keys
// are matched case-insensitively.
func (ci *CookieInjector) Inject(req *Request, creds Credentials) {
	if req == nil {
		return
	}
	value := ci.Value(creds)

	for _, h := range req.Header {
		if h != nil && strings.EqualFold(h.Key, CookieHeader) {
			h.Key = CookieHeader
			h.Value = value
			h.Disabled = false
			return
		}
	}
	req.Header = append(req.Header, &Header{Key: CookieHeader, Value: value, Type: "text"})
}

// InjectAll sets the Cookie header on every request in c and returns how
// many requests were updated.
func (ci *CookieInjector) InjectAll(c *Collection, creds Credentials) int {
	if c == nil {
		return 0
	}
	n := 0
	c.Walk(func(it *Item) {
		if it.Request == nil {
			return
		}
		ci.Inject(it.Request, creds)
		n++
	})
	return n
}
