package runtime

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/internal/runtime/jsoncodec"
)

// piiHeaders are dropped from captured requests unless PII is enabled.
var piiHeaders = map[string]struct{}{
	"Authorization":       {},
	"Proxy-Authorization": {},
	"Cookie":              {},
	"Set-Cookie":          {},
	"X-Forwarded-For":     {},
	"X-Real-Ip":           {},
	"Forwarded":           {},
}

type requestContextKey struct{}

// ContextWithRequest stores r so stages can read it when the capture hint
// does not carry one.
func ContextWithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestContextKey{}, r)
}

// RequestFromContext returns the request stored by ContextWithRequest.
func RequestFromContext(ctx context.Context) (*http.Request, bool) {
	r, ok := ctx.Value(requestContextKey{}).(*http.Request)
	return r, ok && r != nil
}

func hintRequest(ctx context.Context, hint *Hint) *http.Request {
	if hint.Request != nil {
		return hint.Request
	}
	r, _ := RequestFromContext(ctx)
	return r
}

// RequestMiddleware attaches url, method, query, headers and, within the
// configured size tier, the body of the current HTTP request. Cookies and
// identifying headers require SendDefaultPII.
func RequestMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "request",
		Priority: PriorityRequest,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				if r := hintRequest(ctx, hint); r != nil {
					data := c.requestData(r)
					if evt.Request == nil {
						evt.Request = data
					} else {
						fillAbsent(evt.Request, data)
					}
				}
				return next(ctx, evt, hint)
			}, nil
		},
	}
}

func (c *Client) requestData(r *http.Request) map[string]any {
	pii := c.Conf.SendDefaultPII
	data := map[string]any{"method": r.Method}

	if u := requestURL(r); u != "" {
		data["url"] = u
	}
	if r.URL != nil && r.URL.RawQuery != "" {
		data["query_string"] = r.URL.RawQuery
	}

	headers := make(map[string]any, len(r.Header))
	for name, values := range r.Header {
		if _, sensitive := piiHeaders[name]; sensitive && !pii {
			continue
		}
		headers[name] = c.serializer.SerializeString(strings.Join(values, ", "))
	}
	if len(headers) > 0 {
		data["headers"] = headers
	}

	if pii {
		if cookies := r.Cookies(); len(cookies) > 0 {
			jar := make(map[string]any, len(cookies))
			for _, ck := range cookies {
				jar[ck.Name] = c.serializer.SerializeString(ck.Value)
			}
			data["cookies"] = jar
		}
		if r.RemoteAddr != "" {
			data["env"] = map[string]any{"REMOTE_ADDR": r.RemoteAddr}
		}
	}

	if body, ok := readBody(r, c.Conf.MaxRequestBodySize.Limit()); ok {
		data["data"] = c.serializer.Serialize(decodeBody(r.Header.Get("Content-Type"), body))
	}
	return data
}

func requestURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	u := url.URL{Scheme: r.URL.Scheme, Host: r.URL.Host, Path: r.URL.Path}
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" {
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
	}
	return u.String()
}

// readBody honours the size tier: limit 0 never reads, a positive limit
// requires a known content length within it, and a negative limit reads
// everything. The request body stays readable for the application.
func readBody(r *http.Request, limit int) ([]byte, bool) {
	if limit == 0 || r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}
	if limit > 0 && (r.ContentLength <= 0 || r.ContentLength > int64(limit)) {
		return nil, false
	}

	if r.GetBody != nil {
		rc, err := r.GetBody()
		if err != nil {
			return nil, false
		}
		defer rc.Close()
		body, err := io.ReadAll(rc)
		return body, err == nil && len(body) > 0
	}

	src := io.Reader(r.Body)
	if limit > 0 {
		src = io.LimitReader(r.Body, int64(limit))
	}
	body, err := io.ReadAll(src)
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
	return body, err == nil && len(body) > 0
}

func decodeBody(contentType string, body []byte) any {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var v any
		if err := jsoncodec.Unmarshal(body, &v); err == nil {
			return v
		}
	case mediaType == "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(body)); err == nil {
			form := make(map[string]any, len(values))
			for k, v := range values {
				if len(v) == 1 {
					form[k] = v[0]
				} else {
					form[k] = v
				}
			}
			return form
		}
	}
	return string(body)
}

// UserMiddleware derives user.ip_address from the request when PII is
// enabled. An address set by the application is kept.
func UserMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "user",
		Priority: PriorityUser,
		Builder: func(c *Client) (Stage, error) {
			if !c.Conf.SendDefaultPII {
				return nil, nil
			}
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				if r := hintRequest(ctx, hint); r != nil {
					if ip := ClientIP(r); ip != "" {
						if evt.User == nil {
							evt.User = map[string]any{}
						}
						fillAbsent(evt.User, map[string]any{"ip_address": ip})
					}
				}
				return next(ctx, evt, hint)
			}, nil
		},
	}
}

// ClientIP returns the originating address of r, preferring the first
// X-Forwarded-For entry, then X-Real-Ip, then the connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
