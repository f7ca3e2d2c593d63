package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vrental/gatewayauth/middleware"
)

// Identity headers set on every proxied request. Values supplied by the
// client are removed first.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"
)

// ParseUpstreams turns name -> base URL pairs into parsed targets.
func ParseUpstreams(raw map[string]string) (map[string]*url.URL, error) {
	out := make(map[string]*url.URL, len(raw))
	for name, target := range raw {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("upstream %s: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("upstream %s: unsupported scheme %q", name, u.Scheme)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("upstream %s: missing host", name)
		}
		out[name] = u
	}
	return out, nil
}

type serviceProxy struct {
	name   string
	prefix string
	proxy  *httputil.ReverseProxy
}

// newServiceProxy forwards requests under prefix to target with the prefix
// stripped, so /vehicle/cars/7 reaches <target>/cars/7.
func newServiceProxy(name, prefix string, target *url.URL, logger *zap.Logger) *serviceProxy {
	sp := &serviceProxy{name: name, prefix: prefix}
	sp.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, prefix)
			pr.Out.URL.RawPath = ""
			if pr.Out.URL.Path == "" {
				pr.Out.URL.Path = "/"
			}
			pr.SetURL(target)
			pr.SetXForwarded()

			pr.Out.Header.Del(HeaderUserID)
			pr.Out.Header.Del(HeaderUserRole)
			pr.Out.Header.Del(HeaderUserEmail)
			if res, ok := middleware.ResultFromContext(pr.In.Context()); ok {
				pr.Out.Header.Set(HeaderUserID, strconv.FormatInt(res.UserID, 10))
				pr.Out.Header.Set(HeaderUserRole, res.Role)
				if res.Email != "" {
					pr.Out.Header.Set(HeaderUserEmail, res.Email)
				}
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("upstream request failed",
				zap.String("service", name),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			writeError(w, http.StatusBadGateway, "Service unavailable")
		},
	}
	return sp
}

func (sp *serviceProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sp.proxy.ServeHTTP(w, r)
}
