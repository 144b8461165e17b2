package webd

import (
	"io"
	"net"
	"net/http"
	"strings"

	ghandlers "github.com/gorilla/handlers"
)

// tokenAuthenticationMiddleware checks for the configured token in the Authorization header.
// If the token is not valid, it returns a 403 Forbidden.
// If no token is configured, it allows all requests.
func (s *WebDaemon) tokenAuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validToken := s.Config.Token
		if validToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			// Alternately, a query param named api_token.
			token = r.URL.Query().Get("api_token")
		}
		if token != validToken {
			s.logger.Warn("Invalid token",
				"method", r.Method, "url", r.URL, "remote", remoteHost(r),
				"user-agent", r.UserAgent())
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		next.ServeHTTP(w, r)
	})
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// remoteHost is the request's remote host, followed by any X-Forwarded-For hops.
func remoteHost(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	for _, v := range req.Header.Values("X-Forwarded-For") {
		host += "->" + v
	}
	return host
}

// https://github.com/gorilla/mux#middleware

// loggingMiddleware logs one access line per request with the daemon's logger.
func (s *WebDaemon) loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p ghandlers.LogFormatterParams) {
		uri := p.Request.RequestURI
		if uri == "" {
			uri = p.URL.RequestURI()
		}
		s.logger.Info("HTTP",
			"remote", remoteHost(p.Request),
			"method", p.Request.Method,
			"uri", uri,
			"proto", p.Request.Proto,
			"status", p.StatusCode,
			"size", p.Size,
		)
	})
}
