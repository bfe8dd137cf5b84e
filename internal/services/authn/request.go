package authn

import (
	"net/http"
	"net/url"
)

// RequestKind names the protocol family of a request. Factories are selected
// per kind.
type RequestKind string

const (
	RequestKindAny  RequestKind = "*"
	RequestKindHTTP RequestKind = "http"
	RequestKindFTP  RequestKind = "ftp"
)

// Request is the protocol request handed to credentials plugins.
type Request interface {
	Kind() RequestKind
}

func requestKind(req Request) RequestKind {
	if req == nil {
		return RequestKindAny
	}
	return req.Kind()
}

// HTTPRequest wraps an inbound HTTP request together with its response
// writer. Plugins set the response status and headers through it when they
// challenge or redirect the client.
type HTTPRequest struct {
	*http.Request
	Response http.ResponseWriter

	status int
	header http.Header
}

// NewHTTPRequest wraps r and w. w may be nil, in which case response headers
// are buffered and can be read back with ResponseHeader.
func NewHTTPRequest(w http.ResponseWriter, r *http.Request) *HTTPRequest {
	return &HTTPRequest{Request: r, Response: w}
}

func (r *HTTPRequest) Kind() RequestKind { return RequestKindHTTP }

// ResponseHeader returns the header map that will be sent with the response.
func (r *HTTPRequest) ResponseHeader() http.Header {
	if r.Response != nil {
		return r.Response.Header()
	}
	if r.header == nil {
		r.header = make(http.Header)
	}
	return r.header
}

// SetStatus records the status a plugin wants the response to carry. The
// status is written by the HTTP layer, not here.
func (r *HTTPRequest) SetStatus(code int) { r.status = code }

// Status returns the status set by a plugin, or 0.
func (r *HTTPRequest) Status() int { return r.status }

// Redirect points the client at location with a 302.
func (r *HTTPRequest) Redirect(location string) {
	r.ResponseHeader().Set("Location", location)
	r.status = http.StatusFound
}

func (r *HTTPRequest) scheme() string {
	if r.TLS != nil {
		return "https"
	}
	if !fromTrustedProxy(r.Context()) {
		return "http"
	}
	switch proto := r.Header.Get("X-Forwarded-Proto"); proto {
	case "http", "https":
		return proto
	}
	return "http"
}

// SiteURL is the scheme and host the request was addressed to.
func (r *HTTPRequest) SiteURL() string {
	return r.scheme() + "://" + r.Host
}

// AbsoluteURL is the full URL of the request including its query string.
func (r *HTTPRequest) AbsoluteURL() string {
	u := url.URL{
		Scheme:   r.scheme(),
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}
	return u.String()
}

// FTPRequest carries the login pair an FTP front end received.
type FTPRequest struct {
	Path string
	Auth *FTPAuth
}

// FTPAuth is the raw (login, password) pair of an FTP session.
type FTPAuth struct {
	Login    []byte
	Password []byte
}

func (r *FTPRequest) Kind() RequestKind { return RequestKindFTP }
