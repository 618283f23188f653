package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// connectTimeout bounds the TCP connect phase only. Total request duration
// is unbounded; callers cancel via context.
const connectTimeout = 15 * time.Second

// httpClient is shared by all builders. One request per builder, one client
// for the process.
var httpClient = &http.Client{
	Transport: &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		Proxy:       http.ProxyFromEnvironment,
	},
}

type formField struct {
	key   string
	value string
}

// RequestBuilder assembles and executes a single HTTP request against the
// ReviewBoard REST API. A builder is single-use: one value, one request.
//
// Path segments accumulate in Route call order and replace the base URL's
// path when present; query parameters use append semantics, so repeated
// keys are preserved. POST/PUT bodies are urlencoded form fields, or
// multipart/form-data when a file part is attached.
type RequestBuilder struct {
	method      string
	base        string
	route       string
	query       url.Values
	fields      []formField
	fileParam   string
	fileName    string
	fileBytes   []byte
	headerName  string
	headerValue string
}

func newBuilder(method, baseURL string) *RequestBuilder {
	return &RequestBuilder{
		method: method,
		base:   baseURL,
		query:  url.Values{},
	}
}

// Get starts a GET request against baseURL.
func Get(baseURL string) *RequestBuilder { return newBuilder(http.MethodGet, baseURL) }

// Post starts a POST request against baseURL.
func Post(baseURL string) *RequestBuilder { return newBuilder(http.MethodPost, baseURL) }

// Put starts a PUT request against baseURL.
func Put(baseURL string) *RequestBuilder { return newBuilder(http.MethodPut, baseURL) }

// Route appends a path segment. Segments are joined by "/" in call order;
// ordering must match the server's URL-template shape.
func (b *RequestBuilder) Route(segment string) *RequestBuilder {
	b.route += "/" + segment
	return b
}

// RouteInt appends an integer path segment.
func (b *RequestBuilder) RouteInt(segment int) *RequestBuilder {
	return b.Route(strconv.Itoa(segment))
}

// Slash appends a trailing slash. ReviewBoard collection endpoints 301
// without one.
func (b *RequestBuilder) Slash() *RequestBuilder {
	b.route += "/"
	return b
}

// Query adds a query parameter. Repeated keys append rather than overwrite.
func (b *RequestBuilder) Query(key string, value any) *RequestBuilder {
	b.query.Add(key, fmt.Sprint(value))
	return b
}

// Field queues a form field for the request body.
func (b *RequestBuilder) Field(key string, value any) *RequestBuilder {
	b.fields = append(b.fields, formField{key: key, value: fmt.Sprint(value)})
	return b
}

// File attaches the single binary part, switching the body to
// multipart/form-data with queued fields as text parts.
func (b *RequestBuilder) File(param, name string, data []byte) *RequestBuilder {
	b.fileParam = param
	b.fileName = name
	b.fileBytes = data
	return b
}

// Header sets the request's one custom header, used for Basic credentials.
func (b *RequestBuilder) Header(name, value string) *RequestBuilder {
	b.headerName = name
	b.headerValue = value
	return b
}

// Path returns the accumulated route, or the base URL's own path when no
// segments were added (the absolute-href fetch case).
func (b *RequestBuilder) Path() string {
	return b.route
}

func (b *RequestBuilder) build(ctx context.Context) (*http.Request, error) {
	u, err := url.Parse(b.base)
	if err != nil {
		return nil, &ConnectivityError{Op: "parse url", Err: err}
	}
	if b.route != "" {
		u.Path = b.route
	}
	if len(b.query) > 0 {
		q := u.Query()
		for key, values := range b.query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	contentType := ""
	if b.method != http.MethodGet {
		if b.fileBytes != nil {
			buf := &bytes.Buffer{}
			w := multipart.NewWriter(buf)
			for _, f := range b.fields {
				if err := w.WriteField(f.key, f.value); err != nil {
					return nil, err
				}
			}
			part, err := w.CreateFormFile(b.fileParam, b.fileName)
			if err != nil {
				return nil, err
			}
			if _, err := part.Write(b.fileBytes); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			body = buf
			contentType = w.FormDataContentType()
		} else if len(b.fields) > 0 {
			form := url.Values{}
			for _, f := range b.fields {
				form.Add(f.key, f.value)
			}
			body = strings.NewReader(form.Encode())
			contentType = "application/x-www-form-urlencoded"
		}
	}

	req, err := http.NewRequestWithContext(ctx, b.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if b.headerName != "" {
		req.Header.Set(b.headerName, b.headerValue)
	}
	return req, nil
}

// Do executes the request and returns the raw response. Used where the
// caller needs the status code, e.g. the 404-means-absent content fetch.
func (b *RequestBuilder) Do(ctx context.Context) (*http.Response, error) {
	req, err := b.build(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Op: "connect to " + b.base, Err: err}
	}
	return resp, nil
}

// AsJSON executes the request and decodes the UTF-8 JSON body into v.
// No retry: a single request, single response, fail fast.
func (b *RequestBuilder) AsJSON(ctx context.Context, v any) error {
	resp, err := b.Do(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &ConnectivityError{Op: "decode response", Err: err}
	}
	return nil
}

// AsString executes the request and returns the raw UTF-8 body.
func (b *RequestBuilder) AsString(ctx context.Context) (string, error) {
	resp, err := b.Do(ctx)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ConnectivityError{Op: "read response", Err: err}
	}
	return string(data), nil
}
