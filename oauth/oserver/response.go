package oserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
)

type ContentType string

const (
	ContentTypeJSON ContentType = "application/json"
	ContentTypeForm ContentType = "application/x-www-form-urlencoded"
)

// Response is what the token and revocation endpoints hand back to the host.
// The host writes it to its transport unchanged.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

func noStoreHeaders() http.Header {
	h := http.Header{}
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	return h
}

func jsonResponse(status int, data any) (*Response, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	h := noStoreHeaders()
	h.Set("Content-Type", string(ContentTypeJSON))
	return &Response{Status: status, Headers: h, Body: b}, nil
}

// errorResponse renders err as a JSON error body. A missing body falls back
// to the bare error code.
func errorResponse(err *oerror.Error) *Response {
	b, jerr := err.JSON()
	if jerr != nil {
		b = []byte(`{"error":"` + err.Code.String() + `"}`)
	}
	h := noStoreHeaders()
	h.Set("Content-Type", string(ContentTypeJSON))
	return &Response{Status: err.Code.StatusCode(), Headers: h, Body: b}
}

func emptyResponse() *Response {
	return &Response{Status: http.StatusOK, Headers: noStoreHeaders()}
}

// Write copies the response to w.
func (r *Response) Write(w http.ResponseWriter) error {
	for k, vs := range r.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(r.Status)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}
