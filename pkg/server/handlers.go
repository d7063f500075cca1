package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/odatad/pkg/entity"
	"github.com/getmockd/odatad/pkg/httputil"
	"github.com/getmockd/odatad/pkg/query"
	"github.com/getmockd/odatad/pkg/resource"
)

// collectionResponse is the body of a list response.
type collectionResponse struct {
	Count    *int            `json:"@odata.count,omitempty"`
	Value    []entity.Record `json:"value"`
	NextLink string          `json:"@odata.nextLink,omitempty"`
}

type serviceEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

type serviceDocument struct {
	Version string         `json:"version"`
	Value   []serviceEntry `json:"value"`
}

type statsResponse struct {
	Entities      map[string]int            `json:"entities"`
	Operations    *resource.MetricsSnapshot `json:"operations,omitempty"`
	Totals        *resource.SetCounts       `json:"totals,omitempty"`
	UptimeSeconds int64                     `json:"uptimeSeconds"`
}

// route dispatches on the parsed path, then on the method.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	t, err := parsePath(r.URL.Path)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	switch t.kind {
	case targetService:
		s.getOnly(w, r, s.handleServiceDocument)
	case targetMetadata:
		s.getOnly(w, r, s.handleMetadata)
	case targetStats:
		s.getOnly(w, r, s.handleStats)
	case targetReset:
		if s.reset == nil {
			httputil.WriteDomainError(w, notFound("$reset"))
			return
		}
		if r.Method != http.MethodPost {
			httputil.WriteMethodNotAllowed(w, "POST")
			return
		}
		s.handleReset(w, r)
	case targetHealth:
		s.getOnly(w, r, func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	case targetCollection:
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			s.handleList(w, r, t)
		case http.MethodPost:
			s.handleWrite(w, r, t, resource.ActionCreate)
		default:
			httputil.WriteMethodNotAllowed(w, "GET, POST")
		}
	case targetEntity:
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			s.handleGet(w, r, t)
		case http.MethodPut:
			s.handleWrite(w, r, t, resource.ActionReplace)
		case http.MethodPatch:
			s.handleWrite(w, r, t, resource.ActionPatch)
		case http.MethodDelete:
			s.respond(w, r, t, s.bridge.Execute(r.Context(), &resource.OperationRequest{
				Set: t.set, Action: resource.ActionDelete, Key: t.key,
			}))
		default:
			httputil.WriteMethodNotAllowed(w, "GET, PUT, PATCH, DELETE")
		}
	case targetRef:
		switch r.Method {
		case http.MethodPut, http.MethodPost:
			s.handleWrite(w, r, t, resource.ActionLink)
		default:
			httputil.WriteMethodNotAllowed(w, "PUT, POST")
		}
	}
}

func (s *Server) getOnly(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.WriteMethodNotAllowed(w, "GET")
		return
	}
	h(w, r)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, t target) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	s.respond(w, r, t, s.bridge.Execute(r.Context(), &resource.OperationRequest{
		Set: t.set, Action: resource.ActionList, Query: q,
	}))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, t target) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	s.respond(w, r, t, s.bridge.Execute(r.Context(), &resource.OperationRequest{
		Set: t.set, Action: resource.ActionGet, Key: t.key, Query: q,
	}))
}

// handleWrite reads the JSON body and runs a body-carrying action.
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request, t target, action resource.Action) {
	body, err := httputil.ReadJSONObject(w, r, s.cfg.MaxBodySize)
	if err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, httputil.ErrorDetail{
				Code:    "PayloadTooLarge",
				Message: err.Error(),
			})
			return
		}
		httputil.WriteDomainError(w, err)
		return
	}
	s.respond(w, r, t, s.bridge.Execute(r.Context(), &resource.OperationRequest{
		Set:        t.set,
		Action:     action,
		Key:        t.key,
		Navigation: t.nav,
		Data:       body,
	}))
}

// parseQuery parses the raw query strictly; url.Values from r.URL.Query
// silently drops malformed pairs.
func parseQuery(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	q, err := queryValues(r.URL.RawQuery)
	if err != nil {
		httputil.WriteDomainError(w, entity.Invalidf("", "malformed query string: %v", err))
		return nil, false
	}
	return q, true
}

// queryValues splits raw on "&" only. A literal ";" separates the options
// nested in $expand, so url.ParseQuery, which rejects it, cannot be used.
func queryValues(raw string) (url.Values, error) {
	q := make(url.Values)
	for pair := range strings.SplitSeq(raw, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(name)
		if err != nil {
			return nil, err
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		q.Add(name, value)
	}
	return q, nil
}

// respond maps a bridge result onto the HTTP response.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, t target, res *resource.OperationResult) {
	switch res.Status {
	case resource.StatusSuccess:
		if res.List != nil {
			httputil.WriteJSON(w, http.StatusOK, collectionResponse{
				Count:    res.List.Count,
				Value:    nonNil(res.List.Rows()),
				NextLink: nextLink(r, res.List),
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res.Entity)
	case resource.StatusCreated:
		w.Header().Set("Location", baseURL(r)+"/"+t.set+"("+strconv.FormatInt(res.Key, 10)+")")
		httputil.WriteJSON(w, http.StatusCreated, res.Entity)
	case resource.StatusNoContent:
		httputil.WriteNoContent(w)
	default:
		status := statusFor(res.Status)
		if status >= http.StatusInternalServerError {
			s.log.Error("operation failed",
				"path", r.URL.Path,
				"request_id", RequestID(r.Context()),
				"error", res.Error)
		}
		err := res.Error
		if err == nil {
			err = errors.New(res.Status.String())
		}
		httputil.WriteError(w, status, httputil.ErrorDetailFrom(status, err))
	}
}

func statusFor(s resource.ResultStatus) int {
	switch s {
	case resource.StatusNotFound:
		return http.StatusNotFound
	case resource.StatusConflict:
		return http.StatusConflict
	case resource.StatusValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func nonNil(rows []entity.Record) []entity.Record {
	if rows == nil {
		return []entity.Record{}
	}
	return rows
}

// nextLink rewrites the request URL to address the next server-driven page.
func nextLink(r *http.Request, res *query.Result) string {
	if res.NextSkip == nil {
		return ""
	}
	q, err := queryValues(r.URL.RawQuery)
	if err != nil {
		return ""
	}
	q.Set("$skip", strconv.Itoa(*res.NextSkip))
	if res.NextTop != nil {
		q.Set("$top", strconv.Itoa(*res.NextTop))
	} else {
		q.Del("$top")
	}
	return baseURL(r) + r.URL.Path + "?" + q.Encode()
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) handleServiceDocument(w http.ResponseWriter, r *http.Request) {
	doc := serviceDocument{Version: s.version}
	for _, set := range s.bridge.Model().Sets() {
		doc.Value = append(doc.Value, serviceEntry{Name: set, Kind: "EntitySet", URL: set})
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (s *Server) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.document)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{
		Entities:      s.bridge.Counts(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		totals := snap.Totals()
		resp.Operations = &snap
		resp.Totals = &totals
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.bridge.Reset(*s.reset); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Reset()
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]map[string]int{"entities": s.bridge.Counts()})
}
