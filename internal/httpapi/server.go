// Package httpapi implements the HTTP Façade (spec §4.5): verb/path
// dispatch onto the Contents and Checkpoint managers, and the single
// translation point from apierror.Kind to HTTP status code (spec §9).
//
// Grounded on timeship/internal/api/api.go's Server/NewServer/sendError
// shape, re-targeted at this spec's fixed URL grammar. The teacher's
// router was generated by oapi-codegen from an api.yaml that did not come
// with this pack; routing here instead uses Go's method-and-wildcard
// ServeMux patterns ("GET /contents/{path...}", and so on). A ServeMux
// wildcard must be the final pattern segment, so it cannot itself express
// the checkpoints sub-resource ("/contents/{path...}/checkpoints/{id}");
// the checkpoint routes are recognized by inspecting the trailing
// segments of the captured path instead.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/smilyorg/contentsd/internal/apierror"
	"github.com/smilyorg/contentsd/internal/contents"
	"github.com/smilyorg/contentsd/internal/entry"
)

// Server adapts a *contents.Manager to the fixed URL grammar of spec §6.
type Server struct {
	contents *contents.Manager
}

// NewServer returns a Server backed by the given Contents Manager.
func NewServer(c *contents.Manager) *Server {
	return &Server{contents: c}
}

// Handler builds the request router. The routes are registered under the
// fixed segment "/contents"; main.go is responsible for mounting the
// returned handler at the configured API prefix, the way timeship's
// main.go mounts api.HandlerWithOptions.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /contents/{path...}", s.handleGet)
	mux.HandleFunc("POST /contents/{path...}", s.handlePost)
	mux.HandleFunc("PUT /contents/{path...}", s.handlePut)
	mux.HandleFunc("PATCH /contents/{path...}", s.handlePatch)
	mux.HandleFunc("DELETE /contents/{path...}", s.handleDelete)
	return mux
}

// errorBody is the JSON shape of every non-2xx response (spec §7).
type errorBody struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// sendError is the single place a manager error becomes a status code
// (spec §9 design note). Internal errors are logged in full but never
// expose their OS-level reason to the client.
func sendError(w http.ResponseWriter, err error) {
	apiErr, ok := apierror.As(err)
	if !ok {
		log.Printf("httpapi: unclassified error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal error"})
		return
	}

	switch apiErr.Kind {
	case apierror.NotFound:
		writeJSON(w, http.StatusNotFound, errorBody{Message: apiErr.Message})
	case apierror.BadType, apierror.BadFormat, apierror.BadRequest:
		writeJSON(w, http.StatusBadRequest, errorBody{Message: apiErr.Message})
	case apierror.Conflict:
		writeJSON(w, http.StatusConflict, errorBody{Message: apiErr.Message})
	default:
		log.Printf("httpapi: internal error: %s (%s)", apiErr.Message, apiErr.Reason)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// locationFor builds the Location header value for an entry or checkpoint
// path, percent-escaping each "/"-separated segment independently so the
// separators stay literal while spaces and other special characters in
// names are escaped (spec §6 "the Location header uses the same encoding").
func locationFor(apiPath string) string {
	segments := strings.Split(apiPath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "/api/contents/" + strings.Join(segments, "/")
}

// checkpointSuffix reports whether path ends in a checkpoints sub-resource.
// base is path with the suffix removed; id is set only for a member route.
func checkpointSuffix(path string) (base string, id string, isCollection, isMember bool) {
	segments := strings.Split(path, "/")
	n := len(segments)
	if n >= 1 && segments[n-1] == "checkpoints" {
		return strings.Join(segments[:n-1], "/"), "", true, false
	}
	if n >= 2 && segments[n-2] == "checkpoints" {
		return strings.Join(segments[:n-2], "/"), segments[n-1], false, true
	}
	return path, "", false, false
}

func queryType(r *http.Request) *entry.Type {
	v := r.URL.Query().Get("type")
	if v == "" {
		return nil
	}
	t := entry.Type(v)
	return &t
}

func queryFormat(r *http.Request) *entry.Format {
	v := r.URL.Query().Get("format")
	if v == "" {
		return nil
	}
	f := entry.Format(v)
	return &f
}

func queryContent(r *http.Request) bool {
	v := r.URL.Query().Get("content")
	if v == "" {
		return true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return true
	}
	return n != 0
}

// handleGet implements "get" (spec §4.3) and, for a path ending in
// "/checkpoints", "list" (spec §4.4).
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	if base, _, isCollection, _ := checkpointSuffix(path); isCollection {
		checkpoints, err := s.contents.ListCheckpoints(base)
		if err != nil {
			sendError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checkpoints)
		return
	}

	e, err := s.contents.Get(path, queryContent(r), queryType(r), queryFormat(r))
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// createBody is the POST request body (spec §4.3 "create" / "copy").
type createBody struct {
	Ext      string `json:"ext,omitempty"`
	Type     string `json:"type,omitempty"`
	CopyFrom string `json:"copy_from,omitempty"`
}

// handlePost implements "create"/"copy" (spec §4.3) and, for a path ending
// in "/checkpoints" or "/checkpoints/{id}", "create checkpoint" and
// "restore" (spec §4.4).
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	if base, id, isCollection, isMember := checkpointSuffix(path); isCollection || isMember {
		if isCollection {
			cp, err := s.contents.CreateCheckpoint(base)
			if err != nil {
				sendError(w, err)
				return
			}
			w.Header().Set("Location", locationFor(base)+"/checkpoints/"+url.PathEscape(cp.ID))
			writeJSON(w, http.StatusCreated, cp)
			return
		}
		if err := s.contents.RestoreCheckpoint(base, id); err != nil {
			sendError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var body createBody
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err.Error() != "EOF" {
			sendError(w, apierror.New(apierror.BadRequest, "invalid request body: %v", err))
			return
		}
	}

	opts := contents.CreateOptions{
		Directory: entry.Type(body.Type) == entry.TypeDirectory,
		Ext:       body.Ext,
		CopyFrom:  body.CopyFrom,
	}
	e, err := s.contents.Create(path, opts)
	if err != nil {
		sendError(w, err)
		return
	}
	w.Header().Set("Location", locationFor(e.Path))
	writeJSON(w, http.StatusCreated, e)
}

// uploadBody is the PUT request body (spec §4.3 "upload").
type uploadBody struct {
	Type     string      `json:"type"`
	Format   string      `json:"format,omitempty"`
	Content  interface{} `json:"content,omitempty"`
	CopyFrom string      `json:"copy_from,omitempty"`
}

// handlePut implements "upload"/mkdir (spec §4.3).
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	var body uploadBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, apierror.New(apierror.BadRequest, "invalid request body: %v", err))
		return
	}

	e, created, err := s.contents.Upload(path, contents.UploadBody{
		Type:     entry.Type(body.Type),
		Format:   entry.Format(body.Format),
		Content:  body.Content,
		CopyFrom: body.CopyFrom,
	})
	if err != nil {
		sendError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set("Location", locationFor(e.Path))
	writeJSON(w, status, e)
}

// renameBody is the PATCH request body (spec §4.3 "rename").
type renameBody struct {
	Path string `json:"path"`
}

// handlePatch implements "rename" (spec §4.3).
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	var body renameBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, apierror.New(apierror.BadRequest, "invalid request body: %v", err))
		return
	}

	e, err := s.contents.Rename(path, body.Path)
	if err != nil {
		sendError(w, err)
		return
	}
	w.Header().Set("Location", locationFor(e.Path))
	writeJSON(w, http.StatusOK, e)
}

// handleDelete implements "delete" (spec §4.3) and, for a path ending in
// "/checkpoints/{id}", "delete checkpoint" (spec §4.4).
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	if base, id, _, isMember := checkpointSuffix(path); isMember {
		if err := s.contents.DeleteCheckpoint(base, id); err != nil {
			sendError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.contents.Delete(path); err != nil {
		sendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
