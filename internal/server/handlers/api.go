package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/logfields"
	"git.home.luguber.info/inful/botpack/internal/server/responses"
)

// maxSelectionBody bounds /process request bodies.
const maxSelectionBody = 64 << 10

// APIHandlers serves the module listing and package download endpoints.
type APIHandlers struct {
	service         ServiceFunc
	assembleTimeout time.Duration
	errorAdapter    *derrors.HTTPErrorAdapter
	logger          *slog.Logger
}

// NewAPIHandlers creates API handlers. A positive assembleTimeout bounds
// each package request.
func NewAPIHandlers(service ServiceFunc, assembleTimeout time.Duration, logger *slog.Logger) *APIHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandlers{
		service:         service,
		assembleTimeout: assembleTimeout,
		errorAdapter:    derrors.NewHTTPErrorAdapter(logger),
		logger:          logger,
	}
}

// HandleModules lists the selectable modules as JSON.
func (h *APIHandlers) HandleModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service().Modules(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	resp := responses.ModulesResponse{
		Modules:   make([]responses.ModuleResponse, 0, len(modules)),
		Count:     len(modules),
		Timestamp: time.Now().UTC(),
	}
	for _, m := range modules {
		resp.Modules = append(resp.Modules, responses.ModuleResponse{ID: m.ID, Description: m.Description, Size: m.Size})
	}
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			derrors.WrapError(err, derrors.CategoryInternal, "failed to write modules response").Build())
	}
}

// HandleProcess assembles the requested package and streams it as an
// attachment. The body is a JSON array of identifiers, a JSON object with
// a selectedFiles array, or a form with repeated selectedFiles fields.
func (h *APIHandlers) HandleProcess(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeSelection(w, r)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	ctx := r.Context()
	if h.assembleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.assembleTimeout)
		defer cancel()
	}

	out, err := h.service().Package(ctx, raw)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Name}))
	w.Header().Set("Content-Length", strconv.FormatInt(out.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		h.logger.Warn("Failed to write package", logfields.Name(out.Name), logfields.Error(err))
	}
}

func decodeSelection(w http.ResponseWriter, r *http.Request) ([]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSelectionBody)

	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxSelectionBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, malformed(err)
		}
		return r.PostForm["selectedFiles"], nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, malformed(err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	if body[0] == '{' {
		var req responses.SelectionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, malformed(err)
		}
		return req.SelectedFiles, nil
	}

	var ids []string
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, malformed(err)
	}
	return ids, nil
}

func malformed(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return derrors.ValidationError("selection body too large").
			WithContext("limit_bytes", tooLarge.Limit).
			Build()
	}
	return derrors.ValidationError("malformed selection body").WithCause(err).Build()
}
