package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fuzzymachine/efficiency/pkg/fault"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string     `json:"error"`
	Kind    fault.Kind `json:"kind"`
	TraceID string     `json:"trace_id"`
}

func replyJSON(ctx context.Context, w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("api: encode response", "err", err, "trace_id", TraceIDFrom(ctx))
	}
}

func replyError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	resp := ErrorResponse{
		Error:   fault.MessageOf(err),
		Kind:    kind,
		TraceID: TraceIDFrom(ctx),
	}

	code := http.StatusInternalServerError
	switch kind {
	case fault.KindValidation:
		code = http.StatusBadRequest
	case fault.KindNotFound:
		code = http.StatusNotFound
	case fault.KindInternal:
		resp.Error = "internal error"
	}

	if code >= http.StatusInternalServerError {
		slog.Error("api: request failed", "err", err, "kind", kind, "trace_id", resp.TraceID)
	} else {
		slog.Debug("api: request rejected", "err", err, "kind", kind, "trace_id", resp.TraceID)
	}
	replyJSON(ctx, w, code, resp)
}
