package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"c5chat-backend/internal/chat"
	"c5chat-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(code int, err error) error {
	return &codedError{err: err, code: code}
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Error("error parsing request body", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	return data, nil
}

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	err := schema.NewDecoder().Decode(&data, r.Form)
	if err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	return data, nil
}

type statusResponse struct {
	status int
	body   any
}

// Created marks a handler result that should be written with a 201 status.
func Created(body any) any {
	return statusResponse{status: http.StatusCreated, body: body}
}

func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			writeErrorResponse(w, err)
			return
		}

		status := http.StatusOK
		if sr, ok := res.(statusResponse); ok {
			status = sr.status
			res = sr.body
		}
		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, status, res)
	}
}

// writeErrorResponse converts an endpoint error into a JSON body with a
// machine-readable code. Internal detail is logged for operators; clients get
// a generic message they can show the user.
func writeErrorResponse(w http.ResponseWriter, err error) {
	var cerr *codedError
	if errors.As(err, &cerr) {
		resp := api.ErrorResponse{Error: cerr.Error()}
		if cerr.code == http.StatusBadRequest {
			resp.Code = api.CodeValidation
		}
		WriteJsonResponse(w, cerr.code, resp)
		return
	}

	resp := api.ErrorResponse{Error: "An error occurred while processing your request. Please try again."}
	switch {
	case errors.Is(err, chat.ErrOrphanedSession):
		resp.Code = api.CodeOrphanedSession
		resp.Error = "The chat session no longer exists."
	case errors.Is(err, chat.ErrEmptyReply):
		resp.Code = api.CodeEmptyReply
		resp.Error = "The model generated an invalid or empty response."
	case errors.Is(err, chat.ErrUpstream):
		resp.Code = api.CodeUpstream
		resp.Error = "An error occurred while communicating with the model. Please try again."
	case errors.Is(err, chat.ErrStorage):
		resp.Code = api.CodeStorage
	}

	slog.Error("internal server error received in endpoint", "error", err)
	WriteJsonResponse(w, http.StatusInternalServerError, resp)
}

func WriteJsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}

func URLParamString(r *http.Request, key string) (string, error) {
	param := chi.URLParam(r, key)
	if len(param) == 0 {
		return "", CodedErrorf(http.StatusBadRequest, "missing {%v} url parameter", key)
	}
	return param, nil
}
