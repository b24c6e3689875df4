package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"calendra/pkg/config"
	apperrors "calendra/pkg/errors"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ExtractTime parses an RFC 3339 query parameter. A missing parameter is an error.
func ExtractTime(r *http.Request, name string) (time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return time.Time{}, apperrors.InvalidInput("missing " + name + " parameter")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid " + name + " parameter, expected RFC 3339: " + s)
	}
	return t.UTC(), nil
}

// ExtractDuration parses an optional Go duration query parameter such as "30m".
func ExtractDuration(r *http.Request, name string) (time.Duration, bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false, apperrors.InvalidInput("invalid " + name + " parameter: " + s)
	}
	return d, true, nil
}

// DecodeJSON rejects unknown fields and trailing data.
func DecodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is empty")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.New(apperrors.CodeBadRequest, "request body too large", http.StatusRequestEntityTooLarge)
		}
		return apperrors.InvalidInput("invalid JSON body: " + err.Error())
	}
	if decoder.More() {
		return apperrors.InvalidInput("request body must contain a single JSON object")
	}
	return nil
}
