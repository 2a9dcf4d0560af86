package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"threadboard/internal/model"
)

var errBadPageParam = errors.New("pageNo and pageSize must be positive integers")

// pathID parses a positive int64 URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageRequest reads pageNo and pageSize from the query string. Missing values
// fall back to the defaults.
func pageRequest(r *http.Request) (model.PageRequest, error) {
	q := r.URL.Query()
	pageNo, err := optionalPositive(q.Get("pageNo"))
	if err != nil {
		return model.PageRequest{}, err
	}
	pageSize, err := optionalPositive(q.Get("pageSize"))
	if err != nil {
		return model.PageRequest{}, err
	}
	return model.NewPageRequest(pageNo, pageSize), nil
}

func optionalPositive(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errBadPageParam
	}
	return n, nil
}
