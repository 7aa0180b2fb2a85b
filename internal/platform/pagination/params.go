package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit defines the fallback number of items returned when the client omits limit.
	DefaultLimit = 20
	// MaxLimit caps the supported limit to prevent unbounded queries.
	MaxLimit = 100
)

var (
	ErrInvalidLimit  = errors.New("pagination: invalid limit")
	ErrInvalidOffset = errors.New("pagination: invalid offset")
)

// Params bundles the limit/offset window extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromRequest parses the supported query parameters from the supplied request.
func FromRequest(r *http.Request) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query())
}

// Parse consumes the provided query values and returns the normalised Params representation.
func Parse(values url.Values) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	limit, err := parseLimit(values.Get("limit"))
	if err != nil {
		return Params{}, err
	}

	offset, err := parseOffset(values.Get("offset"))
	if err != nil {
		return Params{}, err
	}

	return Params{Limit: limit, Offset: offset}, nil
}

func parseLimit(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultLimit, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidLimit)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidLimit)
	}
	if value > MaxLimit {
		value = MaxLimit
	}
	return value, nil
}

func parseOffset(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidOffset)
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidOffset)
	}
	return value, nil
}

// Must ensures Limit is always initialised with a sensible default before use.
func Must(params Params) Params {
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return params
}
