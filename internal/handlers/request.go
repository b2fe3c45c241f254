package handlers

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/middleware"
)

var errInvalidField = errors.New("invalid field")

// requireUser returns the authenticated caller or writes a 401.
func requireUser(c *gin.Context) (uint64, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return 0, false
	}
	return userID, true
}

// pathID parses a numeric path parameter or writes a 400.
func pathID(c *gin.Context, name, label string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid "+label)
		return 0, false
	}
	return id, true
}

// queryID parses an optional numeric query parameter.
func queryID(c *gin.Context, name string) (*uint64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalidField, name)
	}
	return &id, nil
}

// queryIDs collects every value of a repeated numeric query parameter.
// Comma separated lists are accepted too.
func queryIDs(c *gin.Context, name string) ([]uint64, error) {
	var ids []uint64
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", errInvalidField, name)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", errInvalidField, value)
	}
	return t, nil
}

// patchBody is a decoded PATCH request. A key that is present with a JSON
// null clears the column; an absent key leaves it untouched.
type patchBody map[string]any

func (p patchBody) has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p patchBody) isNull(key string) bool {
	v, ok := p[key]
	return ok && v == nil
}

func (p patchBody) str(key string) (*string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errInvalidField, key)
	}
	return &s, nil
}

func (p patchBody) id(key string) (*uint64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok || f < 1 || f != math.Trunc(f) {
		return nil, fmt.Errorf("%w: %s", errInvalidField, key)
	}
	id := uint64(f)
	return &id, nil
}

func (p patchBody) date(key string) (*time.Time, error) {
	s, err := p.str(key)
	if err != nil || s == nil {
		return nil, err
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func bindPatch(c *gin.Context) (patchBody, bool) {
	var body patchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return nil, false
	}
	return body, true
}
