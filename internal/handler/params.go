package handler

import (
	"fmt"
	"strconv"
	"time"

	"commissionledger/internal/service"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// dateRange reads ?from= and ?to= (YYYY-MM-DD, both inclusive) and returns the
// half-open range [from, until).
func dateRange(c *gin.Context, defaultFrom, defaultTo time.Time) (time.Time, time.Time, error) {
	from, err := queryDate(c, "from", defaultFrom)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDate(c, "to", defaultTo)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to.AddDate(0, 0, 1), nil
}

func queryDate(c *gin.Context, key string, fallback time.Time) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		if fallback.IsZero() {
			return time.Time{}, fmt.Errorf("%w: %s is required", service.ErrInvalidInput, key)
		}
		return fallback, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", service.ErrInvalidInput, key)
	}
	return t, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", service.ErrInvalidInput, key)
	}
	return n, nil
}
