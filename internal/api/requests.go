package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"stockgame/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createGameRequest struct {
	Name          string          `json:"name" validate:"required,max=120"`
	StartTime     string          `json:"startTime" validate:"required"`
	EndTime       string          `json:"endTime" validate:"required"`
	InitialAmount decimal.Decimal `json:"initialAmount"`
}

func (req createGameRequest) times() (time.Time, time.Time, error) {
	start, err := parseTime(req.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("startTime must be an RFC3339 timestamp")
	}
	end, err := parseTime(req.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("endTime must be an RFC3339 timestamp")
	}
	return start, end, nil
}

type tradeRequest struct {
	StockSymbol string `json:"stockSymbol" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"gt=0"`
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// validateRequest runs struct tag validation and turns the first failure into
// a client-facing message.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation(err.Error())
	}
	fe := verrs[0]
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return apperr.Validation(field + " is required")
	case "gt":
		return apperr.Validation("Quantity must be a positive integer")
	case "max":
		return apperr.Validation(field + " must be at most " + fe.Param() + " characters")
	default:
		return apperr.Validation(field + " is invalid")
	}
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func queryInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return n, nil
}
