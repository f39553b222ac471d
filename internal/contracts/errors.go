package contracts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCode      = errors.New("empty instrument code")
	ErrDuplicateDate  = errors.New("duplicate bar date")
	ErrInvalidBar     = errors.New("invalid bar")
	ErrMissingField   = errors.New("missing required field")
	ErrSeriesNotFound = errors.New("bar series not found")
	ErrSeriesTooShort = errors.New("bar series too short")
)

// MissingFieldError reports columns a signal needs that the series lacks
type MissingFieldError struct {
	Code   string
	Fields []Field
}

func (e *MissingFieldError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.String()
	}
	return fmt.Sprintf("%s: missing required field(s) %s", e.Code, strings.Join(names, ","))
}

// Is makes errors.Is(err, ErrMissingField) match
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}
