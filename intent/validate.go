package intent

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is the sentinel wrapped by every *ValidationError.
var ErrValidation = errors.New("invalid order intent")

// ValidationError lists the fields of an intent that failed validation.
type ValidationError struct {
	Symbol string
	Tag    string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s/%s: %s", ErrValidation, e.Symbol, e.Tag, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks the intent's field invariants.
func (o OrderIntent) Validate() error {
	var fields []string

	if err := v().Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate intent: %w", err)
		}
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}

	if o.TS.IsZero() {
		fields = append(fields, "ts(required)")
	}
	// NaN slips through numeric comparisons in some validator versions.
	if math.IsNaN(o.Confidence) {
		fields = append(fields, "confidence(nan)")
	}
	if (o.Entry.Type == Stop || o.Entry.Type == Limit) && o.Entry.Price == nil {
		fields = append(fields, "entry.price(required)")
	}
	if o.Entry.Price != nil && (*o.Entry.Price <= 0 || math.IsNaN(*o.Entry.Price)) {
		fields = append(fields, "entry.price(gt=0)")
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Symbol: o.Symbol, Tag: o.Tag, Fields: fields}
}
