package search

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"geotag/internal/modules/location"
)

func newValidator(region location.Region) *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("region_lat", func(fl validator.FieldLevel) bool {
		lat, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
		return err == nil && region.ContainsLat(lat)
	})
	_ = v.RegisterValidation("region_lng", func(fl validator.FieldLevel) bool {
		lng, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
		return err == nil && region.ContainsLng(lng)
	})
	return v
}

// toValidationError reports the first failing field.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &location.ValidationError{Field: "form", Reason: err.Error()}
	}
	fe := verrs[0]
	ve := &location.ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
	if fe.Tag() == "region_lat" || fe.Tag() == "region_lng" {
		ve.Err = location.ErrOutOfRegion
	}
	return ve
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "region_lat":
		return "must be a number within the supported latitude range"
	case "region_lng":
		return "must be a number within the supported longitude range"
	case "numeric", "len":
		return "must be a 6-digit postal code"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
