package web

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type documentRequest struct {
	Ref string `json:"ref" validate:"required,max=4096"`
}

type outputDirRequest struct {
	Dir string `json:"dir" validate:"required,max=4096"`
}

type clickRequest struct {
	Page *int `json:"page" validate:"required,gte=0"`
}

type removeRequest struct {
	Index *int `json:"index" validate:"required,gte=0"`
}

type scrollRequest struct {
	Delta int `json:"delta" validate:"gte=-1000,lte=1000"`
}

type validation struct {
	validate *validator.Validate
}

func newValidation() *validation {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &validation{validate: v}
}

func (v *validation) check(s interface{}) error { return v.validate.Struct(s) }

// fieldErrors converts validation errors to field -> message.
func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["body"] = err.Error()
		return out
	}
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "gte":
			out[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, e.Param())
		case "lte":
			out[field] = fmt.Sprintf("%s must be less than or equal to %s", field, e.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}
