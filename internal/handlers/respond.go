package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/middleware"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom binding rules and makes validation
// messages use json field names. Call it once before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v.RegisterValidation("propertytype", func(fl validator.FieldLevel) bool {
		return models.PropertyType(fl.Field().String()).Valid()
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "propertytype":
		return fmt.Sprintf("%s must be one of flat, house, pg", fe.Field())
	case "latitude", "longitude":
		return fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// bindJSON decodes the body into dst and records a validation error on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.Error(apperr.Validation(validationMessage(err)))
		return false
	}
	return true
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint(middleware.UserIDKey)
}

// uintParam reads a positive numeric path parameter.
func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.Error(apperr.Validation(fmt.Sprintf("Invalid %s", name)))
		return 0, false
	}
	return uint(id), true
}

func pagination(c *gin.Context) (utils.Pagination, bool) {
	p, err := utils.ParsePagination(c.Query("page"), c.Query("limit"))
	if err != nil {
		c.Error(apperr.Validation(err.Error()))
		return p, false
	}
	return p, true
}

// optionalFloat parses a query value, leaving nil when it is absent.
func optionalFloat(c *gin.Context, name string) (*float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.Error(apperr.Validation(fmt.Sprintf("%s must be a number", name)))
		return nil, false
	}
	return &f, true
}

type pageResponse struct {
	Data       interface{}    `json:"data"`
	Pagination utils.PageMeta `json:"pagination"`
}
