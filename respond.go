package main

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
)

// Validation details are keyed by the JSON (or form) name the client sent.
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
}

// respondError writes the error taxonomy as JSON. Internal error details are
// only exposed outside production.
func respondError(c *gin.Context, err error) {
	appErr := utils.AsAppError(err)
	body := gin.H{"error": appErr.Message}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if !config.IsProduction() && appErr.Err != nil {
			body["details"] = appErr.Err.Error()
		}
	}
	c.AbortWithStatusJSON(appErr.Status, body)
}

// bindJSON decodes the body and reports validator failures field by field.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(c, utils.BadRequest("request body is required"))
			return false
		}
		if details := utils.ProcessValidationErrors(err); details != nil {
			respondError(c, utils.BadRequest("invalid request", details))
			return false
		}
		respondError(c, utils.BadRequest("invalid request"))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest any) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		respondError(c, utils.BadRequest("invalid query parameters", utils.ProcessValidationErrors(err)))
		return false
	}
	return true
}

type listResponse[T any] struct {
	Data     []T `json:"data"`
	PageInfo any `json:"pageInfo,omitempty"`
}

func respondList[T any](c *gin.Context, data []T, pageInfo any) {
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, listResponse[T]{Data: data, PageInfo: pageInfo})
}
