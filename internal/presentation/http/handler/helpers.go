package handler

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sangkips/quotation-api/internal/application/service"
	"github.com/sangkips/quotation-api/internal/domain/enum"
	"github.com/sangkips/quotation-api/internal/presentation/http/dto/request"
	"github.com/sangkips/quotation-api/internal/presentation/http/dto/response"
	"github.com/sangkips/quotation-api/internal/presentation/http/middleware"
)

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) *uuid.UUID {
	userIDVal, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return nil
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		return nil
	}
	return &userID
}

// IsAdmin checks if the user has the admin role
func IsAdmin(c *gin.Context) bool {
	return c.GetString(middleware.ContextUserRole) == enum.RoleAdmin.String()
}

// actor returns the authenticated caller, writing a 401 when there is none
func actor(c *gin.Context) (service.Actor, bool) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return service.Actor{}, false
	}
	return service.Actor{UserID: *userID, IsAdmin: IsAdmin(c)}, true
}

// pathID parses the :id path parameter, writing a 400 when it is not a UUID
func pathID(c *gin.Context, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid "+resource+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// bindError answers a failed ShouldBind: validation failures become a 422
// with field errors, anything else a 400.
func bindError(c *gin.Context, err error) {
	if fields := request.FieldErrors(err); len(fields) > 0 {
		response.ValidationError(c, fields)
		return
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		response.BadRequest(c, "Request body is empty")
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		response.BadRequest(c, "Invalid request body")
	default:
		response.BadRequest(c, "Invalid request: "+err.Error())
	}
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
