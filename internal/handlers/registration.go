package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"registration-gateway/internal/models"
	"registration-gateway/internal/services"
	"registration-gateway/internal/storage"
	"registration-gateway/internal/utils"
)

type RegistrationHandler struct {
	registrationService *services.RegistrationService
}

func NewRegistrationHandler(registrationService *services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
	}
}

// Register handles POST /api/v1/registrations. The authenticated user id
// arrives in the X-User-ID header, set by the auth proxy in front of this
// service.
func (h *RegistrationHandler) Register(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Authentication required", ""))
		return
	}

	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	result, err := h.registrationService.Register(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeRegistrationError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRegistration handles GET /api/v1/registrations/:id for status polling.
func (h *RegistrationHandler) GetRegistration(c *gin.Context) {
	registrationID := c.Param("id")
	if registrationID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Registration ID is required", ""))
		return
	}

	reg, payment, err := h.registrationService.GetRegistration(c.Request.Context(), registrationID)
	if err != nil {
		if errors.Is(err, storage.ErrRegistrationNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Registration not found", ""))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve registration", ""))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Registration retrieved", gin.H{
		"registration": reg,
		"payment":      payment,
	}))
}

// CheckIn handles POST /api/v1/checkin with an entry code or registration id.
func (h *RegistrationHandler) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	attendance, created, err := h.registrationService.CheckIn(c.Request.Context(), &req)
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Validation failed", vErr.Error()))
		case errors.Is(err, storage.ErrRegistrationNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Registration not found", ""))
		case errors.Is(err, services.ErrNotConfirmed):
			c.JSON(http.StatusConflict, utils.ErrorResponse("Registration is not confirmed", ""))
		default:
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Check-in failed", ""))
		}
		return
	}

	message := "Checked in"
	if !created {
		message = "Already checked in"
	}
	c.JSON(http.StatusOK, utils.SuccessResponse(message, attendance))
}

func (h *RegistrationHandler) writeRegistrationError(c *gin.Context, err error) {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Validation failed", vErr.Error()))
	case errors.Is(err, storage.ErrEventNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Event not found", ""))
	case errors.Is(err, storage.ErrRegistrationClosed):
		c.JSON(http.StatusForbidden, utils.ErrorResponse("Registration is closed for this event", ""))
	case errors.Is(err, storage.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, utils.ErrorResponse("Event is fully booked", ""))
	case errors.Is(err, storage.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, utils.ErrorResponse("You are already registered for this event", ""))
	case errors.Is(err, services.ErrOrderCreateFailed):
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Payment gateway unavailable, please retry", ""))
	default:
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Registration failed", ""))
	}
}
