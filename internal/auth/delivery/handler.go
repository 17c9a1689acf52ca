package delivery

import (
	"net/http"

	"billwatch-backend/internal/auth/repository"

	"github.com/gin-gonic/gin"
)

// DeviceHandler registers devices for push notifications
type DeviceHandler struct {
	deviceRepo repository.DeviceTokenRepository
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceRepo repository.DeviceTokenRepository) *DeviceHandler {
	return &DeviceHandler{deviceRepo: deviceRepo}
}

type registerDeviceRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// RegisterDevice stores the caller's FCM token
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deviceRepo.SaveToken(c.Request.Context(), c.GetString(ClientIDKey), req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device registered"})
}

// UnregisterDevice removes an FCM token
func (h *DeviceHandler) UnregisterDevice(c *gin.Context) {
	if err := h.deviceRepo.DeleteTokens(c.Request.Context(), []string{c.Param("token")}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister device"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device unregistered"})
}
