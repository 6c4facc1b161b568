package handlers

import (
	"pokedex/internal/middleware"
	"pokedex/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProfilePictureField is the multipart field carrying the uploaded picture.
const ProfilePictureField = "profilePic"

// ProfileHandler handles profile picture uploads.
type ProfileHandler struct {
	service *services.ProfileService
	log     *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(service *services.ProfileService, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, log: log}
}

// RegisterRoutes registers the profile routes on an authenticated router.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/profile/picture", h.HandleUploadPicture)
}

// HandleUploadPicture stores the uploaded picture and returns the updated account.
func (h *ProfileHandler) HandleUploadPicture(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile(ProfilePictureField)
	if err != nil {
		return respondError(c, h.log, services.ErrNoFile)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondError(c, h.log, err)
	}
	defer file.Close()

	account, err := h.service.UploadPicture(c.UserContext(), middleware.AccountID(c), services.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"message": "Profile picture updated",
		"user":    account,
	})
}
