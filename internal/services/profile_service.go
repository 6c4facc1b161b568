package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"pokedex/internal/models"
	"pokedex/internal/repositories"

	"go.uber.org/zap"
)

// AllowedImageExtensions lists the accepted profile picture extensions.
var AllowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// ImageStore persists uploaded pictures and returns the reference saved on the account.
type ImageStore interface {
	Save(ctx context.Context, name string, contentType string, size int64, body io.Reader) (string, error)
}

// Upload is a picture received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProfileService handles profile picture uploads.
type ProfileService struct {
	accountRepo repositories.AccountRepository
	images      ImageStore
	publisher   EventPublisher
	log         *zap.Logger
	now         func() time.Time
}

// NewProfileService creates a new ProfileService. publisher may be nil.
func NewProfileService(accountRepo repositories.AccountRepository, images ImageStore, publisher EventPublisher, log *zap.Logger) *ProfileService {
	return &ProfileService{
		accountRepo: accountRepo,
		images:      images,
		publisher:   publisher,
		log:         nopIfNil(log),
		now:         time.Now,
	}
}

// UploadPicture stores the picture as <accountID>_<unixMillis><ext> and records it on the account.
func (s *ProfileService) UploadPicture(ctx context.Context, accountID string, up Upload) (*models.Account, error) {
	if up.Body == nil || up.Filename == "" {
		return nil, ErrNoFile
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !AllowedImageExtensions[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}

	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, translateRepoError("failed to load account", err)
	}

	name := fmt.Sprintf("%s_%d%s", accountID, s.now().UnixMilli(), ext)
	ref, err := s.images.Save(ctx, name, up.ContentType, up.Size, up.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to store picture: %w: %v", ErrPersistence, err)
	}

	account, err := s.accountRepo.SetProfileImage(ctx, accountID, ref)
	if err != nil {
		return nil, translateRepoError("failed to update profile picture", err)
	}

	s.log.Info("profile picture updated", zap.String("account_id", accountID), zap.String("image", ref))
	publishEvent(ctx, s.publisher, s.log, EventProfilePictureUpdated, AccountEvent{
		AccountID:    accountID,
		ProfileImage: ref,
		OccurredAt:   s.now().UTC(),
	})
	return account, nil
}
