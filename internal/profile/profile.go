// Package profile lets users change their display name and avatar.
package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/auth"
	"github.com/dukerupert/homewise/internal/images"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/dukerupert/homewise/internal/validate"
)

// Users is the part of the auth provider that owns user records.
type Users interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, id, name, image string) (*model.User, error)
}

// ImageStore uploads and removes avatar objects. *images.Store satisfies it.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// Upload is a picture received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// UpdateInput holds the optional profile changes. A nil or blank Name keeps
// the current name; a nil Image keeps the current avatar.
type UpdateInput struct {
	Name  *string
	Image *Upload
}

type Service struct {
	users  Users
	images ImageStore
	logger *slog.Logger
}

func NewService(users Users, images ImageStore, logger *slog.Logger) *Service {
	return &Service{users: users, images: images, logger: logger}
}

func (s *Service) Update(ctx context.Context, sess auth.Session, in UpdateInput) (*model.User, error) {
	user, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	name := user.Name
	if in.Name != nil {
		if trimmed := strings.TrimSpace(*in.Name); trimmed != "" {
			if err := validate.Var("name", trimmed, "max=128"); err != nil {
				return nil, err
			}
			name = trimmed
		}
	}

	image := user.Image
	if in.Image != nil {
		url, err := s.storeAvatar(ctx, user.ID, in.Image)
		if err != nil {
			return nil, err
		}
		image = url
	}

	updated, err := s.users.UpdateUser(ctx, user.ID, name, image)
	if err != nil {
		return nil, err
	}

	if user.Image != "" && image != user.Image {
		if err := s.images.Delete(ctx, user.Image); err != nil {
			s.logger.Warn("delete replaced avatar", "user_id", user.ID, "error", err)
		}
	}
	return updated, nil
}

func (s *Service) storeAvatar(ctx context.Context, userID string, up *Upload) (string, error) {
	data, err := images.Avatar(up.Body, images.AvatarSize)
	switch {
	case errors.Is(err, images.ErrTooLarge):
		return "", apperr.Invalid("image", "too_big", "image must be at most 5 MiB")
	case errors.Is(err, images.ErrUnsupportedImage):
		return "", apperr.Invalid("image", "invalid_format", "image must be a JPEG, PNG, GIF or WebP file")
	case err != nil:
		return "", apperr.Internal("process avatar", err)
	}

	url, err := s.images.Put(ctx, images.AvatarKey(userID, up.Filename), data, "image/jpeg")
	if err != nil {
		return "", apperr.Internal("upload avatar", err)
	}
	return url, nil
}

// RemovePicture deletes the caller's avatar. It reports false when there
// was nothing to remove.
func (s *Service) RemovePicture(ctx context.Context, sess auth.Session) (*model.User, bool, error) {
	user, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, false, err
	}
	if user.Image == "" {
		return user, false, nil
	}

	if err := s.images.Delete(ctx, user.Image); err != nil {
		return nil, false, apperr.Internal("delete avatar", err)
	}
	updated, err := s.users.UpdateUser(ctx, user.ID, user.Name, "")
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("avatar removed", "user_id", user.ID)
	return updated, true, nil
}
