package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/google/uuid"
)

// ImageStore stores image bytes and returns a locator (a public URL).
type ImageStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// Image is an uploaded file.
type Image struct {
	Data        []byte
	ContentType string
}

// storeError turns a repository error into an OpError. Not-found and
// conflict keep their kinds, everything else is an infrastructure failure.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return common.WrapError(op, common.ErrorNotFound, err)
	case errors.Is(err, common.ErrAlreadyExists):
		return common.WrapError(op, common.ErrAlreadyExists, err)
	default:
		return common.WrapError(op, common.ErrInfrastructure, err)
	}
}

func invalid(op, msg string) error {
	return common.NewError(op, common.ErrValidation, msg)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// checkID rejects ids that cannot be a row key, so a bad path segment reads
// as "not found" rather than a database error.
func checkID(op, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.NewError(op, common.ErrorNotFound, "no such id")
	}
	return nil
}

func putImage(ctx context.Context, op string, store ImageStore, img *Image) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", invalid(op, "image is required")
	}
	if store == nil {
		return "", common.NewError(op, common.ErrInfrastructure, "no image store")
	}
	loc, err := store.Put(ctx, img.Data, img.ContentType)
	if err != nil {
		if common.KindOf(err) != nil {
			return "", err
		}
		return "", common.WrapError(op, common.ErrInfrastructure, err)
	}
	return loc, nil
}
