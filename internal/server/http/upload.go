package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/leafline/internal/server/services"
	"github.com/gin-gonic/gin"
)

const maxImageSize = 10 << 20

var errNotImage = errors.New("file is not an image")

// formImage reads the named multipart file. It returns nil, nil when the
// field is absent.
func formImage(c *gin.Context, field string) (*services.Image, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	if fh.Size > maxImageSize {
		return nil, errors.New("image too large")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageSize {
		return nil, errors.New("image too large")
	}

	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return nil, errNotImage
	}
	return &services.Image{Data: data, ContentType: ct}, nil
}
