package helpers

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/joshua-takyi/eventhub/internal/models"
)

// CloudinaryStore keeps event images in a Cloudinary folder.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cld *cloudinary.Cloudinary, folder string) *CloudinaryStore {
	if folder == "" {
		folder = EventsFolder
	}
	return &CloudinaryStore{cld: cld, folder: folder}
}

func (cs *CloudinaryStore) Upload(ctx context.Context, img models.ImageUpload) (*models.StoredImage, error) {
	res, err := cs.cld.Upload.Upload(ctx, img.Data, uploader.UploadParams{
		Folder: cs.folder,
		Tags:   []string{"eventhub"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload image %s: %w", img.Filename, err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("failed to upload image %s: %s", img.Filename, res.Error.Message)
	}
	return &models.StoredImage{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (cs *CloudinaryStore) Delete(ctx context.Context, publicID string) error {
	res, err := cs.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("failed to delete image %s: %s", publicID, res.Error.Message)
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+/`)

// PublicIDFromURL derives a Cloudinary public id from a delivery URL:
// ".../image/upload/v1712/events/abc.jpg" gives "events/abc".
func PublicIDFromURL(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	rest := imageURL
	if i := strings.Index(imageURL, "/upload/"); i >= 0 {
		rest = versionSegment.ReplaceAllString(imageURL[i+len("/upload/"):], "")
	} else {
		rest = path.Base(imageURL)
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSuffix(rest, path.Ext(rest))
}
