package store

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/applytrak/applytrak/internal/types"
	"github.com/applytrak/applytrak/internal/ui"
)

// MaxAttachmentSize is the largest file accepted as an attachment.
const MaxAttachmentSize = 10 << 20

// AllowedAttachmentTypes lists the MIME types accepted as attachments.
var AllowedAttachmentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":      true,
	"application/rtf": true,
	"text/rtf":        true,
	"image/png":       true,
	"image/jpeg":      true,
}

// File is a file picked by the user.
type File struct {
	Name    string
	Type    string
	Content []byte
}

// SelectFiles adds the acceptable files to existing and returns the new list together with the
// toasts to show for rejected ones. Disallowed types and oversize files raise an error toast,
// a name already in the list a warning toast. existing is not modified.
func SelectFiles(existing []types.Attachment, files []File, now time.Time, newID func() string) ([]types.Attachment, []ui.Toast) {
	out := make([]types.Attachment, len(existing), len(existing)+len(files))
	copy(out, existing)

	var toasts []ui.Toast
	for _, f := range files {
		switch {
		case !AllowedAttachmentTypes[f.Type]:
			toasts = append(toasts, ui.Toast{
				Type:    ui.ToastError,
				Message: fmt.Sprintf("%s: file type not supported. Use PDF, Word, text or image files.", f.Name),
			})
		case len(f.Content) > MaxAttachmentSize:
			toasts = append(toasts, ui.Toast{
				Type:    ui.ToastError,
				Message: fmt.Sprintf("%s is larger than 10MB.", f.Name),
			})
		case hasName(out, f.Name):
			toasts = append(toasts, ui.Toast{
				Type:    ui.ToastWarning,
				Message: fmt.Sprintf("%s is already attached.", f.Name),
			})
		default:
			out = append(out, types.Attachment{
				ID:         newID(),
				Name:       f.Name,
				Type:       f.Type,
				Size:       int64(len(f.Content)),
				Data:       base64.StdEncoding.EncodeToString(f.Content),
				UploadedAt: now,
			})
		}
	}
	return out, toasts
}

func hasName(list []types.Attachment, name string) bool {
	for _, a := range list {
		if a.Name == name {
			return true
		}
	}
	return false
}

// RemoveAttachment returns list without the attachment with the given id.
func RemoveAttachment(list []types.Attachment, id string) []types.Attachment {
	out := make([]types.Attachment, 0, len(list))
	for _, a := range list {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}
