package store

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applytrak/applytrak/internal/types"
	"github.com/applytrak/applytrak/internal/ui"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestSelectFiles_Accepts(t *testing.T) {
	now := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	list, toasts := SelectFiles(nil, []File{{Name: "cv.pdf", Type: "application/pdf", Content: []byte("%PDF")}}, now, sequentialIDs())

	assert.Empty(t, toasts)
	require.Len(t, list, 1)
	assert.Equal(t, "id-1", list[0].ID)
	assert.Equal(t, int64(4), list[0].Size)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF")), list[0].Data)
	assert.Equal(t, now, list[0].UploadedAt)
}

func TestSelectFiles_DisallowedType(t *testing.T) {
	list, toasts := SelectFiles(nil, []File{{Name: "run.exe", Type: "application/x-msdownload", Content: []byte("MZ")}}, time.Now(), sequentialIDs())

	assert.Empty(t, list)
	require.Len(t, toasts, 1)
	assert.Equal(t, ui.ToastError, toasts[0].Type)
	assert.Contains(t, toasts[0].Message, "run.exe")
}

func TestSelectFiles_Oversize(t *testing.T) {
	big := bytes.Repeat([]byte("a"), MaxAttachmentSize+1)
	list, toasts := SelectFiles(nil, []File{{Name: "big.txt", Type: "text/plain", Content: big}}, time.Now(), sequentialIDs())

	assert.Empty(t, list)
	require.Len(t, toasts, 1)
	assert.Equal(t, ui.ToastError, toasts[0].Type)
}

func TestSelectFiles_DuplicateName(t *testing.T) {
	files := []File{
		{Name: "cv.pdf", Type: "application/pdf", Content: []byte("one")},
		{Name: "cv.pdf", Type: "application/pdf", Content: []byte("two")},
	}
	list, toasts := SelectFiles(nil, files, time.Now(), sequentialIDs())

	assert.Len(t, list, 1)
	require.Len(t, toasts, 1)
	assert.Equal(t, ui.ToastWarning, toasts[0].Type)
}

func TestSelectFiles_DoesNotModifyExisting(t *testing.T) {
	existing := []types.Attachment{{ID: "a", Name: "old.txt"}}
	list, _ := SelectFiles(existing, []File{{Name: "new.png", Type: "image/png", Content: []byte{1}}}, time.Now(), sequentialIDs())

	assert.Len(t, existing, 1)
	assert.Len(t, list, 2)
	assert.Len(t, RemoveAttachment(list, "a"), 1)
}
