package validators

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/viper"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileNameTooLong = errors.New("file name is too long")
	ErrNoFile          = errors.New("no file provided")
)

const maxFileNameSize = 255

// UploadValidator checks an incoming multipart file against the upload
// policy and returns the content type to record. The declared type is
// trusted as-is, sniffing only fills the gap when the client didn't
// declare one.
func UploadValidator(fh *multipart.FileHeader) (int, string, error) {
	if fh == nil || fh.Size == 0 {
		return http.StatusBadRequest, "", ErrNoFile
	}

	if len(fh.Filename) > maxFileNameSize {
		return http.StatusBadRequest, "", ErrFileNameTooLong
	}

	if fh.Size > viper.GetInt64("upload.max_size") {
		return http.StatusRequestEntityTooLarge, "", ErrFileTooLarge
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		f, err := fh.Open()
		if err != nil {
			return http.StatusInternalServerError, "", err
		}
		defer f.Close()

		mime, err := mimetype.DetectReader(f)
		if err != nil {
			return http.StatusInternalServerError, "", err
		}

		contentType = mime.String()
	}

	return 0, contentType, nil
}
