package service

import (
	"context"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
)

// storePDF validates an uploaded document (size bound, PDF only) and writes
// it to the file store. The byte transfer always completes before any thesis
// row is touched, so no lock is ever held across an upload.
func storePDF(ctx context.Context, storage FileStorage, maxSize int64, kind, name string, file *multipart.FileHeader) (string, error) {
	if file.Size > maxSize {
		return "", NewValidationError("file (exceeds size limit)")
	}

	handle, err := file.Open()
	if err != nil {
		return "", err
	}
	defer handle.Close()

	header := make([]byte, 512)
	read, err := handle.Read(header)
	if err != nil && read == 0 {
		return "", err
	}
	if !mimetype.Detect(header[:read]).Is("application/pdf") {
		return "", ErrUploadTypeNotAllowed
	}
	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	fileURL, err := storage.Upload(ctx, kind, name+".pdf", handle)
	if err != nil {
		return "", &TransientInfraError{Op: "file store", Cause: err}
	}
	return fileURL, nil
}
