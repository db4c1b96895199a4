package fileService

import "errors"

var (
	ErrNotFound        = errors.New("file not found")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNotPDF          = errors.New("file is not a pdf")
	ErrNotDeleted      = errors.New("file is not in trash")
)
