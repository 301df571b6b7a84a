package services

import "errors"

var (
	ErrNoFiles         = errors.New("no files provided")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrEmptyQuestion   = errors.New("question text is empty")
	ErrInvalidFilename = errors.New("invalid filename")
)
