package image

import "errors"

var (
	ErrImageNotFound         = errors.New("image not found")
	ErrVersionNotFound       = errors.New("version not found")
	ErrUnknownTransformation = errors.New("unknown transformation")
	ErrTransformFailed       = errors.New("transformation failed")
	ErrStorageFailed         = errors.New("blob storage failure")
	ErrInvalidFile           = errors.New("file type is not allowed")
	ErrFileTooLarge          = errors.New("file exceeds maximum allowed size")
)
