package attachment

import "errors"

// Sentinel errors for attachment handling.
var (
	ErrInvalidAttachment = errors.New("invalid attachment")
	ErrUnsafeURL         = errors.New("attachment URL is not allowed")
	ErrPathTraversal     = errors.New("upload path traversal blocked")
	ErrUnsupportedImage  = errors.New("only PNG, JPG, GIF, and WEBP images are allowed")
	ErrTooLarge          = errors.New("file is too large (max 10MB)")
)
