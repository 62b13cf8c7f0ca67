package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in paper")
	ErrUnsupportedFile   = errors.New("unsupported paper file type")

	ErrQuotaExhausted      = errors.New("provider quota exhausted")
	ErrRateLimited         = errors.New("provider rate limited")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrTimeout             = errors.New("provider timeout")
	ErrBadResponse         = errors.New("provider returned a bad response")
	ErrContextTooLong      = errors.New("context too long")
)
