package common

import "regexp"

const (
	MaxDecimals = 9

	MinNameLen = 2
	MaxNameLen = 32

	MaxImageSize = 5 * 1024 * 1024
)

var (
	symbolRe        = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)
	supplyRe        = regexp.MustCompile(`^-?[0-9]+$`)
	nameForbiddenRe = regexp.MustCompile(`[<>"/\\|?*\x00-\x1F]`)

	AllowedImageTypes = map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/gif":  true,
		"image/webp": true,
	}
)
