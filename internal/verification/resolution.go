package verification

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// ResolutionProfile classifies an input image so the fusion weights can shift
// trust between visual and non-visual evidence.
type ResolutionProfile string

const (
	LowRes  ResolutionProfile = "LOW_RES"
	HighRes ResolutionProfile = "HIGH_RES"
)

// minHighResDimension is the smallest width and height an image needs before
// the vision score is trusted at full weight.
const minHighResDimension = 400

// ProbeResolution inspects the image header without decoding pixel data. An
// unreadable or missing image is conservatively treated as low resolution.
func ProbeResolution(imagePath string) ResolutionProfile {
	file, err := os.Open(imagePath)
	if err != nil {
		return LowRes
	}
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return LowRes
	}
	if cfg.Width < minHighResDimension || cfg.Height < minHighResDimension {
		return LowRes
	}
	return HighRes
}
