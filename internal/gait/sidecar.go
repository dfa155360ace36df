package gait

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// SidecarSuffix is appended to an image path to locate its landmark file.
const SidecarSuffix = ".landmarks.json"

// SidecarBackend reads landmarks from a JSON file written next to the image
// by an external pose-estimation tool. A missing sidecar means no pose was
// detected for that image.
type SidecarBackend struct{}

type sidecarLandmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Landmarks loads <imagePath>.landmarks.json and converts its entries.
func (SidecarBackend) Landmarks(_ context.Context, imagePath string) ([]Landmark, error) {
	data, err := os.ReadFile(imagePath + SidecarSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no landmark sidecar for %s", imagePath)
		}
		return nil, fmt.Errorf("read landmark sidecar: %w", err)
	}
	var raw []sidecarLandmark
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse landmark sidecar: %w", err)
	}
	landmarks := make([]Landmark, 0, len(raw))
	for _, lm := range raw {
		landmarks = append(landmarks, Landmark{X: lm.X, Y: lm.Y, Z: lm.Z})
	}
	return landmarks, nil
}
