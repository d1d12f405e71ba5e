package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultVideoWidth and DefaultVideoHeight render Full HD output.
	DefaultVideoWidth  = 1920
	DefaultVideoHeight = 1080
	// DefaultVideoSeconds is used when the request omits the duration.
	DefaultVideoSeconds = 10
	// DefaultVideoVariants is the number of renditions requested per job.
	DefaultVideoVariants = 1
	// DefaultVideoModel names the deployment used for synthesis.
	DefaultVideoModel = "sora"

	// DefaultEditSize is the output size of edited images.
	DefaultEditSize = "1024x1024"
	// DefaultEditQuality is the rendering quality of edited images.
	DefaultEditQuality = "high"
)

// NormalizePrompt collapses line breaks and runs of whitespace and applies
// NFC so equivalent prompts are sent byte-identical.
func NormalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(norm.NFC.String(prompt)), " ")
}

// Normalize fills server defaults. It returns a copy; the receiver is not
// modified.
func (r VideoRequest) Normalize() VideoRequest {
	r.Prompt = NormalizePrompt(r.Prompt)
	if r.Width == 0 {
		r.Width = DefaultVideoWidth
	}
	if r.Height == 0 {
		r.Height = DefaultVideoHeight
	}
	if r.Seconds == 0 {
		r.Seconds = DefaultVideoSeconds
	}
	if r.Variants == 0 {
		r.Variants = DefaultVideoVariants
	}
	if strings.TrimSpace(r.Model) == "" {
		r.Model = DefaultVideoModel
	}
	return r
}

// Validate checks the request before it is submitted.
func (r VideoRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("resolution must not be negative, got %dx%d", r.Width, r.Height)
	}
	if r.Seconds < 0 {
		return fmt.Errorf("seconds must not be negative, got %d", r.Seconds)
	}
	if r.Variants < 0 {
		return fmt.Errorf("variants must not be negative, got %d", r.Variants)
	}
	return nil
}

// Normalize fills server defaults and copies the image slices so later
// changes by the caller do not leak into a submitted request.
func (r EditRequest) Normalize() EditRequest {
	r.Prompt = NormalizePrompt(r.Prompt)
	if strings.TrimSpace(r.Size) == "" {
		r.Size = DefaultEditSize
	}
	if strings.TrimSpace(r.Quality) == "" {
		r.Quality = DefaultEditQuality
	}
	images := make([][]byte, len(r.Images))
	for i, img := range r.Images {
		images[i] = append([]byte(nil), img...)
	}
	r.Images = images
	if len(r.Mask) > 0 {
		r.Mask = append([]byte(nil), r.Mask...)
	}
	return r
}

// Validate checks the request before it is sent.
func (r EditRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(r.Images) == 0 {
		return fmt.Errorf("at least one image is required")
	}
	for i, img := range r.Images {
		if len(img) == 0 {
			return fmt.Errorf("image %d is empty", i)
		}
	}
	return nil
}
