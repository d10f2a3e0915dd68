package wallpaper

import (
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
	_ "golang.org/x/image/webp"
)

// SmartImageProcessor scales a raw download to the screen with headroom, optionally
// crops it to the screen's aspect ratio around its most interesting region, sharpens
// it and writes a JPEG next to the raw file.
type SmartImageProcessor struct {
	screen    func() (int, int)
	smartCrop func() bool
	resampler imaging.ResampleFilter
}

// NewSmartImageProcessor creates a processor. screen reports the target resolution
// and smartCrop whether content-aware cropping is enabled; both are evaluated per image.
func NewSmartImageProcessor(screen func() (int, int), smartCrop func() bool) *SmartImageProcessor {
	if smartCrop == nil {
		smartCrop = func() bool { return false }
	}
	return &SmartImageProcessor{screen: screen, smartCrop: smartCrop, resampler: imaging.Lanczos}
}

// Process decodes rawPath, transforms it and returns the path of the processed JPEG.
func (p *SmartImageProcessor) Process(ctx context.Context, rawPath string) (string, error) {
	img, err := imaging.Open(rawPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return "", fmt.Errorf("decoding image: empty bounds")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	screenW, screenH := p.screen()
	if p.smartCrop() {
		if img, err = p.cropImage(ctx, img, screenW, screenH); err != nil {
			return "", fmt.Errorf("cropping image: %w", err)
		}
	}

	targetW, targetH := scaledSize(img.Bounds().Dx(), img.Bounds().Dy(), screenW, screenH)
	img = imaging.Resize(img, targetW, targetH, p.resampler)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img = imaging.Sharpen(img, SharpenSigma)

	outPath := strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + processedSuffix + ImageExt
	if err := imaging.Save(img, outPath, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return "", fmt.Errorf("encoding image: %w", err)
	}
	return outPath, nil
}

// scaledSize returns the image size scaled so that it covers the screen times the
// headroom factor along its dominant axis while keeping the aspect ratio.
func scaledSize(imgW, imgH, screenW, screenH int) (int, int) {
	targetW := int(math.Round(float64(screenW) * ScaleHeadroom))
	targetH := int(math.Round(float64(screenH) * ScaleHeadroom))
	aspect := float64(imgW) / float64(imgH)

	if aspect >= float64(targetW)/float64(targetH) {
		h := int(float64(targetW)/aspect + 0.5)
		return targetW, max(h, 1)
	}
	w := int(float64(targetH)*aspect + 0.5)
	return max(w, 1), targetH
}

// cropImage crops img to the screen's aspect ratio around the best smartcrop region.
func (p *SmartImageProcessor) cropImage(ctx context.Context, img image.Image, screenW, screenH int) (image.Image, error) {
	analyzer := smartcrop.NewAnalyzer(&resizer{resampler: p.resampler})

	type cropResult struct {
		crop image.Rectangle
		err  error
	}
	resultChan := make(chan cropResult, 1)

	go func() {
		topCrop, err := analyzer.FindBestCrop(img, screenW, screenH)
		resultChan <- cropResult{crop: topCrop, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		if result.err != nil {
			return nil, fmt.Errorf("finding best crop: %w", result.err)
		}
		return imaging.Crop(img, result.crop), nil
	}
}

// resizer implements the smartcrop.Resizer interface.
type resizer struct {
	resampler imaging.ResampleFilter
}

// Resize scales img to the requested size.
func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.resampler)
}
