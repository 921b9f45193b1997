package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"chorale/internal/llm"
	"chorale/internal/logging"
)

// ImageSaver writes generated images to the output directory with
// timestamped filenames.
type ImageSaver struct {
	dir    string
	client *http.Client
}

// NewImageSaver creates a saver writing into dir.
func NewImageSaver(dir string) *ImageSaver {
	return &ImageSaver{
		dir:    dir,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Save persists a generated image and returns its path. Remote URLs are
// downloaded; inline base64 payloads are decoded.
func (s *ImageSaver) Save(ctx context.Context, img *llm.GeneratedImage) (string, error) {
	if img == nil || (img.URL == "" && img.B64Data == "") {
		return "", fmt.Errorf("no image data to save")
	}

	var data []byte
	var err error
	if img.URL != "" {
		data, err = s.download(ctx, img.URL)
	} else {
		data, err = base64.StdEncoding.DecodeString(img.B64Data)
	}
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("chorale_%d.png", time.Now().Unix()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	logging.Tools("image saved: %s (%d bytes)", path, len(data))
	return path, nil
}

func (s *ImageSaver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
