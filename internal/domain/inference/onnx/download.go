package onnx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
)

// ensureModel makes sure path exists, fetching it from urlTemplate (with %s
// replaced by the model file name) when it does not.
func (f *Factory) ensureModel(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if f.cfg.DownloadURL == "" {
		return fmt.Errorf("model file %s not found and no download url configured", path)
	}

	name := filepath.Base(path)
	url := f.cfg.DownloadURL
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, name)
	} else {
		url = strings.TrimRight(url, "/") + "/" + name
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}

	f.logger.InfoTag(logTag, "downloading model %s from %s", name, url)
	tmp := path + ".part"
	resp, err := f.client.R().
		SetContext(ctx).
		SetOutput(tmp).
		Get(url)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("download model %s: %w", name, err)
	}
	if resp.IsError() {
		_ = os.Remove(tmp)
		return fmt.Errorf("download model %s: unexpected status %d", name, resp.StatusCode())
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install model %s: %w", name, err)
	}
	f.logger.InfoTag(logTag, "model %s downloaded to %s", name, path)
	return nil
}

func newHTTPClient(cfg Config) *resty.Client {
	client := resty.New().
		SetRetryCount(2).
		SetHeader("User-Agent", "pose-stream-server")
	if cfg.DownloadTimeout > 0 {
		client.SetTimeout(cfg.DownloadTimeout)
	}
	return client
}
