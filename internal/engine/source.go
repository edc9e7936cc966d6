package engine

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

var templateClient = &http.Client{Timeout: 15 * time.Second}

// ReadTemplate loads a template from a file path or an http(s) URL
func ReadTemplate(source string) (*labelformat.Template, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return loadTemplateFromURL(source)
	}
	if _, err := os.Stat(source); err != nil {
		return nil, err
	}
	return labelformat.ParseFile(source)
}

// loadTemplateFromURL loads a template from a URL
func loadTemplateFromURL(url string) (*labelformat.Template, error) {
	resp, err := templateClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch template from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch template: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read template from URL: %w", err)
	}

	if strings.HasSuffix(url, ".yaml") || strings.HasSuffix(url, ".yml") {
		return labelformat.ParseYAML(data)
	}
	return labelformat.Parse(data)
}
