package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Service names a file host.
type Service string

const (
	ServiceCatbox Service = "catbox"
	ServiceUguu   Service = "uguu"
	ServiceTempsh Service = "tempsh"
)

const megabyte = 1024 * 1024

// endpoint describes one host's upload form.
type endpoint struct {
	URL      string
	Field    string
	Extra    map[string]string
	MaxBytes int64
	Parse    func(body []byte) (string, error)
}

func defaultEndpoints() map[Service]endpoint {
	return map[Service]endpoint{
		ServiceCatbox: {
			URL:      "https://catbox.moe/user/api.php",
			Field:    "fileToUpload",
			Extra:    map[string]string{"reqtype": "fileupload"},
			MaxBytes: 200 * megabyte,
			Parse:    parsePlainURL,
		},
		ServiceUguu: {
			URL:      "https://uguu.se/upload",
			Field:    "files[]",
			MaxBytes: 134 * megabyte,
			Parse:    parseUguu,
		},
		ServiceTempsh: {
			URL:      "https://temp.sh/upload",
			Field:    "file",
			MaxBytes: 4096 * megabyte,
			Parse:    parsePlainURL,
		},
	}
}

// Services lists the supported hosts in display order.
func Services() []Service {
	return []Service{ServiceCatbox, ServiceUguu, ServiceTempsh}
}

// ParseService accepts a service name case-insensitively; "temp.sh" is an
// alias for tempsh.
func ParseService(name string) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "catbox", "catbox.moe":
		return ServiceCatbox, nil
	case "uguu", "uguu.se":
		return ServiceUguu, nil
	case "tempsh", "temp.sh":
		return ServiceTempsh, nil
	default:
		return "", fmt.Errorf("unknown upload service %q (want catbox, uguu or tempsh)", name)
	}
}

func parsePlainURL(body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	if !strings.HasPrefix(text, "http") {
		return "", fmt.Errorf("unexpected response %q", snippet(text))
	}
	return text, nil
}

type uguuResponse struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
	Files       []struct {
		URL string `json:"url"`
	} `json:"files"`
}

func parseUguu(body []byte) (string, error) {
	var resp uguuResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !resp.Success && resp.Description != "" {
		return "", errors.New(resp.Description)
	}
	if len(resp.Files) == 0 || !strings.HasPrefix(resp.Files[0].URL, "http") {
		return "", fmt.Errorf("unexpected response %q", snippet(string(body)))
	}
	return resp.Files[0].URL, nil
}

func snippet(s string) string {
	const limit = 120
	s = strings.TrimSpace(s)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
