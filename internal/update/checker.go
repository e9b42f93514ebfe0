// Package update looks up newer releases on Modrinth.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultURL lists all published versions of the project.
	DefaultURL = "https://api.modrinth.com/v2/project/dockbridge/version"
	// UserAgent identifies the checker to the Modrinth API.
	UserAgent = "DockBridge-UpdateChecker"
)

var versionPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})([a-z]*)$`)

// Checker fetches the version list and compares it to the running version.
type Checker struct {
	url    string
	client *http.Client
}

// NewChecker creates a Checker. An empty url means DefaultURL.
func NewChecker(url string, timeout time.Duration) *Checker {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Check returns the newest published version if it is newer than current.
// ok is false when the running version is up to date.
func (c *Checker) Check(ctx context.Context, current string) (latest string, ok bool, err error) {
	versions, err := c.fetch(ctx)
	if err != nil {
		return "", false, err
	}

	for _, v := range versions {
		number := strings.TrimSpace(v.VersionNumber)
		if number == "" {
			continue
		}
		if latest == "" || CompareVersions(number, latest) > 0 {
			latest = number
		}
	}

	if latest != "" && CompareVersions(latest, current) > 0 {
		return latest, true, nil
	}
	return "", false, nil
}

type modrinthVersion struct {
	VersionNumber string `json:"version_number"`
}

func (c *Checker) fetch(ctx context.Context) ([]modrinthVersion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("update check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("update check returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var versions []modrinthVersion
	if err := json.Unmarshal(body, &versions); err != nil {
		return nil, fmt.Errorf("parse version list: %w", err)
	}
	return versions, nil
}

// CompareVersions orders YYYY-MM-DD[a-z]* versions: by date, then by suffix,
// where no suffix is older than any suffix. Strings that do not match the
// pattern are compared whole with an empty suffix.
func CompareVersions(left, right string) int {
	ld, ls := parseVersion(left)
	rd, rs := parseVersion(right)

	if c := strings.Compare(ld, rd); c != 0 {
		return c
	}
	switch {
	case ls == "" && rs == "":
		return 0
	case ls == "":
		return -1
	case rs == "":
		return 1
	}
	return strings.Compare(ls, rs)
}

func parseVersion(v string) (date, suffix string) {
	m := versionPattern.FindStringSubmatch(v)
	if m == nil {
		return v, ""
	}
	return m[1], strings.ToLower(m[2])
}
