package platforms

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

//go:embed default_platforms.yaml
var defaultCatalog []byte

var envVarPattern = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)

// Loader reads a platform catalog from disk, or the embedded default
// catalog when no path is set.
type Loader struct {
	filePath  string
	expandEnv bool
}

// NewLoader creates a catalog loader. With expandEnv, ${VAR} references
// are replaced by the environment value before parsing.
func NewLoader(filePath string, expandEnv bool) *Loader {
	return &Loader{
		filePath:  filePath,
		expandEnv: expandEnv,
	}
}

// Source describes where the catalog comes from.
func (l *Loader) Source() string {
	if l.filePath == "" {
		return "embedded"
	}
	return l.filePath
}

// Load reads, parses and maps the catalog.
func (l *Loader) Load() ([]Platform, error) {
	data := defaultCatalog
	if l.filePath != "" {
		raw, err := os.ReadFile(l.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read platform file: %w", err)
		}
		data = raw
	}

	if l.expandEnv {
		data = expandEnvVariables(data)
	}

	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse platform yaml: %w", err)
	}

	return MapPlatforms(file)
}

// expandEnvVariables replaces ${NAME} with the environment value.
// Unset variables become empty strings.
func expandEnvVariables(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// MapPlatforms validates specs and converts them to catalog entries.
// Entries without id or check_url are skipped.
func MapPlatforms(file CatalogFile) ([]Platform, error) {
	out := make([]Platform, 0, len(file.Platforms))
	for _, s := range file.Platforms {
		id := strings.TrimSpace(s.ID)
		if id == "" || s.CheckURL == "" {
			continue
		}

		p := Platform{
			ID:              id,
			Name:            s.Name,
			Category:        s.Category,
			CheckURL:        s.CheckURL,
			Method:          parseMethod(s.Method),
			Difficulty:      domain.ParseDifficulty(s.Difficulty),
			RequiresAuth:    s.RequiresAuth,
			Headers:         dropEmpty(s.Headers),
			Timeout:         time.Duration(s.Timeout) * time.Second,
			Strategy:        s.Strategy,
			Mitigations:     s.Mitigations,
			RetryAttempts:   s.RetryAttempts,
			FollowRedirects: true,
			NotFoundStatus:  s.NotFoundStatus,
			NotFoundMarkers: s.NotFoundMarkers,
			FoundMarkers:    s.FoundMarkers,
		}
		if p.Name == "" {
			p.Name = id
		}
		if p.Strategy == "" {
			p.Strategy = StrategyHTTPAdvanced
		}
		if s.FollowRedirects != nil {
			p.FollowRedirects = *s.FollowRedirects
		}
		if len(p.NotFoundStatus) == 0 {
			p.NotFoundStatus = []int{404}
		}

		out = append(out, p)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid platforms found in catalog")
	}

	return out, nil
}

func parseMethod(s string) domain.Method {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "api":
		return domain.MethodAPI
	case "browser":
		return domain.MethodBrowser
	default:
		return domain.MethodHTTP
	}
}

// dropEmpty removes headers whose value expanded to nothing, so a missing
// API key does not send an empty credential.
func dropEmpty(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if strings.TrimSpace(v) == "" || strings.TrimSpace(strings.TrimPrefix(v, "Bearer")) == "" {
			continue
		}
		out[k] = v
	}
	return out
}
