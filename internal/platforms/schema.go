package platforms

// CatalogFile is the top-level structure of a platform catalog yaml.
type CatalogFile struct {
	Platforms []PlatformSpec `yaml:"platforms"`
}

// PlatformSpec is one platform as written in the yaml file.
type PlatformSpec struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	Category        string            `yaml:"category,omitempty"`
	CheckURL        string            `yaml:"check_url"`
	Method          string            `yaml:"method,omitempty"`
	Difficulty      string            `yaml:"difficulty,omitempty"`
	RequiresAuth    bool              `yaml:"requires_auth,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Timeout         int               `yaml:"timeout,omitempty"` // seconds
	Strategy        string            `yaml:"strategy,omitempty"`
	Mitigations     []string          `yaml:"mitigations,omitempty"`
	RetryAttempts   int               `yaml:"retry_attempts,omitempty"`
	FollowRedirects *bool             `yaml:"follow_redirects,omitempty"`
	NotFoundStatus  []int             `yaml:"not_found_status,omitempty"`
	NotFoundMarkers []string          `yaml:"not_found_markers,omitempty"`
	FoundMarkers    []string          `yaml:"found_markers,omitempty"`
}
