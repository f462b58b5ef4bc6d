package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourcesConfig describes the three upstream sources. It can be overlaid
// from a YAML file named by SOURCES_CONFIG; environment variables still win.
type SourcesConfig struct {
	Feed    FeedSource    `yaml:"feed"`
	Listing ListingSource `yaml:"listing"`
	Portal  PortalSource  `yaml:"portal"`
}

type FeedSource struct {
	URL     string `yaml:"url"`
	Charset string `yaml:"charset"`
}

// ListingSource configures the declarations search form. Zero Year and
// Month mean "previous and current month".
type ListingSource struct {
	URL     string `yaml:"url"`
	Region  string `yaml:"region"`
	Year    int    `yaml:"year"`
	Month   int    `yaml:"month"`
	Search  string `yaml:"search"`
	Charset string `yaml:"charset"`
}

// PortalSource configures the login-gated portal. Credentials are never
// read from the file.
type PortalSource struct {
	LoginURL  string     `yaml:"login_url"`
	SearchURL string     `yaml:"search_url"`
	Charset   string     `yaml:"charset"`
	Form      PortalForm `yaml:"form"`
	Login     string     `yaml:"-"`
	Password  string     `yaml:"-"`
}

// PortalForm names the login form fields.
type PortalForm struct {
	LoginField    string `yaml:"login_field"`
	PasswordField string `yaml:"password_field"`
	DigestField   string `yaml:"digest_field"`
}

// Enabled reports whether both portal URLs are configured.
func (p PortalSource) Enabled() bool {
	return p.LoginURL != "" && p.SearchURL != ""
}

// DefaultSources returns the production endpoints. The portal has no
// default endpoints and stays disabled until configured.
func DefaultSources() SourcesConfig {
	return SourcesConfig{
		Feed: FeedSource{
			URL:     "http://www.zhilstroj-2.ua/rss/",
			Charset: "windows-1251",
		},
		Listing: ListingSource{
			URL:    "http://91.205.16.115/declarate/list.php?sort=num&order=DESC",
			Region: "99",
			Search: "Житлобуд-2",
		},
	}
}

// LoadSourcesFile overlays the YAML file at path onto base. Keys missing
// from the file keep their base values.
func LoadSourcesFile(path string, base SourcesConfig) (SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read sources file: %w", err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("failed to parse YAML: %w", err)
	}
	// Credentials come from the environment only.
	cfg.Portal.Login = base.Portal.Login
	cfg.Portal.Password = base.Portal.Password
	return cfg, nil
}
