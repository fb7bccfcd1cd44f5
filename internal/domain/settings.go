package domain

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// SiteSettingsVersion is written alongside every saved settings document.
const SiteSettingsVersion = "2.0"

// SiteSettings holds settings editable from the admin area, stored as JSON in
// the SiteConfiguration row.
type SiteSettings struct {
	Installed              bool   `json:"installed"`
	Theme                  string `json:"theme"`
	SiteName               string `json:"siteName"`
	SiteURL                string `json:"siteUrl"`
	MarkupType             string `json:"markupType"`
	AllowedFileTypes       string `json:"allowedFileTypes"`
	AllowUserSignup        bool   `json:"allowUserSignup"`
	IsRecaptchaEnabled     bool   `json:"isRecaptchaEnabled"`
	OverwriteExistingFiles bool   `json:"overwriteExistingFiles"`
	HeadContent            string `json:"headContent"`
	MenuMarkup             string `json:"menuMarkup"`
}

// DefaultSiteSettings returns the settings used before anything was saved.
func DefaultSiteSettings() *SiteSettings {
	return &SiteSettings{
		Theme:            "Responsive",
		SiteName:         "Your site name",
		SiteURL:          "http://localhost",
		MarkupType:       "Markdown",
		AllowedFileTypes: "jpg,png,gif,zip,xml,pdf",
		MenuMarkup:       "* %mainpage%\n* %categories%\n* %allpages%\n* %newpage%\n* %managefiles%\n* %sitesettings%\n",
	}
}

// AllowedFileTypesList splits AllowedFileTypes into lower-cased extensions.
func (s *SiteSettings) AllowedFileTypesList() []string {
	var types []string
	for _, part := range strings.Split(s.AllowedFileTypes, ",") {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed != "" {
			types = append(types, trimmed)
		}
	}
	return types
}

// EncodeSiteSettings converts settings into the singleton configuration row.
func EncodeSiteSettings(settings *SiteSettings) (*SiteConfiguration, error) {
	if settings == nil {
		return nil, eris.New("site settings are nil")
	}

	content, err := json.Marshal(settings)
	if err != nil {
		return nil, eris.Wrap(err, "encoding site settings")
	}

	return &SiteConfiguration{
		ID:      SiteConfigurationID,
		Version: SiteSettingsVersion,
		Content: string(content),
	}, nil
}

// DecodeSiteSettings reads settings from a configuration row. A nil row or an
// empty document yields the defaults.
func DecodeSiteSettings(row *SiteConfiguration) (*SiteSettings, error) {
	settings := DefaultSiteSettings()
	if row == nil || strings.TrimSpace(row.Content) == "" {
		return settings, nil
	}

	if err := json.Unmarshal([]byte(row.Content), settings); err != nil {
		return nil, eris.Wrap(err, "decoding site settings")
	}

	return settings, nil
}
