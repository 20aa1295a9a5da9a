package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// Browser cookie support for yt-dlp's --cookies-from-browser flag.

// ResolveCookiesBrowser converts a configured browser name into the value
// yt-dlp expects. Most browsers pass through unchanged; librewolf is not
// known to yt-dlp and must be addressed as firefox:<profile-path>.
func ResolveCookiesBrowser(browser string) (string, error) {
	if browser == "librewolf" {
		profilePath, err := librewolfProfilePath()
		if err != nil {
			return "", fmt.Errorf("failed to find librewolf profile: %w", err)
		}
		return fmt.Sprintf("firefox:%s", profilePath), nil
	}
	return browser, nil
}

// librewolfProfilePath finds the default Librewolf profile directory by
// reading profiles.ini, falling back to directory-name conventions.
func librewolfProfilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	librewolfDir := filepath.Join(homeDir, ".librewolf")
	profilesIni := filepath.Join(librewolfDir, "profiles.ini")

	cfg, err := ini.Load(profilesIni)
	if err == nil {
		// Install* sections carry the default profile in newer formats
		for _, section := range cfg.Sections() {
			if strings.HasPrefix(section.Name(), "Install") {
				if path := section.Key("Default").String(); path != "" {
					fullPath := filepath.Join(librewolfDir, path)
					if _, err := os.Stat(fullPath); err == nil {
						return fullPath, nil
					}
				}
			}
		}
		for _, section := range cfg.Sections() {
			if strings.HasPrefix(section.Name(), "Profile") {
				if section.Key("Default").String() == "1" {
					if path := section.Key("Path").String(); path != "" {
						fullPath := filepath.Join(librewolfDir, path)
						if _, err := os.Stat(fullPath); err == nil {
							return fullPath, nil
						}
					}
				}
			}
		}
	}

	entries, err := os.ReadDir(librewolfDir)
	if err != nil {
		return "", fmt.Errorf("librewolf directory not found: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".default-default") {
			return filepath.Join(librewolfDir, entry.Name()), nil
		}
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.Contains(entry.Name(), ".default") {
			return filepath.Join(librewolfDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("no librewolf profile found")
}
