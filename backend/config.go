package backend

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Application configuration and settings

type Config struct {
	Port           string `json:"port"`
	TempDir        string `json:"tempDir"`        // where downloads are staged before streaming
	DataDir        string `json:"dataDir"`        // state store location (history, drive config)
	YtdlpPath      string `json:"ytdlpPath"`      // yt-dlp binary, default resolved from PATH
	CookiesBrowser string `json:"cookiesBrowser"` // "firefox", "chrome", "chromium", "brave", "opera", "edge", "librewolf", ""
	ProxyURL       string `json:"proxyUrl"`
	LogLevel       string `json:"logLevel"`

	// Google OAuth2 application credentials. Client secrets never come from
	// the browser; they live in server config or environment only.
	GoogleClientID     string `json:"googleClientId"`
	GoogleClientSecret string `json:"googleClientSecret"`
	GoogleRedirectURI  string `json:"googleRedirectUri"`
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	configDir, _ := os.UserConfigDir()
	return filepath.Join(configDir, "tubedeck", "config.json")
}

// GetDefaultConfig returns the built-in defaults.
func GetDefaultConfig() *Config {
	return &Config{
		Port:              "8080",
		TempDir:           os.TempDir(),
		DataDir:           defaultDataDir(),
		YtdlpPath:         "yt-dlp",
		LogLevel:          "info",
		GoogleRedirectURI: "http://localhost:8080/auth/google/callback",
	}
}

func defaultDataDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(configDir, "tubedeck")
}

// LoadConfig loads configuration from file, falling back to defaults when
// the file does not exist.
func LoadConfig() (*Config, error) {
	data, err := os.ReadFile(GetConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return GetDefaultConfig(), nil
		}
		return nil, err
	}

	config := GetDefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigWithEnv loads the config file and applies environment variable
// overrides. Env always wins over file values.
func LoadConfigWithEnv() (*Config, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"PORT":                 &config.Port,
		"TEMP_DIR":             &config.TempDir,
		"DATA_DIR":             &config.DataDir,
		"YTDLP_PATH":           &config.YtdlpPath,
		"COOKIES_BROWSER":      &config.CookiesBrowser,
		"PROXY_URL":            &config.ProxyURL,
		"LOG_LEVEL":            &config.LogLevel,
		"GOOGLE_CLIENT_ID":     &config.GoogleClientID,
		"GOOGLE_CLIENT_SECRET": &config.GoogleClientSecret,
		"GOOGLE_REDIRECT_URI":  &config.GoogleRedirectURI,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}

	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := GetConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
