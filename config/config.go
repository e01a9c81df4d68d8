package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Landmark template file names, resolved under TemplateDir. The search bar
// and send button each have two visual states; both files are listed and the
// first one present wins at locate time.
const (
	TemplateToolbarChat    = "topbar_chat_message.png"
	TemplateToolbarMore    = "topbar_three_point.png"
	TemplateToolbarPin     = "topbar_pin.png"
	TemplateSearchBar      = "search_bar.png"
	TemplateSearchBarOpen  = "search_bar_ing.png"
	TemplateAvatar         = "profile_photo.png"
	TemplateStickerIcon    = "toolbar_sticker.png"
	TemplateSaveIcon       = "toolbar_save.png"
	TemplateFileIcon       = "toolbar_file.png"
	TemplateScreencapIcon  = "toolbar_screencap.png"
	TemplateTapeIcon       = "toolbar_tape.png"
	TemplateVoiceCallIcon  = "toolbar_voice_call.png"
	TemplateVideoCallIcon  = "toolbar_video_call.png"
	TemplateSendButton     = "send_button.png"
	TemplateSendButtonIdle = "send_button_default.png"
)

type Config struct {
	APIKey            string
	Model             string
	Providers         []string
	EnableFileLogging bool

	WindowTitle   string
	TemplateDir   string
	ContactsFile  string
	StateFile     string
	MatchThreshold float64
	HashThreshold  int
	MinWindowW    int
	MinWindowH    int
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or executable directory
	envPaths := []string{".env"}
	if execPath, err := os.Executable(); err == nil {
		envPaths = append(envPaths, filepath.Join(filepath.Dir(execPath), ".env"))
	}
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			godotenv.Load(envPath)
			break
		}
	}

	var providers []string
	if providersStr := os.Getenv("PROVIDERS"); providersStr != "" {
		for _, provider := range strings.Split(providersStr, ",") {
			if trimmed := strings.TrimSpace(provider); trimmed != "" {
				providers = append(providers, trimmed)
			}
		}
	}

	cfg := &Config{
		APIKey:            os.Getenv("OPENROUTER_API_KEY"),
		Model:             os.Getenv("MODEL"),
		Providers:         providers,
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		WindowTitle:       getEnvWithDefault("CHAT_WINDOW_TITLE", "WeChat"),
		TemplateDir:       getEnvWithDefault("TEMPLATE_DIR", "templates"),
		ContactsFile:      getEnvWithDefault("CONTACTS_FILE", "contacts.yaml"),
		StateFile:         getEnvWithDefault("STATE_FILE", "channel_state.json"),
		MatchThreshold:    getEnvFloat("MATCH_THRESHOLD", 0.7),
		HashThreshold:     getEnvInt("HASH_THRESHOLD", 8),
		MinWindowW:        getEnvInt("MIN_WINDOW_WIDTH", 800),
		MinWindowH:        getEnvInt("MIN_WINDOW_HEIGHT", 600),
	}
	return cfg, nil
}

// TemplatePath resolves a template file name under the template directory.
func (c *Config) TemplatePath(name string) string {
	return filepath.Join(c.TemplateDir, name)
}

// ContactAvatarPath returns the avatar template for a specific contact,
// preferring the id-based file over the name-based one. Empty when neither
// exists.
func (c *Config) ContactAvatarPath(contactName, contactID string) string {
	candidates := []string{}
	if contactID != "" {
		candidates = append(candidates, filepath.Join(c.TemplateDir, "avatars", contactID+".png"))
	}
	if contactName != "" {
		candidates = append(candidates, filepath.Join(c.TemplateDir, "avatars", contactName+".png"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks that the assets a locate pass cannot run without are
// present. Missing optional templates (pin icon, per-contact avatars) are
// not errors; their landmarks simply come back absent.
func (c *Config) Validate() error {
	if _, err := os.Stat(c.TemplateDir); err != nil {
		return fmt.Errorf("template directory %s not accessible: %v", c.TemplateDir, err)
	}
	required := []string{TemplateStickerIcon, TemplateSendButton, TemplateAvatar}
	for _, name := range required {
		p := c.TemplatePath(name)
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("required template missing: %s", p)
		}
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be in (0, 1], got %v", c.MatchThreshold)
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
