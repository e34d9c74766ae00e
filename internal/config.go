package internal

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config holds application settings.
type Config struct {
	// User configurable settings
	Model           string
	TranscriptsDir  string
	AnalysisDir     string
	WindowSize      int
	Overlap         int
	BridgeGaps      bool
	GenerateTimeout time.Duration
	WhisperTimeout  time.Duration
	FallbackWhisper bool
	SegmentPrompt   string
	Verbose         bool
	Quiet           bool
	OpenAIAPIKey    string

	// Fixed XDG paths (not configurable)
	ConfigDir string
	DataDir   string
	CacheDir  string
	TempDir   string
}

//go:embed config.toml segment_prompt.txt
var defaultFS embed.FS

// WhisperLimit is the maximum file size accepted by OpenAI's Whisper API (25 MiB)
const WhisperLimit int64 = 25 << 20

// ensureDefaultFile creates a file from the embedded default if it is
// missing from the config directory.
func ensureDefaultFile(configDir, embedFilename, description string) error {
	filePath := filepath.Join(configDir, embedFilename)
	if FileExists(filePath) {
		return nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultContent, err := defaultFS.ReadFile(embedFilename)
	if err != nil {
		return fmt.Errorf("reading embedded default %s: %w", description, err)
	}

	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return fmt.Errorf("writing default %s: %w", description, err)
	}

	fmt.Printf("Created default %s at %s\n", description, filePath)
	return nil
}

// EnsureDefaultConfig materializes the default config.toml on first run.
func EnsureDefaultConfig(configDir string) error {
	return ensureDefaultFile(configDir, "config.toml", "configuration")
}

// EnsureDefaultPrompt materializes the default segmentation prompt template.
func EnsureDefaultPrompt(configDir string) error {
	return ensureDefaultFile(configDir, "segment_prompt.txt", "segmentation prompt template")
}

// InitConfig initializes Viper and loads configuration.
func InitConfig() *Config {
	// XDG standard directories
	configDir := filepath.Join(xdg.ConfigHome, "topical")
	dataDir := filepath.Join(xdg.DataHome, "topical")
	cacheDir := filepath.Join(xdg.CacheHome, "topical")

	transcriptsDir := filepath.Join(dataDir, "transcripts")
	analysisDir := filepath.Join(dataDir, "analysis")
	tempDir := filepath.Join(cacheDir, "temp_chunks")

	v := viper.New()

	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("transcripts_dir", transcriptsDir)
	v.SetDefault("analysis_dir", analysisDir)
	v.SetDefault("window_size", 4000)
	v.SetDefault("overlap", 800)
	v.SetDefault("bridge_gaps", false)
	v.SetDefault("generate_timeout", 2*time.Minute)
	v.SetDefault("whisper_timeout", 10*time.Minute)
	v.SetDefault("fallback_whisper", false)
	v.SetDefault("segment_prompt", "") // if empty the default template is used
	v.SetDefault("verbose", false)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetEnvPrefix("TOPICAL")
	v.AutomaticEnv()

	// Special case for OpenAI API Key - check both Viper and direct env var
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	config := &Config{
		Model:           v.GetString("model"),
		TranscriptsDir:  v.GetString("transcripts_dir"),
		AnalysisDir:     v.GetString("analysis_dir"),
		WindowSize:      v.GetInt("window_size"),
		Overlap:         v.GetInt("overlap"),
		BridgeGaps:      v.GetBool("bridge_gaps"),
		GenerateTimeout: v.GetDuration("generate_timeout"),
		WhisperTimeout:  v.GetDuration("whisper_timeout"),
		FallbackWhisper: v.GetBool("fallback_whisper"),
		SegmentPrompt:   v.GetString("segment_prompt"),
		Verbose:         v.GetBool("verbose"),
		OpenAIAPIKey:    v.GetString("openai_api_key"),

		ConfigDir: configDir,
		DataDir:   dataDir,
		CacheDir:  cacheDir,
		TempDir:   tempDir,
	}

	if config.Verbose {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	return config
}
