package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	// Config is the immutable configuration value passed into the
	// synchronizer and renderer. What gets fetched is never gated by it,
	// only what gets displayed and how the sync behaves.
	Config struct {
		Sync
		Display
		Metadata
		Backup
		Watch
	}

	Sync struct {
		CacheDir  string // MoonReader cache directory (.an / .po files)
		VaultDir  string // root of the output vault
		BooksDir  string // folder for book documents, relative to the vault
		IndexFile string // summary index document name
		BaseFile  string // generated database-view document name
		// TrackWithoutHighlights keeps (and creates) documents for books
		// that have progress but no highlights yet.
		TrackWithoutHighlights bool
	}

	Display struct {
		ShowProgress    bool
		ShowDescription bool
		ShowMetadata    bool // extended bibliographic header fields
		ShowCover       bool
		Collage         Collage
	}

	Collage struct {
		Enabled      bool
		SortByRecent bool // false = alphabetical
		MaxItems     int  // 0 = no cap
	}

	Metadata struct {
		CachePath   string
		FetchCovers bool
		CoversDir   string
	}

	Backup struct {
		LookupDir string
	}

	Watch struct {
		Schedule     string // cron format: "0 * * * *" = hourly
		StartupDelay time.Duration
		LogPath      string
		LogMaxSizeMB int
	}
)

// NewConfig builds the configuration from defaults and MOONSYNC_* env vars.
func NewConfig() Config {
	v := viper.New()
	v.SetEnvPrefix("MOONSYNC")
	v.AutomaticEnv()

	v.SetDefault("cache_dir", "")
	v.SetDefault("vault_dir", ".")
	v.SetDefault("books_dir", "Books")
	v.SetDefault("index_file", "Reading Index.md")
	v.SetDefault("base_file", "Books.base")
	v.SetDefault("track_without_highlights", false)

	v.SetDefault("show_progress", true)
	v.SetDefault("show_description", true)
	v.SetDefault("show_metadata", true)
	v.SetDefault("show_cover", true)
	v.SetDefault("collage_enabled", true)
	v.SetDefault("collage_sort_by_recent", false)
	v.SetDefault("collage_max_items", 0)

	v.SetDefault("metadata_cache_path", "moonsync-cache.json")
	v.SetDefault("fetch_covers", true)
	v.SetDefault("covers_dir", "covers")

	v.SetDefault("backup_dir", "")

	v.SetDefault("watch_schedule", "0 * * * *")
	v.SetDefault("watch_startup_delay", 10*time.Second)
	v.SetDefault("watch_log_path", "")
	v.SetDefault("watch_log_max_size_mb", 10)

	return Config{
		Sync: Sync{
			CacheDir:               v.GetString("cache_dir"),
			VaultDir:               v.GetString("vault_dir"),
			BooksDir:               v.GetString("books_dir"),
			IndexFile:              v.GetString("index_file"),
			BaseFile:               v.GetString("base_file"),
			TrackWithoutHighlights: v.GetBool("track_without_highlights"),
		},
		Display: Display{
			ShowProgress:    v.GetBool("show_progress"),
			ShowDescription: v.GetBool("show_description"),
			ShowMetadata:    v.GetBool("show_metadata"),
			ShowCover:       v.GetBool("show_cover"),
			Collage: Collage{
				Enabled:      v.GetBool("collage_enabled"),
				SortByRecent: v.GetBool("collage_sort_by_recent"),
				MaxItems:     v.GetInt("collage_max_items"),
			},
		},
		Metadata: Metadata{
			CachePath:   v.GetString("metadata_cache_path"),
			FetchCovers: v.GetBool("fetch_covers"),
			CoversDir:   v.GetString("covers_dir"),
		},
		Backup: Backup{
			LookupDir: v.GetString("backup_dir"),
		},
		Watch: Watch{
			Schedule:     v.GetString("watch_schedule"),
			StartupDelay: v.GetDuration("watch_startup_delay"),
			LogPath:      v.GetString("watch_log_path"),
			LogMaxSizeMB: v.GetInt("watch_log_max_size_mb"),
		},
	}
}
