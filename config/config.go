// Package config loads the bot configuration from defaults, an optional
// YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperr "github.com/CS-5/apalto-bot/errors"
)

const (
	DefaultEmptyMinutes = 5
	DefaultStateFile    = "data/pairs.json"
)

var snowflake = regexp.MustCompile(`^\d{17,20}$`)

// IsSnowflake reports whether id looks like a Discord id.
func IsSnowflake(id string) bool {
	return snowflake.MatchString(id)
}

// envKeys maps viper keys to the environment variables the bot has always
// been configured with.
var envKeys = map[string]string{
	"token":                "DISCORD_TOKEN",
	"client_id":            "CLIENT_ID",
	"guild_ids":            "GUILD_IDS",
	"category_id":          "TRANSMISSAO_CATEGORY_ID",
	"default_category_ids": "DEFAULT_CATEGORY_IDS",
	"staff_role_ids":       "STAFF_ROLE_IDS",
	"guest_role_ids":       "CALL_GUEST_ROLE_ID",
	"empty_minutes":        "EMPTY_MINUTES",
	"state_file":           "STATE_FILE",
	"debug_log":            "DEBUG_LOG",
}

// Config is the resolved bot configuration.
type Config struct {
	Token              string   `mapstructure:"token"`
	ClientID           string   `mapstructure:"client_id"`
	GuildIDs           []string `mapstructure:"guild_ids"`
	CategoryID         string   `mapstructure:"category_id"`
	DefaultCategoryIDs []string `mapstructure:"default_category_ids"`
	StaffRoleIDs       []string `mapstructure:"staff_role_ids"`
	GuestRoleIDs       []string `mapstructure:"guest_role_ids"`
	EmptyMinutes       int      `mapstructure:"empty_minutes"`
	StateFile          string   `mapstructure:"state_file"`
	Debug              bool     `mapstructure:"debug_log"`

	// Dropped lists configured ids that were ignored because they are not
	// snowflakes.
	Dropped []string `mapstructure:"-"`

	categoryByGuild map[string]string
	plainCategories []string
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("empty_minutes", DefaultEmptyMinutes)
	v.SetDefault("state_file", DefaultStateFile)
	v.SetDefault("debug_log", false)
}

// SetupEnv binds every key to its environment variable.
func SetupEnv(v *viper.Viper) {
	for key, env := range envKeys {
		// BindEnv only fails without arguments.
		_ = v.BindEnv(key, env)
	}
}

// LoadDotEnv loads path (".env" when empty) into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return apperr.Errorf(apperr.CodeConfigLoadReadFailure, "loading %s: %w", path, err)
	}
	slog.Debug("loaded env file", "path", path)
	return nil
}

// Load reads configuration from the given YAML path (optional) with
// environment overrides. It is a convenience for callers that do not own a
// viper instance.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperr.Errorf(apperr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and normalizes the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Errorf(apperr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Token = strings.TrimSpace(c.Token)
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.CategoryID = strings.TrimSpace(c.CategoryID)
	if c.CategoryID != "" && !IsSnowflake(c.CategoryID) {
		c.Dropped = append(c.Dropped, c.CategoryID)
		c.CategoryID = ""
	}

	c.GuildIDs = c.idList(c.GuildIDs)
	c.StaffRoleIDs = c.idList(c.StaffRoleIDs)
	c.GuestRoleIDs = c.idList(c.GuestRoleIDs)

	c.categoryByGuild = make(map[string]string)
	c.plainCategories = nil
	var kept []string
	for _, entry := range splitList(c.DefaultCategoryIDs) {
		guild, category, mapped := strings.Cut(entry, "=")
		guild, category = strings.TrimSpace(guild), strings.TrimSpace(category)
		switch {
		case mapped && IsSnowflake(guild) && IsSnowflake(category):
			c.categoryByGuild[guild] = category
		case !mapped && IsSnowflake(entry):
			c.plainCategories = append(c.plainCategories, entry)
		default:
			c.Dropped = append(c.Dropped, entry)
			continue
		}
		kept = append(kept, entry)
	}
	c.DefaultCategoryIDs = kept
}

// idList keeps the snowflakes of raw in order, without duplicates.
func (c *Config) idList(raw []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, id := range splitList(raw) {
		if !IsSnowflake(id) {
			c.Dropped = append(c.Dropped, id)
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// splitList flattens entries that still carry commas (a YAML scalar or an
// env var decoded as a single element) and trims blanks.
func splitList(raw []string) []string {
	var out []string
	for _, item := range raw {
		for part := range strings.SplitSeq(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// EmptyDuration is how long both channels of a pair must stay empty
// before the pair is deleted. Never below one minute.
func (c *Config) EmptyDuration() time.Duration {
	return time.Duration(max(1, c.EmptyMinutes)) * time.Minute
}

// CategoryCandidates returns, in priority order, the configured category
// ids to try for guildID: the fixed category, then the guild's mapped
// category or, without a mapping, the first unscoped default.
func (c *Config) CategoryCandidates(guildID string) []string {
	var out []string
	if c.CategoryID != "" {
		out = append(out, c.CategoryID)
	}
	if category, ok := c.categoryByGuild[guildID]; ok {
		out = append(out, category)
	} else if len(c.plainCategories) > 0 {
		out = append(out, c.plainCategories[0])
	}
	return out
}

// Validate checks the configuration needed to run the bot. It returns every
// problem found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if c.Token == "" {
		errs = append(errs, apperr.Errorf(apperr.CodeConfigValidateInvalidValue,
			"config: token (DISCORD_TOKEN) must not be empty"))
	}
	if c.ClientID != "" && !IsSnowflake(c.ClientID) {
		errs = append(errs, apperr.Errorf(apperr.CodeConfigValidateInvalidValue,
			"config: client_id (CLIENT_ID) must be a snowflake, got %q", c.ClientID))
	}

	return errs
}

// Warnings returns problems that do not prevent the bot from running.
func (c *Config) Warnings() []string {
	var out []string
	for _, id := range c.Dropped {
		out = append(out, fmt.Sprintf("ignoring %q: not a Discord id", id))
	}
	if c.EmptyMinutes < 1 {
		out = append(out, fmt.Sprintf("empty_minutes %d is below 1, using 1", c.EmptyMinutes))
	}
	if len(c.StaffRoleIDs) == 0 {
		out = append(out, "no staff roles configured; only members with Manage Channels can use the panel")
	}
	if c.CategoryID == "" && len(c.categoryByGuild) == 0 && len(c.plainCategories) == 0 {
		out = append(out, "no category configured; /apalto falls back to the option or the current channel's category")
	}
	return out
}

// MaskedToken returns the token with everything but its last four
// characters hidden.
func (c *Config) MaskedToken() string {
	if c.Token == "" {
		return ""
	}
	if len(c.Token) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + c.Token[len(c.Token)-4:]
}
