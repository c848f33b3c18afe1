// Package config loads and validates the JSON configuration for a cascade
// deployment. Grounded on 1ureka-roj1/internal/config/config.go (a plain
// struct, here extended with a loader and validation since that config was
// gathered from interactive CLI prompts rather than a file) and on
// jingkaihe-matchlock/cmd/matchlock's viper-binding idiom.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Exact configuration key names from spec.md §6. Kept as exported constants
// so the viper keys, the error messages and the matching environment
// variable overrides all use one spelling.
const (
	KeyVersion       = "WAN_AGENT_CONF_VERSION"
	KeyLocalSiteID   = "WAN_AGENT_CONF_LOCAL_SITE_ID"
	KeyServerSites   = "WAN_AGENT_CONF_SERVER_SITES"
	KeySenderSites   = "WAN_AGENT_CONF_SENDER_SITES"
	KeyPrivateIP     = "WAN_AGENT_CONF_PRIVATE_IP"
	KeyPrivatePort   = "WAN_AGENT_CONF_PRIVATE_PORT"
	KeyWindowSize    = "WAN_AGENT_WINDOW_SIZE"
	KeyMaxPayload    = "WAN_AGENT_MAX_PAYLOAD_SIZE"
	KeySiteEntryID   = "WAN_AGENT_CONF_SITES_ID"
	KeySiteEntryIP   = "WAN_AGENT_CONF_SITES_IP"
	KeySiteEntryPort = "WAN_AGENT_CONF_SITES_PORT"
)

// SiteEntry is one entry of server_sites or sender_sites.
type SiteEntry struct {
	ID   uint32 `mapstructure:"WAN_AGENT_CONF_SITES_ID" json:"WAN_AGENT_CONF_SITES_ID"`
	IP   string `mapstructure:"WAN_AGENT_CONF_SITES_IP" json:"WAN_AGENT_CONF_SITES_IP"`
	Port uint16 `mapstructure:"WAN_AGENT_CONF_SITES_PORT" json:"WAN_AGENT_CONF_SITES_PORT"`
}

// rawSiteEntry mirrors SiteEntry but with a pointer ID, used only to tell
// "id present and zero" apart from "id absent" — 0 is a legitimate SiteID
// elsewhere in the system (see pkg/wanagent.SiteID), so the final, decoded
// SiteEntry.ID alone can't distinguish the two.
type rawSiteEntry struct {
	ID *uint32 `mapstructure:"WAN_AGENT_CONF_SITES_ID"`
}

// Config mirrors spec.md §3's configuration record, field for field.
type Config struct {
	Version        string      `mapstructure:"WAN_AGENT_CONF_VERSION" json:"WAN_AGENT_CONF_VERSION"`
	LocalSiteID    uint32      `mapstructure:"WAN_AGENT_CONF_LOCAL_SITE_ID" json:"WAN_AGENT_CONF_LOCAL_SITE_ID"`
	PrivateIP      string      `mapstructure:"WAN_AGENT_CONF_PRIVATE_IP" json:"WAN_AGENT_CONF_PRIVATE_IP"`
	PrivatePort    uint16      `mapstructure:"WAN_AGENT_CONF_PRIVATE_PORT" json:"WAN_AGENT_CONF_PRIVATE_PORT"`
	ServerSites    []SiteEntry `mapstructure:"WAN_AGENT_CONF_SERVER_SITES" json:"WAN_AGENT_CONF_SERVER_SITES"`
	SenderSites    []SiteEntry `mapstructure:"WAN_AGENT_CONF_SENDER_SITES" json:"WAN_AGENT_CONF_SENDER_SITES"`
	WindowSize     uint64      `mapstructure:"WAN_AGENT_WINDOW_SIZE" json:"WAN_AGENT_WINDOW_SIZE"`
	MaxPayloadSize uint64      `mapstructure:"WAN_AGENT_MAX_PAYLOAD_SIZE" json:"WAN_AGENT_MAX_PAYLOAD_SIZE"`
}

// mustHave lists the keys load_config() in the original treats as
// mandatory (wan_agent_impl.hpp's `must_have` vector).
var mustHave = []string{
	KeyVersion,
	KeyLocalSiteID,
	KeyServerSites,
	KeySenderSites,
	KeyPrivateIP,
	KeyPrivatePort,
}

// Load reads a JSON config file and overlays WAN_AGENT_CONF_*-named
// environment variables on top of it (viper.AutomaticEnv — no prefix,
// because the key names are already globally unique and self-describing),
// then validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	for _, key := range mustHave {
		if !v.IsSet(key) {
			return nil, fmt.Errorf("config: %s is not found", key)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	var raw struct {
		ServerSites []rawSiteEntry `mapstructure:"WAN_AGENT_CONF_SERVER_SITES"`
		SenderSites []rawSiteEntry `mapstructure:"WAN_AGENT_CONF_SENDER_SITES"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := checkSiteIDsPresent(KeyServerSites, raw.ServerSites); err != nil {
		return nil, err
	}
	if err := checkSiteIDsPresent(KeySenderSites, raw.SenderSites); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// checkSiteIDsPresent rejects a site list where any entry omits the id
// field outright, the way a missing IP or port is already rejected by
// validateSiteEntry — see SiteEntry.ID's zero-value ambiguity above.
func checkSiteIDsPresent(listKey string, entries []rawSiteEntry) error {
	for i, e := range entries {
		if e.ID == nil {
			return fmt.Errorf("config: %s[%d].%s is not found", listKey, i, KeySiteEntryID)
		}
	}
	return nil
}

// Validate checks the invariants spec.md §3 requires of a configuration
// record: both site lists non-empty, every entry in them carrying a
// non-empty IP and a non-zero port, and a non-empty private IP and non-zero
// private port. It does not check that each entry's id was present; Load
// does that before decoding loses the information. Mirrors the original's
// "Sites do not have any
// configuration" check (implemented here, per spec.md §9, as a plain
// emptiness check rather than the original's container/int type mismatch).
func Validate(cfg *Config) error {
	if len(cfg.ServerSites) == 0 {
		return fmt.Errorf("config: %s is empty", KeyServerSites)
	}
	if len(cfg.SenderSites) == 0 {
		return fmt.Errorf("config: %s is empty", KeySenderSites)
	}

	for i, site := range cfg.ServerSites {
		if err := validateSiteEntry(KeyServerSites, i, site); err != nil {
			return err
		}
	}
	for i, site := range cfg.SenderSites {
		if err := validateSiteEntry(KeySenderSites, i, site); err != nil {
			return err
		}
	}

	if cfg.PrivateIP == "" {
		return fmt.Errorf("config: %s is not found", KeyPrivateIP)
	}
	if cfg.PrivatePort == 0 {
		return fmt.Errorf("config: %s is not found", KeyPrivatePort)
	}

	return nil
}

func validateSiteEntry(listKey string, index int, site SiteEntry) error {
	if site.IP == "" {
		return fmt.Errorf("config: %s[%d].%s is not found", listKey, index, KeySiteEntryIP)
	}
	if site.Port == 0 {
		return fmt.Errorf("config: %s[%d].%s is not found", listKey, index, KeySiteEntryPort)
	}
	return nil
}

// LocalAddr returns "ip:port" for this site, mirroring the original's
// get_local_ip_and_port() helper.
func (c *Config) LocalAddr() string {
	return fmt.Sprintf("%s:%d", c.PrivateIP, c.PrivatePort)
}
