package caliper

import (
	"strconv"
	"strings"
)

// Core channel configuration keys.
const (
	// KeyServicesEnable lists the services to register on the channel.
	KeyServicesEnable = "CALI_SERVICES_ENABLE"

	// KeyFlushOnExit flushes the channel when the runtime tears down.
	KeyFlushOnExit = "CALI_CHANNEL_FLUSH_ON_EXIT"

	// KeyConfigCheck errors on unknown configuration keys.
	KeyConfigCheck = "CALI_CHANNEL_CONFIG_CHECK"

	// KeyIncludeRegions and KeyExcludeRegions set the channel's region
	// filter.
	KeyIncludeRegions = "CALI_CHANNEL_INCLUDE_REGIONS"
	KeyExcludeRegions = "CALI_CHANNEL_EXCLUDE_REGIONS"
)

// coreChannelKeys are always recognized by the config check.
var coreChannelKeys = []string{
	KeyServicesEnable,
	KeyFlushOnExit,
	KeyConfigCheck,
	KeyIncludeRegions,
	KeyExcludeRegions,
}

// ChannelConfig is a channel's configuration map.
type ChannelConfig struct {
	values map[string]string
}

// NewChannelConfig returns a config holding a copy of values.
func NewChannelConfig(values map[string]string) *ChannelConfig {
	cfg := &ChannelConfig{values: make(map[string]string, len(values))}

	for k, v := range values {
		cfg.values[k] = v
	}

	return cfg
}

// Set stores a value.
func (c *ChannelConfig) Set(key, value string) {
	c.values[key] = value
}

// Get returns the value for key, or fallback when unset.
func (c *ChannelConfig) Get(key, fallback string) string {
	if v, ok := c.values[key]; ok {
		return v
	}

	return fallback
}

// GetBool parses the value for key as a boolean.
func (c *ChannelConfig) GetBool(key string, fallback bool) bool {
	v, ok := c.values[key]
	if !ok {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return b
}

// GetInt parses the value for key as an integer.
func (c *ChannelConfig) GetInt(key string, fallback int) int {
	v, ok := c.values[key]
	if !ok {
		return fallback
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return i
}

// GetList splits the value for key on commas, dropping empty elements.
func (c *ChannelConfig) GetList(key string) []string {
	v, ok := c.values[key]
	if !ok {
		return nil
	}

	var list []string

	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			list = append(list, s)
		}
	}

	return list
}

// Keys returns the configured keys.
func (c *ChannelConfig) Keys() []string {
	keys := make([]string, 0, len(c.values))

	for k := range c.values {
		keys = append(keys, k)
	}

	return keys
}
