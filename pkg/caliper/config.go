package caliper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/LLNL/caliper-go/internal/log"
)

// Environment variables read at init.
const (
	// EnvConfig holds a configuration string evaluated at init; when set,
	// a builtin channel is created with the requested configuration.
	EnvConfig = "CALI_CONFIG"

	// EnvConfigFile names an optional file of key=value lines (or a YAML
	// mapping) merged below the environment.
	EnvConfigFile = "CALI_CONFIG_FILE"

	envNodePoolSize  = "CALI_CALIPER_NODE_POOL_SIZE"
	envNodesPerBlock = "CALI_METADATA_TREE_NODES_PER_BLOCK"
	envNumBlocks     = "CALI_METADATA_TREE_NUM_BLOCKS"
)

// Config holds the runtime-level settings.
type Config struct {
	// NodePoolSize is the initial node pool size hint.
	NodePoolSize int

	// NodesPerBlock is the metadata tree block size K.
	NodesPerBlock int

	// NumBlocks is the maximum number of metadata tree blocks B.
	NumBlocks int

	// ConfigString is the CALI_CONFIG configuration string, evaluated
	// during init.
	ConfigString string
}

// defaultConfig mirrors the reference pool geometry.
func defaultConfig() Config {
	return Config{
		NodePoolSize:  100,
		NodesPerBlock: 256,
		NumBlocks:     16384,
	}
}

// LoadConfig assembles the runtime configuration: defaults, then the
// CALI_CONFIG_FILE contents, then environment variables, highest last.
func LoadConfig() Config {
	cfg := defaultConfig()

	v := viper.New()

	v.SetDefault(envNodePoolSize, cfg.NodePoolSize)
	v.SetDefault(envNodesPerBlock, cfg.NodesPerBlock)
	v.SetDefault(envNumBlocks, cfg.NumBlocks)

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := mergeConfigFile(v, path); err != nil {
			log.Error("cannot read config file", "path", path, "error", err)
		}
	}

	for _, key := range []string{EnvConfig, envNodePoolSize, envNodesPerBlock, envNumBlocks} {
		if err := v.BindEnv(key, key); err != nil {
			log.Error("cannot bind environment variable", "key", key, "error", err)
		}
	}

	cfg.NodePoolSize = v.GetInt(envNodePoolSize)
	cfg.NodesPerBlock = v.GetInt(envNodesPerBlock)
	cfg.NumBlocks = v.GetInt(envNumBlocks)
	cfg.ConfigString = v.GetString(EnvConfig)

	return cfg
}

func mergeConfigFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	default:
		// Plain KEY=VALUE lines parse as dotenv.
		v.SetConfigType("env")
	}

	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config file: %w", err)
	}

	return nil
}

// envChannelConfig collects CALI_* environment variables as a channel
// configuration overlay. Per-channel keys from the environment apply to the
// builtin channel created from CALI_CONFIG.
func envChannelConfig() map[string]string {
	overlay := make(map[string]string)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "CALI_") {
			continue
		}

		switch key {
		case EnvConfig, EnvConfigFile, log.VerbosityEnv,
			envNodePoolSize, envNodesPerBlock, envNumBlocks:
			continue
		}

		overlay[key] = value
	}

	return overlay
}
