package caliper

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ControllerSpec describes a named channel preset: a base configuration plus
// the arguments a configuration string may override.
type ControllerSpec struct {
	// Name is the spelling used in configuration strings.
	Name string

	// Description is a one-line summary for listings.
	Description string

	// Config is the preset channel configuration.
	Config map[string]string

	// Args maps argument names to the configuration keys they set.
	Args map[string]string
}

var (
	controllerMu    sync.RWMutex
	controllerTable = make(map[string]ControllerSpec)
)

// RegisterController adds a controller preset to the process-wide table.
func RegisterController(spec ControllerSpec) {
	controllerMu.Lock()
	defer controllerMu.Unlock()

	controllerTable[spec.Name] = spec
}

// LookupController returns the controller preset of the given name.
func LookupController(name string) (ControllerSpec, bool) {
	controllerMu.RLock()
	defer controllerMu.RUnlock()

	spec, ok := controllerTable[name]

	return spec, ok
}

// AvailableControllers returns the registered preset names, sorted.
func AvailableControllers() []string {
	controllerMu.RLock()
	defer controllerMu.RUnlock()

	names := make([]string, 0, len(controllerTable))

	for name := range controllerTable {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func init() {
	RegisterController(ControllerSpec{
		Name:        "runtime-report",
		Description: "Print a time report for annotated regions",
		Config: map[string]string{
			KeyServicesEnable: "report",
			KeyFlushOnExit:    "true",
		},
		Args: map[string]string{
			"output":          "CALI_REPORT_FILENAME",
			"include_regions": KeyIncludeRegions,
			"exclude_regions": KeyExcludeRegions,
		},
	})

	RegisterController(ControllerSpec{
		Name:        "event-trace",
		Description: "Record a trace of region begin/end events",
		Config: map[string]string{
			KeyServicesEnable: "event,timestamp,trace,recorder",
			KeyFlushOnExit:    "true",
		},
		Args: map[string]string{
			"output":          "CALI_RECORDER_FILENAME",
			"compress":        "CALI_RECORDER_COMPRESS",
			"include_regions": KeyIncludeRegions,
			"exclude_regions": KeyExcludeRegions,
		},
	})
}

// ChannelController owns one configured channel: it creates the channel
// lazily, gates its activation, and flushes it on demand.
type ChannelController struct {
	name   string
	rt     *Runtime
	config map[string]string

	mu      sync.Mutex
	channel *Channel
}

// NewChannelController returns a controller creating a channel with the
// given configuration on rt.
func NewChannelController(rt *Runtime, name string, config map[string]string) *ChannelController {
	cfg := make(map[string]string, len(config))

	for k, v := range config {
		cfg[k] = v
	}

	return &ChannelController{name: name, rt: rt, config: cfg}
}

// Name returns the controller's channel name.
func (cc *ChannelController) Name() string {
	return cc.name
}

// Config returns the controller's configuration map. Mutations before the
// first Start apply to the channel.
func (cc *ChannelController) Config() map[string]string {
	return cc.config
}

// Channel returns the controller's channel, or nil before the first Start.
func (cc *ChannelController) Channel() *Channel {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	return cc.channel
}

// Create builds the channel if it does not exist yet. Environment CALI_*
// settings overlay the preset configuration.
func (cc *ChannelController) Create() (*Channel, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	return cc.create()
}

func (cc *ChannelController) create() (*Channel, error) {
	if cc.channel != nil {
		return cc.channel, nil
	}

	merged := make(map[string]string, len(cc.config)+4)

	for k, v := range cc.config {
		merged[k] = v
	}

	for k, v := range envChannelConfig() {
		merged[k] = v
	}

	c, err := cc.rt.CreateChannel(cc.name, merged)
	if err != nil {
		return nil, fmt.Errorf("create channel %s: %w", cc.name, err)
	}

	cc.channel = c

	return c, nil
}

// Start creates the channel on first use and activates it.
func (cc *ChannelController) Start() error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	c, err := cc.create()
	if err != nil {
		return err
	}

	cc.rt.ActivateChannel(c)

	return nil
}

// Stop deactivates the channel.
func (cc *ChannelController) Stop() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.channel != nil {
		cc.rt.DeactivateChannel(cc.channel)
	}
}

// IsActive reports whether the channel exists and reacts to events.
func (cc *ChannelController) IsActive() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	return cc.channel != nil && cc.channel.IsActive()
}

// Flush writes out the channel's retained records.
func (cc *ChannelController) Flush() {
	cc.mu.Lock()
	c := cc.channel
	cc.mu.Unlock()

	if c != nil {
		cc.rt.FlushAndWrite(c)
	}
}

// Delete destroys the channel.
func (cc *ChannelController) Delete() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.channel != nil {
		cc.rt.DeleteChannel(cc.channel)
		cc.channel = nil
	}
}

// ConfigManager turns configuration strings into channel controllers using
// the controller presets.
type ConfigManager struct {
	rt            *Runtime
	defaultParams map[string]string
	controllers   []*ChannelController
}

// NewConfigManager returns a manager creating channels on rt.
func NewConfigManager(rt *Runtime) *ConfigManager {
	return &ConfigManager{rt: rt, defaultParams: make(map[string]string)}
}

// SetDefaultParameter presets an argument applied to every config that
// declares it.
func (cm *ConfigManager) SetDefaultParameter(key, value string) {
	cm.defaultParams[key] = value
}

// Add parses a configuration string and builds one controller per element.
// Unknown config or argument names are reported with the offending token
// and its position.
func (cm *ConfigManager) Add(configString string) error {
	specs, err := ParseConfigString(configString)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		ctrl, ok := LookupController(spec.Name)
		if !ok {
			return fmt.Errorf("%w: %q at position %d", ErrUnknownConfig, spec.Name, spec.NamePos)
		}

		config := make(map[string]string, len(ctrl.Config)+len(spec.Args))

		for k, v := range ctrl.Config {
			config[k] = v
		}

		for arg, value := range cm.defaultParams {
			if key, ok := ctrl.Args[arg]; ok {
				config[key] = value
			}
		}

		for arg, value := range spec.Args {
			key, ok := ctrl.Args[arg]
			if !ok {
				return fmt.Errorf("%w: %q at position %d", ErrUnknownArgument, arg, spec.ArgPos[arg])
			}

			config[key] = value
		}

		cm.controllers = append(cm.controllers, NewChannelController(cm.rt, spec.Name, config))
	}

	return nil
}

// Controllers returns the controllers built so far.
func (cm *ConfigManager) Controllers() []*ChannelController {
	return cm.controllers
}

// StartAll starts every controller.
func (cm *ConfigManager) StartAll() error {
	for _, cc := range cm.controllers {
		if err := cc.Start(); err != nil {
			return err
		}
	}

	return nil
}

// FlushAll flushes every controller.
func (cm *ConfigManager) FlushAll() {
	for _, cc := range cm.controllers {
		cc.Flush()
	}
}

// profileFile is the YAML schema for custom controller presets.
type profileFile struct {
	Profiles []struct {
		Name        string            `yaml:"name"`
		Description string            `yaml:"description"`
		Config      map[string]string `yaml:"config"`
		Args        map[string]string `yaml:"args"`
	} `yaml:"profiles"`
}

// LoadProfiles reads custom controller presets from a YAML document and
// registers them alongside the builtin ones.
func LoadProfiles(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}

	var file profileFile

	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse profiles: %w", err)
	}

	for _, p := range file.Profiles {
		if p.Name == "" {
			return fmt.Errorf("%w: profile without name", ErrUnknownConfig)
		}

		RegisterController(ControllerSpec{
			Name:        p.Name,
			Description: p.Description,
			Config:      p.Config,
			Args:        p.Args,
		})
	}

	return nil
}
