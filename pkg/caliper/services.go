package caliper

import (
	"fmt"
	"sort"
	"sync"
)

// Service describes a measurement or output service. Register hooks the
// service's handlers into the channel's dispatcher and allocates any
// per-channel state it needs.
type Service struct {
	// Name is the identifier used in CALI_SERVICES_ENABLE.
	Name string

	// Description is a one-line summary for listings.
	Description string

	// Options lists the configuration keys the service understands; the
	// channel config check accepts them.
	Options []string

	// Register attaches the service to a channel.
	Register func(*Channel) error
}

// serviceRegistry is the process-wide name → service table. Services are
// compiled in and self-register from package init functions.
type serviceRegistry struct {
	mu       sync.RWMutex
	services map[string]Service
}

var registry = &serviceRegistry{services: make(map[string]Service)}

// RegisterService adds a service to the process-wide table. Later
// registrations replace earlier ones of the same name.
func RegisterService(s Service) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.services[s.Name] = s
}

// LookupService returns the registered service of the given name.
func LookupService(name string) (Service, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	s, ok := registry.services[name]

	return s, ok
}

// AvailableServices returns the registered service names, sorted.
func AvailableServices() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.services))

	for name := range registry.services {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// registerServices attaches every service named in CALI_SERVICES_ENABLE to
// the channel.
func registerServices(c *Channel) error {
	for _, name := range c.config.GetList(KeyServicesEnable) {
		svc, ok := LookupService(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownService, name)
		}

		if err := svc.Register(c); err != nil {
			return fmt.Errorf("register service %s: %w", name, err)
		}
	}

	return nil
}

// knownChannelKeys assembles the set of configuration keys the config check
// accepts: the core keys plus every option of the enabled services.
func knownChannelKeys(c *Channel) map[string]struct{} {
	known := make(map[string]struct{}, 16)

	for _, k := range coreChannelKeys {
		known[k] = struct{}{}
	}

	for _, name := range c.config.GetList(KeyServicesEnable) {
		if svc, ok := LookupService(name); ok {
			for _, opt := range svc.Options {
				known[opt] = struct{}{}
			}
		}
	}

	return known
}
