package caliper

import (
	"sync"
	"sync/atomic"

	"github.com/LLNL/caliper-go/internal/log"
	"github.com/LLNL/caliper-go/internal/sigsafe"
	"github.com/LLNL/caliper-go/pkg/variant"
)

var (
	instMu   sync.Mutex
	instance atomic.Pointer[Runtime]
)

// Instance returns the process-wide runtime, initializing it on first use.
// Initialization runs in two phases: the runtime is allocated first, then
// the CALI_CONFIG channel and its services come up; the singleton pointer
// publishes only after both. Samplers must use TryInstance instead.
func Instance() *Runtime {
	if rt := instance.Load(); rt != nil {
		return rt
	}

	instMu.Lock()
	defer instMu.Unlock()

	if rt := instance.Load(); rt != nil {
		return rt
	}

	cfg := LoadConfig()

	rt, err := NewRuntime(cfg)
	if err != nil {
		log.Error("runtime initialization failed", "error", err)
		return nil
	}

	if cfg.ConfigString != "" {
		cm := NewConfigManager(rt)

		if err := cm.Add(cfg.ConfigString); err != nil {
			log.Error("CALI_CONFIG rejected", "config", cfg.ConfigString, "error", err)
		} else if err := cm.StartAll(); err != nil {
			log.Error("cannot start configured channels", "error", err)
		}
	}

	instance.Store(rt)

	log.Info("initialized", "version", Version, "run.id", rt.RunID())

	return rt
}

// TryInstance returns the runtime, or nil while initialization is in
// flight or not yet begun. It never blocks and is safe from samplers.
func TryInstance() *Runtime {
	return instance.Load()
}

// Release tears down the process-wide runtime. A subsequent Instance call
// initializes a fresh one.
func Release() {
	instMu.Lock()
	defer instMu.Unlock()

	if rt := instance.Swap(nil); rt != nil {
		rt.Release()
	}
}

// regionAttrName is the default annotation attribute behind the package-
// level region API.
const regionAttrName = "annotation"

func defaultRegionAttr(rt *Runtime) Attribute {
	rt.regionOnce.Do(func() {
		attr, err := rt.CreateAttribute(regionAttrName, variant.String, PropNested)
		if err != nil {
			log.Error("cannot create annotation attribute", "error", err)
			return
		}

		rt.regionAttr = attr
	})

	return rt.regionAttr
}

// BeginRegion marks the start of a named region on the calling thread.
func BeginRegion(name string) error {
	rt := Instance()
	if rt == nil {
		return ErrInvalidAttribute
	}

	return rt.Begin(defaultRegionAttr(rt), variant.NewString(name))
}

// EndRegion marks the end of the innermost region.
func EndRegion() error {
	rt := Instance()
	if rt == nil {
		return ErrInvalidAttribute
	}

	return rt.End(defaultRegionAttr(rt))
}

// EnterSampler marks the calling goroutine as an asynchronous sampler until
// the returned function runs. Code inside must use the runtime's Try
// entry points only.
func EnterSampler() func() {
	sigsafe.EnterSampler()

	return sigsafe.LeaveSampler
}
