package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/wlr/lib/numarray"
)

var log = commonlog.GetLogger("wlr.runtime")

// Version selects the expression API revision a host was built against.
type Version int

const (
	Version1 Version = iota
)

// LicenseType says whether the runtime may consume a license instead of
// relying on code signing.
type LicenseType int

const (
	SignedCodeModeLicense LicenseType = iota
	LicenseOrSignedCodeMode
)

// Containment restricts the filesystem and environment access that
// evaluation may perform.
type Containment int

const (
	Contained Containment = iota
	Uncontained
)

func (c Containment) String() string {
	if c == Uncontained {
		return "uncontained"
	}
	return "contained"
}

// Configuration holds start-up settings.
type Configuration struct {
	Arguments   []string
	Containment Containment

	// LicenseKey, when set in LicenseOrSignedCodeMode, turns signed code
	// mode off.
	LicenseKey string

	// StorePath opens the local expression store at start-up when set.
	StorePath string
}

// DefaultConfiguration returns a configuration with default values: no
// arguments and contained evaluation.
func DefaultConfiguration() *Configuration {
	return &Configuration{Containment: Contained}
}

// Runtime is one independent expression runtime. It is not safe for
// concurrent use except for Abort, which may be called from any goroutine.
type Runtime struct {
	ID string

	started    bool
	version    Version
	license    LicenseType
	layoutDir  string
	config     Configuration
	signedCode bool
	closeHooks []func()
	mu         sync.Mutex

	// arena
	slots    []slot
	free     []uint32
	memory   int64
	errExprs [numErrorKinds]Expr

	// pools
	root       *pool
	current    *pool
	nextPoolID uint64
	evalFloor  int

	bags map[*ExpressionBag]struct{}

	symbols *SymbolTable
	heads   *symbolHeads
	space   *SymbolSpace

	signing  signingRegistry
	handlers handlerRegistry

	abort     atomic.Bool
	evalDepth int
	steps     int
	quiet     bool
	textual   bool
	ctx       context.Context

	store  *Store
	arrays *numarray.Library
}

// New creates a runtime that has not been started yet. Every expression
// operation reports RuntimeNotStarted until Start succeeds.
func New() *Runtime {
	r := &Runtime{
		ID:        uuid.New().String(),
		evalFloor: -1,
		bags:      make(map[*ExpressionBag]struct{}),
		symbols:   NewSymbolTable(),
	}
	r.heads = newSymbolHeads(r.symbols)
	r.space = NewSymbolSpace()
	r.signing = newSigningRegistry()
	r.pinErrors()
	r.initPools()
	r.arrays = numarray.NewLibrary(r.Started)
	registerBuiltins(r)
	return r
}

// Start brings the runtime up. Starting an already started runtime fails
// with MiscellaneousError.
func (r *Runtime) Start(version Version, license LicenseType, layoutDirectory string, conf *Configuration) ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		log.Warning("runtime already started")
		return MiscellaneousError
	}
	if version != Version1 {
		log.Errorf("unsupported expression API version %d", version)
		return MiscellaneousError
	}
	if layoutDirectory != "" {
		info, err := os.Stat(layoutDirectory)
		if err != nil || !info.IsDir() {
			log.Errorf("layout directory %q is not a directory", layoutDirectory)
			return MiscellaneousError
		}
	}
	if conf == nil {
		conf = DefaultConfiguration()
	}

	r.version = version
	r.license = license
	r.layoutDir = layoutDirectory
	r.config = *conf
	r.config.Arguments = append([]string(nil), conf.Arguments...)
	r.signedCode = license == SignedCodeModeLicense || conf.LicenseKey == ""

	if conf.StorePath != "" {
		store, err := OpenStore(conf.StorePath)
		if err != nil {
			log.Errorf("opening store: %s", err)
			return MiscellaneousError
		}
		r.store = store
	}

	r.started = true
	r.abort.Store(false)
	log.Infof("runtime %s started (%s, signed code mode %t)", r.ID, r.config.Containment, r.signedCode)
	return Success
}

// Close shuts the runtime down: all pools, bags, handlers and the local
// store are released. The runtime may be started again afterwards.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}
	for _, hook := range r.closeHooks {
		hook()
	}
	r.closeHooks = nil

	for r.current != r.root {
		r.releasePool(r.current)
	}
	for idx := range r.slots {
		if !r.slots[idx].pinned {
			r.freeSlot(uint32(idx))
		}
	}
	for b := range r.bags {
		b.state = bagReleased
		b.items = nil
	}
	r.bags = make(map[*ExpressionBag]struct{})
	r.handlers.clear()
	r.space.clearValues()

	if r.store != nil {
		if err := r.store.Close(); err != nil {
			log.Warningf("closing store: %s", err)
		}
		r.store = nil
	}

	r.started = false
	log.Infof("runtime %s closed", r.ID)
}

// Started reports whether Start has succeeded and Close has not been called.
func (r *Runtime) Started() bool {
	return r.started
}

// Arguments returns the process arguments passed at start-up.
func (r *Runtime) Arguments() []string {
	return append([]string(nil), r.config.Arguments...)
}

// Containment returns the active containment setting.
func (r *Runtime) Containment() Containment {
	return r.config.Containment
}

// LayoutDirectory returns the directory given to Start.
func (r *Runtime) LayoutDirectory() string {
	return r.layoutDir
}

// SignedCodeMode reports whether external code must be signed.
func (r *Runtime) SignedCodeMode() bool {
	return r.started && r.signedCode
}

// NumericArrays returns the numeric array bridge bound to this runtime.
func (r *Runtime) NumericArrays() *numarray.Library {
	return r.arrays
}

// OnClose registers a hook that runs at the start of the next Close.
func (r *Runtime) OnClose(hook func()) {
	r.closeHooks = append(r.closeHooks, hook)
}

// Stats returns runtime statistics
func (r *Runtime) Stats() RuntimeStats {
	live := 0
	for i := range r.slots {
		if r.slots[i].live && !r.slots[i].pinned {
			live++
		}
	}
	return RuntimeStats{
		LiveExpressions: live,
		Pools:           r.PoolDepth(),
		Bags:            len(r.bags),
		Symbols:         r.symbols.Len(),
		MemoryInUse:     r.memory,
	}
}

// RuntimeStats contains runtime statistics
type RuntimeStats struct {
	LiveExpressions int
	Pools           int
	Bags            int
	Symbols         int
	MemoryInUse     int64
}

func (s RuntimeStats) String() string {
	return fmt.Sprintf("%d expressions, %d pools, %d bags, %d symbols", s.LiveExpressions, s.Pools, s.Bags, s.Symbols)
}

// ============================================================================
// Process-wide runtime
// ============================================================================

var (
	globalRuntime *Runtime
	globalMu      sync.Mutex
)

// Global returns the process-wide runtime, or nil before StartRuntime.
func Global() *Runtime {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalRuntime
}

// StartRuntime starts the process-wide runtime.
func StartRuntime(version Version, license LicenseType, layoutDirectory string, conf *Configuration) ErrorKind {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRuntime == nil {
		globalRuntime = New()
	}
	return globalRuntime.Start(version, license, layoutDirectory, conf)
}

// CloseRuntime shuts down the process-wide runtime.
func CloseRuntime() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRuntime != nil {
		globalRuntime.Close()
		globalRuntime = nil
	}
}
