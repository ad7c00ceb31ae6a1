package layout

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cffigen/internal/ctypes"
	"cffigen/internal/diag"
	"cffigen/internal/source"
	"cffigen/internal/toolchain"
)

// Engine resolves layouts by probing the target toolchain. Results are
// cached per type identity for the duration of one run; a fresh Engine is
// built per run, so layouts never leak across compiler/flag configurations.
type Engine struct {
	Types    *ctypes.Interner
	Tool     toolchain.Toolchain
	Flags    []string
	Includes []string
	Timeout  time.Duration
	Jobs     int
	KeepTmp  bool

	// CCVersion keys the persistent cache; empty disables it.
	CCVersion string
	Cache     *ProbeCache

	mu      sync.Mutex
	layouts map[ctypes.TypeID]TypeLayout
	failed  map[ctypes.TypeID]error
}

// NewEngine builds a fresh engine with an empty per-run cache.
func NewEngine(types *ctypes.Interner, tool toolchain.Toolchain) *Engine {
	return &Engine{
		Types:   types,
		Tool:    tool,
		Timeout: 10 * time.Second,
		layouts: make(map[ctypes.TypeID]TypeLayout),
		failed:  make(map[ctypes.TypeID]error),
	}
}

// ProbeTarget measures scalar widths, pointer properties and endianness.
// Any failure here is fatal: a toolchain that cannot compile the scalar
// probe cannot probe anything else either.
func (e *Engine) ProbeTarget(ctx context.Context) (Target, error) {
	src := TargetProbeSource(e.Includes)
	stdout, err := e.runProbe(ctx, src)
	if err != nil {
		return Target{}, fmt.Errorf("target probe: %w", err)
	}
	return parseTargetProbe(stdout)
}

// ResolveAll probes every listed type, running independent probes
// concurrently. Each probe uses its own workspace, so the only shared state
// is the result map behind the mutex. Failures are reported per type; a
// type whose own probe succeeded but whose by-value dependency failed is
// downgraded afterwards.
func (e *Engine) ResolveAll(ctx context.Context, ids []ctypes.TypeID, r diag.Reporter) map[ctypes.TypeID]TypeLayout {
	if r == nil {
		r = diag.NopReporter{}
	}
	jobs := e.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(ids), 1)))

	for _, id := range ids {
		id := id
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			e.probeOne(gctx, id, r)
			return nil
		})
	}
	// Probe failures are per-type diagnostics, not group errors; the only
	// group error is cancellation.
	_ = g.Wait()

	e.markDependents(r)

	out := make(map[ctypes.TypeID]TypeLayout, len(e.layouts))
	e.mu.Lock()
	for id, l := range e.layouts {
		out[id] = l
	}
	e.mu.Unlock()
	return out
}

// LayoutOf probes a single type, consulting the per-run cache first.
func (e *Engine) LayoutOf(ctx context.Context, id ctypes.TypeID) (TypeLayout, error) {
	e.mu.Lock()
	if l, ok := e.layouts[id]; ok {
		e.mu.Unlock()
		return l, nil
	}
	if err, ok := e.failed[id]; ok {
		e.mu.Unlock()
		return TypeLayout{}, err
	}
	e.mu.Unlock()

	l, err := e.probe(ctx, id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.failed[id] = err
		return TypeLayout{}, err
	}
	e.layouts[id] = l
	return l, nil
}

func (e *Engine) probeOne(ctx context.Context, id ctypes.TypeID, r diag.Reporter) {
	e.mu.Lock()
	_, done := e.layouts[id]
	_, bad := e.failed[id]
	e.mu.Unlock()
	if done || bad {
		return
	}

	l, err := e.probe(ctx, id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.failed[id] = err
		e.reportProbeError(r, id, err)
		return
	}
	e.layouts[id] = l
}

func (e *Engine) probe(ctx context.Context, id ctypes.TypeID) (TypeLayout, error) {
	src, err := TypeProbeSource(e.Types, id, e.Includes)
	if err != nil {
		return TypeLayout{}, &toolchain.CompileError{Output: err.Error()}
	}
	stdout, err := e.runProbe(ctx, src)
	if err != nil {
		return TypeLayout{}, err
	}
	l, err := parseTypeProbe(e.Types, id, stdout)
	if err != nil {
		return TypeLayout{}, &parseError{err: err}
	}
	return l, nil
}

func (e *Engine) runProbe(ctx context.Context, src string) (string, error) {
	if e.Cache != nil && e.CCVersion != "" {
		key := CacheKey(e.CCVersion, e.Flags, src)
		if stdout, ok, err := e.Cache.Get(key); err == nil && ok {
			return stdout, nil
		}
	}
	stdout, err := e.Tool.Run(ctx, toolchain.Request{
		Source:        src,
		Flags:         e.Flags,
		Timeout:       e.Timeout,
		KeepWorkspace: e.KeepTmp,
	})
	if err != nil {
		return "", err
	}
	if e.Cache != nil && e.CCVersion != "" {
		key := CacheKey(e.CCVersion, e.Flags, src)
		// Cache writes are best effort; the probe already succeeded.
		_ = e.Cache.Put(key, stdout)
	}
	return stdout, nil
}

// markDependents downgrades resolved aggregates whose by-value field type
// failed to resolve, transitively.
func (e *Engine) markDependents(r diag.Reporter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for changed := true; changed; {
		changed = false
		for id := range e.layouts {
			info, ok := e.Types.StructInfo(id)
			if !ok {
				continue
			}
			for _, f := range info.Fields {
				dep := e.valueDep(f.Type)
				if dep == ctypes.NoTypeID {
					continue
				}
				if _, bad := e.failed[dep]; bad {
					delete(e.layouts, id)
					e.failed[id] = fmt.Errorf("field %q depends on unresolved type %s", f.Name, e.Types.String(dep))
					diag.ReportError(r, diag.ProbeDepends, source.NoLoc,
						fmt.Sprintf("layout of %s depends on unresolved type %s", e.Types.String(id), e.Types.String(dep))).
						ForSymbol(e.Types.String(id)).
						Emit()
					changed = true
					break
				}
			}
		}
	}
}

// valueDep returns the aggregate/enum identity behind a by-value field
// type, unwrapping arrays.
func (e *Engine) valueDep(id ctypes.TypeID) ctypes.TypeID {
	t, ok := e.Types.Lookup(id)
	if !ok {
		return ctypes.NoTypeID
	}
	switch t.Kind {
	case ctypes.KindArray:
		return e.valueDep(t.Elem)
	case ctypes.KindStruct, ctypes.KindUnion, ctypes.KindEnum:
		return id
	default:
		return ctypes.NoTypeID
	}
}

func (e *Engine) reportProbeError(r diag.Reporter, id ctypes.TypeID, err error) {
	name := e.Types.String(id)
	code := diag.ProbeCompile
	var perr *parseError
	var xerr *toolchain.ExecError
	switch {
	case errors.Is(err, toolchain.ErrTimeout):
		code = diag.ProbeTimeout
	case errors.As(err, &xerr):
		code = diag.ProbeExec
	case errors.As(err, &perr):
		code = diag.ProbeParse
	}
	diag.ReportError(r, code, source.NoLoc, err.Error()).ForSymbol(name).Emit()
}

type parseError struct{ err error }

func (e *parseError) Error() string { return "parsing probe output: " + e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }
