// Package resolver implements the fixed-point dependency/conflict/compat
// solver (C6): it takes a user request set and an evaluation environment
// and produces a topologically ordered Install Plan.
package resolver

import (
	"context"
	"fmt"

	"github.com/mcvm-launcher/mcvm-sub000/internal/contentstore"
	"github.com/mcvm-launcher/mcvm-sub000/internal/declarative"
	"github.com/mcvm-launcher/mcvm-sub000/internal/eval"
	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
	"github.com/mcvm-launcher/mcvm-sub000/internal/repoindex"
	"github.com/mcvm-launcher/mcvm-sub000/internal/script"
)

// Plan is the resolver's output (§3 Install Plan): a topologically ordered
// list of evaluated packages, deduped user-visible notices, and the set of
// recommended-but-not-installed ids.
type Plan struct {
	Packages        []*pkgid.EvaluatedPackage
	Notices         []string
	Recommendations []pkgid.Recommendation
}

// Resolver owns the repository index and the optional evaluation cache; the
// host-supplied version domain arrives with the base environment passed to
// Resolve.
type Resolver struct {
	Index *repoindex.Index

	// Store, when set, caches evaluation results keyed on source bytes +
	// environment + reconciled request so a repeated resolve over an
	// unchanged package skips re-running the script/declarative evaluator
	// (§4.7). A nil Store disables evaluation caching entirely.
	Store *contentstore.Store
}

func New(index *repoindex.Index) *Resolver {
	return &Resolver{Index: index}
}

// WithStore attaches a content store for evaluation caching and returns r
// for chaining.
func (r *Resolver) WithStore(s *contentstore.Store) *Resolver {
	r.Store = s
	return r
}

// state is the resolver's working set for one Resolve call: the selected
// packages, the FIFO queue, the reconciled requests and their signatures,
// and the edge tables used for the final checks and ordering. (The base
// environment is not part of it; Resolve augments a copy of that per
// package with the reconciled request, §4.6 step 4.)
type state struct {
	selected         map[string]*pkgid.EvaluatedPackage
	order            []string // insertion order, for the stable topological tie-break
	queue            []string
	explicitRequired map[string]struct{}
	seenRequests     map[string]*pkgid.Request
	seenSignature    map[string]string
	dependsOn        map[string][]string // id -> ids it depends on (dependencies+bundled+extensions+explicit_dependencies+compats), for topo order
	compats          []pkgid.CompatPair
	extensions       map[string][]string
	recommendations  []pkgid.Recommendation
}

func newState() *state {
	return &state{
		selected:         map[string]*pkgid.EvaluatedPackage{},
		explicitRequired: map[string]struct{}{},
		seenRequests:     map[string]*pkgid.Request{},
		seenSignature:    map[string]string{},
		dependsOn:        map[string][]string{},
		extensions:       map[string][]string{},
	}
}

func (s *state) push(id string) {
	for _, q := range s.queue {
		if q == id {
			return
		}
	}
	s.queue = append(s.queue, id)
}

// Resolve runs the fixed-point algorithm of §4.6 and returns an Install
// Plan or the first fatal *pkgid.Error.
func (r *Resolver) Resolve(ctx context.Context, requests []*pkgid.Request, baseEnv *pkgid.Environment) (*Plan, *pkgid.Error) {
	st := newState()

	// Step 1: seed queue with every id in U; record requests;
	// explicit-required starts as U.
	for _, req := range requests {
		if existing, ok := st.seenRequests[req.ID]; ok {
			st.seenRequests[req.ID] = existing.Merge(req)
		} else {
			st.seenRequests[req.ID] = req
		}
		st.explicitRequired[req.ID] = struct{}{}
		st.push(req.ID)
	}

	for {
		if _, err := r.drainQueue(ctx, st, baseEnv); err != nil {
			return nil, err
		}

		// Step 9: compat fixups — after the fixed point, if a∈selected but
		// b∉selected, push b and re-iterate (step 11: this may introduce
		// new conflicts, which are fatal).
		compatPushed := false
		for _, c := range st.compats {
			if _, aIn := st.selected[c.If]; aIn {
				if _, bIn := st.selected[c.Then]; !bIn {
					st.push(c.Then)
					compatPushed = true
				}
			}
		}
		if !compatPushed {
			break
		}
	}

	// Compats are an edge type for topological ordering too (§4.6 step
	// 11): if a pulls in b, a must come after b in the plan.
	for _, c := range st.compats {
		if _, ok := st.selected[c.Then]; ok {
			st.dependsOn[c.If] = append(st.dependsOn[c.If], c.Then)
		}
	}

	// Step 6 (final check): every extension target must be present.
	for owner, exts := range st.extensions {
		for _, ext := range exts {
			if _, ok := st.selected[ext]; !ok {
				return nil, pkgid.NewMissingExtension(ext).WithPath(owner)
			}
		}
	}
	if cycleErr := detectExtensionCycle(st.extensions); cycleErr != nil {
		return nil, cycleErr
	}

	// Final conflict sweep (steps 5/11): re-check across the whole
	// selected set, since compat-triggered additions can introduce
	// conflicts only visible once everything is in.
	if err := checkConflicts(st); err != nil {
		return nil, err
	}

	order := topoOrder(st)

	plan := &Plan{Recommendations: st.recommendations}
	noticeSeen := map[string]struct{}{}
	for _, id := range order {
		ep := st.selected[id]
		plan.Packages = append(plan.Packages, ep)
		for _, n := range ep.Notices {
			if _, dup := noticeSeen[n]; dup {
				continue
			}
			noticeSeen[n] = struct{}{}
			plan.Notices = append(plan.Notices, n)
		}
	}

	// I5: addon ids must be globally unique across the plan.
	if err := checkAddonCollisions(plan); err != nil {
		return nil, err
	}

	return plan, nil
}

func (r *Resolver) drainQueue(ctx context.Context, st *state, baseEnv *pkgid.Environment) (progressed bool, err *pkgid.Error) {
	for len(st.queue) > 0 {
		select {
		case <-ctx.Done():
			return progressed, pkgid.NewCancelled()
		default:
		}

		id := st.queue[0]
		st.queue = st.queue[1:]

		// Step 2: skip if already selected AND the reconciled request is
		// unchanged since the last evaluation (memoization, §4.6 closing
		// paragraph).
		req, ok := st.seenRequests[id]
		if !ok {
			req = pkgid.NewRequest(id)
			st.seenRequests[id] = req
		}
		sig := req.Signature()
		if _, already := st.selected[id]; already && st.seenSignature[id] == sig {
			continue
		}

		ep, eerr := r.evaluateOne(ctx, id, req, baseEnv)
		if eerr != nil {
			return progressed, eerr.WithPath(id)
		}

		// Step 5: enforce conflicts against everything selected so far.
		for otherID, other := range st.selected {
			if otherID == id {
				continue
			}
			if containsID(ep.Relations.Conflicts, otherID) || containsID(other.Relations.Conflicts, id) {
				return progressed, pkgid.NewConflict(id, otherID)
			}
		}

		if _, existed := st.selected[id]; !existed {
			st.order = append(st.order, id)
		}
		st.selected[id] = ep
		st.seenSignature[id] = sig
		progressed = true

		deps := append(append([]string{}, ep.Relations.Dependencies...), ep.Relations.Bundled...)
		st.dependsOn[id] = append(st.dependsOn[id], deps...)
		st.dependsOn[id] = append(st.dependsOn[id], ep.Relations.Extensions...)
		st.dependsOn[id] = append(st.dependsOn[id], ep.Relations.ExplicitDependencies...)
		st.extensions[id] = ep.Relations.Extensions

		// Step 7: push dependencies and bundled ids.
		for _, d := range deps {
			st.push(d)
		}
		// Step 6: push extension targets.
		for _, e := range ep.Relations.Extensions {
			st.push(e)
		}
		// Step 8: explicit_dependencies must already be in explicit_required.
		for _, d := range ep.Relations.ExplicitDependencies {
			if _, required := st.explicitRequired[d]; !required {
				return progressed, pkgid.NewExplicitDependencyUnmet(d).WithPath(id)
			}
			st.push(d)
		}
		// Step 9: record compats for post-fixed-point reconciliation.
		st.compats = append(st.compats, ep.Relations.Compats...)
		// Step 10: collect recommendations for reporting only.
		st.recommendations = append(st.recommendations, ep.Relations.Recommendations...)
	}
	return progressed, nil
}

// evaluateOne locates id via C2 and dispatches to C3/C4 (script) or
// directly to C5 (declarative), under E augmented by the reconciled
// request (§4.6 step 4).
func (r *Resolver) evaluateOne(ctx context.Context, id string, req *pkgid.Request, baseEnv *pkgid.Environment) (*pkgid.EvaluatedPackage, *pkgid.Error) {
	loc, err := r.Index.Locate(ctx, id)
	if err != nil {
		if perr, ok := err.(*pkgid.Error); ok {
			return nil, perr
		}
		return nil, pkgid.NewUnknownPackage(id)
	}

	env := augmentEnvironment(baseEnv, req)

	var cacheKey string
	if r.Store != nil {
		cacheKey = contentstore.EvaluationKey(loc.Bytes, environmentSignature(env), req.Signature())
		if ep, ok, err := r.Store.GetEvaluation(cacheKey); err == nil && ok {
			return ep, nil
		}
	}

	var ep *pkgid.EvaluatedPackage
	switch loc.ContentType {
	case repoindex.ContentTypeScript:
		file, perr := script.Parse(string(loc.Bytes))
		if perr != nil {
			return nil, perr
		}
		evaluated, eerr := eval.Evaluate(id, file, env)
		if eerr != nil {
			return nil, eerr
		}
		ep = evaluated
	case repoindex.ContentTypeDeclarative:
		file, perr := declarative.Parse(loc.Bytes)
		if perr != nil {
			return nil, perr
		}
		compiled, cerr := declarative.Compile(id, file, env)
		if cerr != nil {
			return nil, cerr
		}
		ep = compiled
	default:
		return nil, pkgid.NewUnknownContentType(id)
	}
	ep.SourceHash = loc.ContentHash

	if r.Store != nil {
		_ = r.Store.PutEvaluation(cacheKey, ep)
	}
	return ep, nil
}

// environmentSignature and pkgid.Request.Signature build the canonical
// strings the evaluation cache key is derived from (P1 determinism: same script bytes,
// environment, and reconciled request must always hash to the same key).
func environmentSignature(env *pkgid.Environment) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%d|%d|%v",
		env.MCVersion, env.Side, env.Modloader, env.PluginLoader, env.OS, env.Arch, env.Language,
		env.Permissions, env.Stability, env.RequestedFeatures)
}

func augmentEnvironment(base *pkgid.Environment, req *pkgid.Request) *pkgid.Environment {
	env := *base
	features := map[string]struct{}{}
	for f := range base.RequestedFeatures {
		features[f] = struct{}{}
	}
	for f := range req.Features {
		features[f] = struct{}{}
	}
	env.RequestedFeatures = features
	env.Permissions = base.Permissions.Max(req.Permissions)
	env.Stability = base.Stability.Max(req.Stability)
	env.ContentVersionsRequested = req.ContentVersions
	env.UseDefaultFeatures = req.UseDefaultFeatures
	return &env
}

func containsID(list []string, id string) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

func checkConflicts(st *state) *pkgid.Error {
	for id, ep := range st.selected {
		for _, c := range ep.Relations.Conflicts {
			if _, ok := st.selected[c]; ok {
				return pkgid.NewConflict(id, c)
			}
		}
	}
	return nil
}

func checkAddonCollisions(p *Plan) *pkgid.Error {
	owner := map[string]string{}
	for _, ep := range p.Packages {
		for _, sa := range ep.SelectedAddons {
			if prev, ok := owner[sa.Addon.ID]; ok && prev != ep.ID {
				return pkgid.NewAddonCollision(sa.Addon.ID, prev, ep.ID)
			}
			owner[sa.Addon.ID] = ep.ID
		}
	}
	return nil
}

func detectExtensionCycle(extensions map[string][]string) *pkgid.Error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var cyclePath []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		cyclePath = append(cyclePath, id)
		for _, ext := range extensions[id] {
			switch color[ext] {
			case gray:
				return true
			case white:
				if visit(ext) {
					return true
				}
			}
		}
		cyclePath = cyclePath[:len(cyclePath)-1]
		color[id] = black
		return false
	}
	for id := range extensions {
		if color[id] == white {
			cyclePath = nil
			if visit(id) {
				return pkgid.NewExtensionCycle(append([]string{}, cyclePath...))
			}
		}
	}
	return nil
}

// topoOrder produces a stable order derived from dependency edges
// (dependencies + bundled + extensions + explicit_dependencies + compats),
// falling back to
// insertion order for ties; non-extension cycles are broken by insertion
// order rather than rejected (§4.6, final paragraph).
func topoOrder(st *state) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var out []string
	var visit func(id string)
	visit = func(id string) {
		if color[id] != white {
			return
		}
		color[id] = gray
		for _, dep := range st.dependsOn[id] {
			if _, ok := st.selected[dep]; ok {
				visit(dep)
			}
		}
		color[id] = black
		out = append(out, id)
	}
	for _, id := range st.order {
		visit(id)
	}
	return out
}
