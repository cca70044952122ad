package eval

import (
	"strconv"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
	"github.com/mcvm-launcher/mcvm-sub000/internal/sandbox"
	"github.com/mcvm-launcher/mcvm-sub000/internal/script"
)

// evaluator walks a parsed script.File under one Environment, producing an
// EvaluatedPackage. One evaluator instance is single-use: construct fresh
// per package evaluation (§4.4 "evaluation is pure").
type evaluator struct {
	file      *script.File
	env       *pkgid.Environment
	builder   *builder
	routines  map[string]*script.Routine
	callStack map[string]bool
	vars      map[string]string
}

// Evaluate runs the reserved routines in their fixed order — @properties,
// then @meta, then @install (§4.4) — and returns the resulting
// EvaluatedPackage, or the first fatal *pkgid.Error encountered.
func Evaluate(id string, file *script.File, env *pkgid.Environment) (*pkgid.EvaluatedPackage, *pkgid.Error) {
	e := &evaluator{
		file:      file,
		env:       env,
		builder:   newBuilder(id),
		routines:  map[string]*script.Routine{},
		callStack: map[string]bool{},
	}
	for _, r := range file.Routines {
		e.routines[r.Name] = r
	}

	order := []string{script.RoutineProperties, script.RoutineMeta, script.RoutineInstall}
	for _, name := range order {
		r, ok := e.routines[name]
		if !ok {
			continue
		}
		e.vars = e.implicitVars()
		if _, err := e.runRoutine(r); err != nil {
			return nil, err
		}
	}
	return e.builder.toEvaluatedPackage(env)
}

func (e *evaluator) implicitVars() map[string]string {
	return map[string]string{
		"MINECRAFT_VERSION": e.env.MCVersion,
		"SIDE":              string(e.env.Side),
		"MODLOADER":         e.env.Modloader,
		"PLUGIN_LOADER":     e.env.PluginLoader,
		"OS":                e.env.OS,
		"ARCH":              e.env.Arch,
		"LANGUAGE":          e.env.Language,
		"STABILITY":         e.env.Stability.String(),
	}
}

// runRoutine executes a routine's instructions in order. The bool result
// reports whether a "finish" instruction ended the routine early (which is
// not an error, just early termination of that routine).
func (e *evaluator) runRoutine(r *script.Routine) (bool, *pkgid.Error) {
	if e.callStack[r.Name] {
		return false, pkgid.NewParseError(r.Pos.Row, r.Pos.Col, "runtime call cycle involving '"+r.Name+"'")
	}
	e.callStack[r.Name] = true
	defer delete(e.callStack, r.Name)
	return e.runInstrs(r.Instrs)
}

func (e *evaluator) runInstrs(instrs []script.Instr) (bool, *pkgid.Error) {
	for _, instr := range instrs {
		switch v := instr.(type) {
		case *script.IfInstr:
			ok, err := e.evalCond(v.Cond)
			if err != nil {
				return false, err
			}
			if ok {
				finished, err := e.runInstrs(v.Block)
				if err != nil {
					return false, err
				}
				if finished {
					return true, nil
				}
			}
		case *script.SimpleInstr:
			finished, err := e.runSimple(v)
			if err != nil {
				return false, err
			}
			if finished {
				return true, nil
			}
		}
	}
	return false, nil
}

func (e *evaluator) evalCond(c script.Cond) (bool, *pkgid.Error) {
	switch v := c.(type) {
	case *script.NotCond:
		inner, err := e.evalCond(v.Inner)
		if err != nil {
			return false, err
		}
		return !inner, nil
	case *script.AndCond:
		a, err := e.evalCond(v.A)
		if err != nil {
			return false, err
		}
		if !a {
			return false, nil
		}
		return e.evalCond(v.B)
	case *script.OrCond:
		a, err := e.evalCond(v.A)
		if err != nil {
			return false, err
		}
		if a {
			return true, nil
		}
		return e.evalCond(v.B)
	case *script.PrimCond:
		return e.evalPrim(v)
	default:
		return false, pkgid.NewParseError(0, 0, "unknown condition node")
	}
}

func (e *evaluator) evalPrim(c *script.PrimCond) (bool, *pkgid.Error) {
	argStr := func(i int) (string, *pkgid.Error) {
		return e.argString(c.Args[i], true)
	}
	switch c.Kind {
	case "value":
		a, err := argStr(0)
		if err != nil {
			return false, err
		}
		b, err := argStr(1)
		if err != nil {
			return false, err
		}
		return a == b, nil
	case "version":
		v, err := argStr(0)
		if err != nil {
			return false, err
		}
		pat := pkgid.ParseVersionPattern(v)
		return pat.Matches(e.env.MCVersion, e.env.Versions, e.env.Stability), nil
	case "modloader":
		v, err := argStr(0)
		if err != nil {
			return false, err
		}
		return pkgid.LoaderMatches(v, e.env.Modloader), nil
	case "plugin_loader":
		v, err := argStr(0)
		if err != nil {
			return false, err
		}
		return pkgid.LoaderMatches(v, e.env.PluginLoader), nil
	case "side":
		v, err := argStr(0)
		if err != nil {
			return false, err
		}
		return string(e.env.Side) == v, nil
	case "feature":
		v, err := argStr(0)
		if err != nil {
			return false, err
		}
		return e.env.HasFeature(v), nil
	case "os":
		v, err := argStr(0)
		if err != nil {
			return false, err
		}
		return e.env.OS == v, nil
	case "defined":
		v, err := argStr(0)
		if err != nil {
			return false, err
		}
		_, ok := e.vars[v]
		return ok, nil
	case "stability":
		v, err := argStr(0)
		if err != nil {
			return false, err
		}
		return e.env.Stability.String() == v, nil
	case "language":
		v, err := argStr(0)
		if err != nil {
			return false, err
		}
		return e.env.Language == v, nil
	default:
		return false, pkgid.NewParseError(c.Pos.Row, c.Pos.Col, "unknown condition '"+c.Kind+"'")
	}
}

// argString resolves an Arg to its string value. direct controls whether a
// bare VariableArg must be defined (true: direct use of $x fails with
// UndefinedVariable per §4.4) — inside string interpolation missing
// variables expand to the empty string instead, handled in stringValue.
func (e *evaluator) argString(a script.Arg, direct bool) (string, *pkgid.Error) {
	switch v := a.(type) {
	case *script.IdentArg:
		return v.Value, nil
	case *script.StringArg:
		return e.stringValue(v), nil
	case *script.VariableArg:
		val, ok := e.vars[v.Name]
		if !ok {
			if direct {
				return "", pkgid.NewUndefinedVariable(v.Name)
			}
			return "", nil
		}
		return val, nil
	default:
		return "", pkgid.NewParseError(0, 0, "unknown argument node")
	}
}

func (e *evaluator) stringValue(s *script.StringArg) string {
	out := ""
	for _, part := range s.Parts {
		if part.VarName != "" {
			out += e.vars[part.VarName] // missing -> empty string
			continue
		}
		out += part.Literal
	}
	return out
}

func (e *evaluator) runSimple(instr *script.SimpleInstr) (bool, *pkgid.Error) {
	args := make([]string, len(instr.Args))
	for i, a := range instr.Args {
		s, err := e.argString(a, true)
		if err != nil {
			return false, err
		}
		args[i] = s
	}
	kv := map[string]string{}
	for k, a := range instr.KeyVals {
		s, err := e.argString(a, true)
		if err != nil {
			return false, err
		}
		kv[k] = s
	}

	switch instr.Name {
	case "finish":
		return true, nil
	case "fail":
		reason := "evaluation_failed"
		if len(args) > 0 {
			reason = args[0]
		}
		return false, pkgid.NewEvaluationFailed(reason)
	case "call":
		if len(args) == 0 {
			return false, pkgid.NewParseError(instr.Pos.Row, instr.Pos.Col, "call requires a routine name")
		}
		target, ok := e.routines[args[0]]
		if !ok {
			return false, pkgid.NewParseError(instr.Pos.Row, instr.Pos.Col, "call to undefined routine '"+args[0]+"'")
		}
		_, err := e.runRoutine(target)
		return false, err
	case "cmd":
		if err := sandbox.Require(e.env.Permissions, sandbox.CapabilityCmd); err != nil {
			return false, err.(*pkgid.Error)
		}
		return false, nil
	case "notice":
		if err := sandbox.Require(e.env.Permissions, sandbox.CapabilityNotice); err != nil {
			return false, err.(*pkgid.Error)
		}
		if len(args) > 0 {
			e.builder.appendNotice(args[0])
		}
		return false, nil
	case "name", "description", "authors", "source", "homepage", "icon":
		if len(args) > 0 {
			e.builder.meta[instr.Name] = args[0]
		}
		return false, nil
	case "feature_default":
		if len(args) >= 1 {
			name := args[0]
			def := true
			if len(args) >= 2 {
				def, _ = strconv.ParseBool(args[1])
			}
			if v, ok := kv["default"]; ok {
				def, _ = strconv.ParseBool(v)
			}
			e.builder.properties.Features[name] = def
			// §8 P4: a default-enabled feature only auto-enables when the
			// reconciled request still wants defaults; use_default_features
			// =false with no explicit feature must leave it unrequested.
			if def && e.env.UseDefaultFeatures {
				if e.env.RequestedFeatures == nil {
					e.env.RequestedFeatures = map[string]struct{}{}
				}
				if _, explicit := e.env.RequestedFeatures[name]; !explicit {
					e.env.RequestedFeatures[name] = struct{}{}
				}
			}
		}
		return false, nil
	case "addon":
		return false, e.runAddon(instr, args, kv)
	case "require":
		if len(args) > 0 {
			if kv["explicit"] == "true" {
				e.builder.relations.ExplicitDependencies = append(e.builder.relations.ExplicitDependencies, args[0])
			} else {
				e.builder.relations.Dependencies = append(e.builder.relations.Dependencies, args[0])
			}
		}
		return false, nil
	case "refuse":
		if len(args) > 0 {
			e.builder.relations.Conflicts = append(e.builder.relations.Conflicts, args[0])
		}
		return false, nil
	case "bundle":
		if len(args) > 0 {
			e.builder.relations.Bundled = append(e.builder.relations.Bundled, args[0])
		}
		return false, nil
	case "recommend":
		if len(args) > 0 {
			invert := kv["invert"] == "true"
			e.builder.relations.Recommendations = append(e.builder.relations.Recommendations, pkgid.Recommendation{ID: args[0], Invert: invert})
		}
		return false, nil
	case "compat":
		if len(args) >= 2 {
			e.builder.relations.Compats = append(e.builder.relations.Compats, pkgid.CompatPair{If: args[0], Then: args[1]})
		}
		return false, nil
	case "extend":
		if len(args) > 0 {
			e.builder.relations.Extensions = append(e.builder.relations.Extensions, args[0])
		}
		return false, nil
	default:
		return false, pkgid.NewParseError(instr.Pos.Row, instr.Pos.Col, "unknown instruction '"+instr.Name+"'")
	}
}

func (e *evaluator) runAddon(instr *script.SimpleInstr, args []string, kv map[string]string) *pkgid.Error {
	if len(args) < 2 {
		return pkgid.NewParseError(instr.Pos.Row, instr.Pos.Col, "addon requires <id> <kind> and a url or path")
	}
	id, kind := args[0], pkgid.AddonKind(args[1])
	if !pkgid.ValidAddonKind(kind) {
		return pkgid.NewParseError(instr.Pos.Row, instr.Pos.Col, "unknown addon kind '"+args[1]+"'")
	}
	optional := kv["optional"] == "true"
	addon := e.builder.addonOf(id, kind, optional)

	v := pkgid.AddonVersion{
		ContentVersion: kv["content_version"],
		Filename:       kv["filename"],
		SHA256:         kv["sha256"],
		SHA512:         kv["sha512"],
	}
	if url, ok := kv["url"]; ok {
		if err := sandbox.Require(e.env.Permissions, sandbox.CapabilityAddonURL); err != nil {
			return err.(*pkgid.Error)
		}
		v.URL = url
	} else if path, ok := kv["path"]; ok {
		if err := sandbox.Require(e.env.Permissions, sandbox.CapabilityAddonPath); err != nil {
			return err.(*pkgid.Error)
		}
		v.Path = path
	} else if len(args) >= 3 {
		// addon <id> <kind> url <value>  /  addon <id> <kind> path <value>
		if args[2] == "path" {
			if err := sandbox.Require(e.env.Permissions, sandbox.CapabilityAddonPath); err != nil {
				return err.(*pkgid.Error)
			}
			if len(args) >= 4 {
				v.Path = args[3]
			}
		} else {
			if err := sandbox.Require(e.env.Permissions, sandbox.CapabilityAddonURL); err != nil {
				return err.(*pkgid.Error)
			}
			if len(args) >= 4 {
				v.URL = args[3]
			} else {
				v.URL = args[2]
			}
		}
	}
	if verr := v.Validate(); verr != nil {
		return verr
	}
	addon.Versions = append(addon.Versions, v)
	return nil
}
