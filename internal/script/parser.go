package script

import (
	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
)

var primConditionKinds = map[string]int{
	"value":         2,
	"version":       1,
	"modloader":     1,
	"plugin_loader": 1,
	"side":          1,
	"feature":       1,
	"os":            1,
	"defined":       1,
	"stability":     1,
	"language":      1,
}

type parser struct {
	toks []token
	pos  int
}

// Parse tokenizes and parses source into a File, then validates that no
// routine calls itself or forms a call cycle (§4.3: "call rejects
// self-reference and (direct or transitive) cycles at parse time").
func Parse(source string) (*File, *pkgid.Error) {
	toks, err := newLexer(source).tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	f, perr := p.parseFile()
	if perr != nil {
		return nil, perr
	}
	if cerr := checkCallGraph(f); cerr != nil {
		return nil, cerr
	}
	return f, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, *pkgid.Error) {
	t := p.cur()
	if t.kind != k {
		return token{}, pkgid.NewParseError(t.pos.Row, t.pos.Col, "expected "+what)
	}
	return p.advance(), nil
}

func (p *parser) parseFile() (*File, *pkgid.Error) {
	f := &File{}
	for p.cur().kind != tokEOF {
		r, err := p.parseRoutine()
		if err != nil {
			return nil, err
		}
		f.Routines = append(f.Routines, r)
	}
	return f, nil
}

func (p *parser) parseRoutine() (*Routine, *pkgid.Error) {
	at, err := p.expect(tokAt, "'@'")
	if err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent, "routine name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	instrs, err := p.parseInstrsUntilRBrace()
	if err != nil {
		return nil, err
	}
	return &Routine{Name: name.text, Pos: at.pos, Instrs: instrs}, nil
}

func (p *parser) parseInstrsUntilRBrace() ([]Instr, *pkgid.Error) {
	var out []Instr
	for p.cur().kind != tokRBrace {
		if p.cur().kind == tokEOF {
			t := p.cur()
			return nil, pkgid.NewParseError(t.pos.Row, t.pos.Col, "unexpected end of file, expected '}'")
		}
		instr, err := p.parseInstr()
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
	}
	p.advance() // consume '}'
	return out, nil
}

func (p *parser) parseInstr() (Instr, *pkgid.Error) {
	if p.cur().kind == tokIdent && p.cur().text == "if" {
		return p.parseIfInstr()
	}
	return p.parseSimpleInstr()
}

func (p *parser) parseIfInstr() (Instr, *pkgid.Error) {
	ifTok := p.advance()
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	block, err := p.parseInstrsUntilRBrace()
	if err != nil {
		return nil, err
	}
	return &IfInstr{Pos: ifTok.pos, Cond: cond, Block: block}, nil
}

func (p *parser) parseCond() (Cond, *pkgid.Error) {
	t := p.cur()
	if t.kind != tokIdent {
		return nil, pkgid.NewParseError(t.pos.Row, t.pos.Col, "expected condition")
	}
	switch t.text {
	case "not":
		p.advance()
		inner, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		return &NotCond{Pos: t.pos, Inner: inner}, nil
	case "and":
		p.advance()
		a, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		b, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		return &AndCond{Pos: t.pos, A: a, B: b}, nil
	case "or":
		p.advance()
		a, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		b, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		return &OrCond{Pos: t.pos, A: a, B: b}, nil
	default:
		arity, ok := primConditionKinds[t.text]
		if !ok {
			return nil, pkgid.NewParseError(t.pos.Row, t.pos.Col, "unknown condition '"+t.text+"'")
		}
		p.advance()
		args := make([]Arg, 0, arity)
		for i := 0; i < arity; i++ {
			a, err := p.parseArg()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return &PrimCond{Pos: t.pos, Kind: t.text, Args: args}, nil
	}
}

func (p *parser) parseArg() (Arg, *pkgid.Error) {
	t := p.cur()
	switch t.kind {
	case tokIdent:
		p.advance()
		return &IdentArg{Pos: t.pos, Value: t.text}, nil
	case tokString:
		p.advance()
		return &StringArg{Pos: t.pos, Parts: t.parts}, nil
	case tokVariable:
		p.advance()
		return &VariableArg{Pos: t.pos, Name: t.text}, nil
	default:
		return nil, pkgid.NewParseError(t.pos.Row, t.pos.Col, "expected argument")
	}
}

func (p *parser) parseSimpleInstr() (Instr, *pkgid.Error) {
	name, err := p.expect(tokIdent, "instruction name")
	if err != nil {
		return nil, err
	}
	instr := &SimpleInstr{Pos: name.pos, Name: name.text, KeyVals: map[string]Arg{}}
	for p.cur().kind == tokIdent || p.cur().kind == tokString || p.cur().kind == tokVariable {
		a, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		instr.Args = append(instr.Args, a)
	}
	if p.cur().kind == tokLParen {
		p.advance()
		if p.cur().kind != tokRParen {
			for {
				key, err := p.expect(tokIdent, "key")
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(tokEquals, "'='"); err != nil {
					return nil, err
				}
				val, err := p.parseArg()
				if err != nil {
					return nil, err
				}
				instr.KeyVals[key.text] = val
				if p.cur().kind == tokComma {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokSemi, "';'"); err != nil {
		return nil, err
	}
	return instr, nil
}

// checkCallGraph walks every "call <routine>" instruction and rejects
// self-reference and any direct or transitive cycle among routine calls.
func checkCallGraph(f *File) *pkgid.Error {
	edges := map[string][]string{}
	routines := map[string]*Routine{}
	for _, r := range f.Routines {
		routines[r.Name] = r
		edges[r.Name] = callTargets(r.Instrs)
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var visit func(name string, stack []string) *pkgid.Error
	visit = func(name string, stack []string) *pkgid.Error {
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range edges[name] {
			if dep == name {
				return pkgid.NewParseError(0, 0, "routine '"+name+"' calls itself")
			}
			switch color[dep] {
			case gray:
				return pkgid.NewParseError(0, 0, "call cycle detected: "+name+" -> "+dep)
			case white:
				if _, ok := routines[dep]; ok {
					if err := visit(dep, stack); err != nil {
						return err
					}
				}
			}
		}
		color[name] = black
		return nil
	}
	for name := range routines {
		if color[name] == white {
			if err := visit(name, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func callTargets(instrs []Instr) []string {
	var out []string
	for _, instr := range instrs {
		switch v := instr.(type) {
		case *SimpleInstr:
			if v.Name == "call" && len(v.Args) > 0 {
				if id, ok := v.Args[0].(*IdentArg); ok {
					out = append(out, id.Value)
				}
			}
		case *IfInstr:
			out = append(out, callTargets(v.Block)...)
		}
	}
	return out
}
