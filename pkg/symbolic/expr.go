// Package symbolic implements a small integer expression algebra over
// named dimension variables, used by pkg/shape to build index and
// validity expressions without committing to concrete sizes until
// execution time.
package symbolic

import "fmt"

// Op identifies a binary operator node.
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
	Mod
	Min
	Max
	Lt
	Ge
)

func (o Op) String() string {
	switch o {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case Min:
		return "min"
	case Max:
		return "max"
	case Lt:
		return "<"
	case Ge:
		return ">="
	default:
		return "?"
	}
}

// Kind distinguishes the three node shapes an Expr can take.
type Kind int

const (
	KindConst Kind = iota
	KindVar
	KindBinary
)

// Expr is an immutable node in a symbolic expression tree. Zero value is
// not meaningful; construct with Const, Var, or the binary helpers.
type Expr struct {
	kind  Kind
	val   int64  // valid when kind == KindConst
	name  byte   // valid when kind == KindVar; single character
	op    Op     // valid when kind == KindBinary
	lhs   *Expr  // valid when kind == KindBinary
	rhs   *Expr  // valid when kind == KindBinary
}

// Const builds a constant expression.
func Const(v int64) *Expr { return &Expr{kind: KindConst, val: v} }

// Var builds a single-character dimension variable expression.
func Var(name byte) *Expr { return &Expr{kind: KindVar, name: name} }

func bin(op Op, a, b *Expr) *Expr { return &Expr{kind: KindBinary, op: op, lhs: a, rhs: b} }

func (e *Expr) Add(o *Expr) *Expr { return simplify(bin(Add, e, o)) }
func (e *Expr) Sub(o *Expr) *Expr { return simplify(bin(Sub, e, o)) }
func (e *Expr) Mul(o *Expr) *Expr { return simplify(bin(Mul, e, o)) }
func (e *Expr) Div(o *Expr) *Expr { return simplify(bin(Div, e, o)) }
func (e *Expr) Mod(o *Expr) *Expr { return simplify(bin(Mod, e, o)) }
func (e *Expr) Min(o *Expr) *Expr { return simplify(bin(Min, e, o)) }
func (e *Expr) Max(o *Expr) *Expr { return simplify(bin(Max, e, o)) }
func (e *Expr) Lt(o *Expr) *Expr  { return simplify(bin(Lt, e, o)) }
func (e *Expr) Ge(o *Expr) *Expr  { return simplify(bin(Ge, e, o)) }

// Kind reports the node shape.
func (e *Expr) Kind() Kind { return e.kind }

// IsConst reports whether e is a constant node, returning its value.
func (e *Expr) IsConst() (int64, bool) {
	if e.kind == KindConst {
		return e.val, true
	}
	return 0, false
}

// Vars returns the sorted set of free variable names appearing in e.
func (e *Expr) Vars() []byte {
	seen := map[byte]bool{}
	var walk func(*Expr)
	walk = func(n *Expr) {
		switch n.kind {
		case KindVar:
			seen[n.name] = true
		case KindBinary:
			walk(n.lhs)
			walk(n.rhs)
		}
	}
	walk(e)
	out := make([]byte, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	// insertion sort; variable sets are tiny (single-character names)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Substitute replaces every free variable bound in env and returns the
// simplified result. Variables not present in env are left symbolic.
func (e *Expr) Substitute(env map[byte]int64) *Expr {
	switch e.kind {
	case KindConst:
		return e
	case KindVar:
		if v, ok := env[e.name]; ok {
			return Const(v)
		}
		return e
	default:
		return simplify(bin(e.op, e.lhs.Substitute(env), e.rhs.Substitute(env)))
	}
}

// ToUsize resolves e to a concrete nonnegative integer given a full
// variable binding. The second return is false if any free variable in e
// is unbound by env.
func (e *Expr) ToUsize(env map[byte]int64) (int, bool) {
	sub := e.Substitute(env)
	if v, ok := sub.IsConst(); ok {
		return int(v), true
	}
	return 0, false
}

// Equivalent reports whether e and o have identical simplified canonical
// forms. pkg/pattern uses it to compare shape axes.
func (e *Expr) Equivalent(o *Expr) bool {
	return simplify(e).canonicalString() == simplify(o).canonicalString()
}

func (e *Expr) canonicalString() string {
	switch e.kind {
	case KindConst:
		return fmt.Sprintf("%d", e.val)
	case KindVar:
		return string(e.name)
	default:
		return fmt.Sprintf("(%s%s%s)", e.lhs.canonicalString(), e.op.String(), e.rhs.canonicalString())
	}
}

func (e *Expr) String() string { return e.canonicalString() }

func evalBinary(op Op, a, b int64) int64 {
	switch op {
	case Add:
		return a + b
	case Sub:
		return a - b
	case Mul:
		return a * b
	case Div:
		if b == 0 {
			return 0
		}
		return a / b
	case Mod:
		if b == 0 {
			return 0
		}
		return a % b
	case Min:
		if a < b {
			return a
		}
		return b
	case Max:
		if a > b {
			return a
		}
		return b
	case Lt:
		if a < b {
			return 1
		}
		return 0
	case Ge:
		if a >= b {
			return 1
		}
		return 0
	}
	return 0
}

// simplify applies constant folding and the required algebraic
// identities: +0, *1, *0, a-a=0, min(a,a)=a, max(a,a)=a, and division
// distribution over known-integer multiples.
func simplify(e *Expr) *Expr {
	if e.kind != KindBinary {
		return e
	}
	l := simplify(e.lhs)
	r := simplify(e.rhs)

	lc, lok := l.IsConst()
	rc, rok := r.IsConst()
	if lok && rok {
		return Const(evalBinary(e.op, lc, rc))
	}

	switch e.op {
	case Add:
		if lok && lc == 0 {
			return r
		}
		if rok && rc == 0 {
			return l
		}
	case Sub:
		if rok && rc == 0 {
			return l
		}
		if l.Equivalent(r) {
			return Const(0)
		}
	case Mul:
		if (lok && lc == 0) || (rok && rc == 0) {
			return Const(0)
		}
		if lok && lc == 1 {
			return r
		}
		if rok && rc == 1 {
			return l
		}
	case Div:
		if rok && rc == 1 {
			return l
		}
		// distribute division over a known-integer multiple: (k*x)/k = x
		if rok && l.kind == KindBinary && l.op == Mul {
			if k, ok := l.lhs.IsConst(); ok && k == rc {
				return l.rhs
			}
			if k, ok := l.rhs.IsConst(); ok && k == rc {
				return l.lhs
			}
		}
	case Min:
		if l.Equivalent(r) {
			return l
		}
	case Max:
		if l.Equivalent(r) {
			return l
		}
	}
	return bin(e.op, l, r)
}
