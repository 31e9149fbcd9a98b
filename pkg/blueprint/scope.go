package blueprint

/* Scope holds variable bindings for one directory of source files. Lookups
fall through to the parent, matching how variables of a parent directory stay
visible to the children. */
type Scope struct {
	parent *Scope
	vars   map[string]Value
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: make(map[string]Value)}
}

/* Lookup searches this scope and its ancestors. */
func (s *Scope) Lookup(name string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *Scope) set(name string, v Value) {
	s.vars[name] = v
}

/* Variables evaluates every binding of this scope, not including inherited
ones. */
func (s *Scope) Variables() (map[string]any, error) {
	out := make(map[string]any, len(s.vars))
	for name, v := range s.vars {
		val, err := v.eval(s)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}
