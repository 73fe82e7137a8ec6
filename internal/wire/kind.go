package wire

// Kind identifies an event sent by the target process.
type Kind int

const (
	KindUnknown Kind = iota
	KindDuringGC
	KindAttached
	KindDetached
	KindForked
	KindEvaled
	KindMethod
	KindClass
	KindAdd
	KindRemove
	KindNewExpr
	KindExprValue
	KindCall
	KindCCall
	KindReturn
	KindCReturn
	KindSlow
	KindCSlow
	KindGCStart
	KindGCEnd
	KindGC
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindDuringGC:  "during_gc",
	KindAttached:  "attached",
	KindDetached:  "detached",
	KindForked:    "forked",
	KindEvaled:    "evaled",
	KindMethod:    "mid",
	KindClass:     "klass",
	KindAdd:       "add",
	KindRemove:    "remove",
	KindNewExpr:   "newexpr",
	KindExprValue: "exprval",
	KindCall:      "call",
	KindCCall:     "ccall",
	KindReturn:    "return",
	KindCReturn:   "creturn",
	KindSlow:      "slow",
	KindCSlow:     "cslow",
	KindGCStart:   "gc_start",
	KindGCEnd:     "gc_end",
	KindGC:        "gc",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames)+3)
	for k, name := range kindNames {
		if k == KindUnknown {
			continue
		}
		m[name] = k
	}
	// camelCase spellings used by some targets
	m["duringGc"] = KindDuringGC
	m["gcStart"] = KindGCStart
	m["gcEnd"] = KindGCEnd
	return m
}()

// ParseKind maps a wire name to its Kind. Unrecognized names yield KindUnknown.
func ParseKind(name string) Kind {
	if k, ok := kindsByName[name]; ok {
		return k
	}
	return KindUnknown
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}
