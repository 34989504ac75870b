package compile

import (
	"strings"

	"github.com/avele/reactode/internal/kinerr"
	"github.com/avele/reactode/internal/network"
	"github.com/avele/reactode/internal/symexpr"
)

type boundRule struct {
	targetSym string
	value     symexpr.Expr
}

// applyRules substitutes assignment-rule targets into every rate law until
// a fixed point, bounded by the rule count, then removes the targets from
// the free parameter vectors. A target still free in any rate afterwards
// means the substitution chain is cyclic.
func (m *Model) applyRules(net *network.Model, global map[string]string) error {
	if len(net.Rules) == 0 {
		return nil
	}

	paramSyms := make(map[string]struct{}, len(m.KSyms))
	for _, sym := range m.KSyms {
		paramSyms[sym] = struct{}{}
	}

	rules := make([]boundRule, 0, len(net.Rules))
	targets := make(map[string]string, len(net.Rules)) // sym -> natural name
	for _, r := range net.Rules {
		switch r.Kind {
		case network.RuleRepeated, network.RuleInitial:
		default:
			return kinerr.Unsupportedf("rule kind %q", r.Kind)
		}
		if strings.Count(r.Text, "=") != 1 {
			return kinerr.Validationf("rule %q: expected exactly one '='", r.Text)
		}
		parts := strings.SplitN(r.Text, "=", 2)
		targetName := strings.TrimSpace(parts[0])
		targetSym, ok := global[targetName]
		if ok {
			_, ok = paramSyms[targetSym]
		}
		if !ok {
			return kinerr.Validationf("rule %q: target %q is not a model parameter", r.Text, targetName)
		}
		raw, err := symexpr.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			return kinerr.Validationf("rule %q: %v", r.Text, err)
		}
		value := symexpr.RewriteSymbols(raw, global)
		for vi, vsym := range m.VSyms {
			value = value.Subst(vsym, symexpr.Const(m.V[vi]))
		}
		rules = append(rules, boundRule{targetSym: targetSym, value: value})
		targets[targetSym] = targetName
	}

	// Rule values may reference other ruled symbols, so one pass per rule
	// suffices to reach the fixed point for any acyclic chain.
	for iter := 0; iter < len(rules); iter++ {
		for ri := range m.Rates {
			for _, rl := range rules {
				m.Rates[ri] = m.Rates[ri].Subst(rl.targetSym, rl.value)
			}
		}
	}

	for ri, e := range m.Rates {
		for sym := range symexpr.FreeSymbols(e) {
			if name, isTarget := targets[sym]; isTarget {
				return kinerr.Cyclicf("rule target %q still present in reaction %q after %d substitution passes",
					name, net.Reactions[ri].Name, len(rules))
			}
		}
	}

	// Ruled targets are no longer free parameters.
	keepSyms := m.KSyms[:0]
	keepNames := m.KNames[:0]
	keepVals := m.K[:0]
	for i, sym := range m.KSyms {
		if _, ruled := targets[sym]; ruled {
			continue
		}
		keepSyms = append(keepSyms, sym)
		keepNames = append(keepNames, m.KNames[i])
		keepVals = append(keepVals, m.K[i])
	}
	m.KSyms = keepSyms
	m.KNames = keepNames
	m.K = keepVals
	return nil
}
