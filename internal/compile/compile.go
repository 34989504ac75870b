package compile

import (
	"github.com/avele/reactode/internal/kinerr"
	"github.com/avele/reactode/internal/network"
	"github.com/avele/reactode/internal/symexpr"
)

// Compile derives the canonical symbolic model from a frozen network.
func Compile(net *network.Model) (*Model, error) {
	m := &Model{Name: net.Name}

	// Partition species into states and inputs, preserving network order
	// within each partition.
	var states, inputs []network.Species
	for _, s := range net.Species {
		if s.IsInput() {
			inputs = append(inputs, s)
		} else {
			states = append(states, s)
		}
	}

	m.NV = len(net.Compartments)
	m.NX = len(states)
	m.NU = len(inputs)
	m.NQ = m.NU
	m.NS = m.NX
	m.NR = len(net.Reactions)

	// Collision-free renaming: the taken-name index starts with every
	// natural name from every category, then grows as names are assigned.
	natural := make([]string, 0, m.NV+len(net.Species)+len(net.Parameters))
	for _, c := range net.Compartments {
		natural = append(natural, c.Name)
	}
	for _, s := range net.Species {
		natural = append(natural, s.Name)
	}
	for _, p := range net.Parameters {
		natural = append(natural, p.Name)
	}
	idx := newNameIndex(natural)

	m.VSyms = idx.assignAll("v", m.NV)
	m.XSyms = idx.assignAll("x", m.NX)
	m.USyms = idx.assignAll("u", m.NU)
	m.KSyms = idx.assignAll("k", len(net.Parameters))
	m.SSyms = idx.assignAll("s", m.NS)

	m.VNames = make([]string, m.NV)
	m.V = make([]float64, m.NV)
	compIndex := make(map[string]int, m.NV)
	for i, c := range net.Compartments {
		m.VNames[i] = c.Name
		m.V[i] = c.Size
		compIndex[c.Name] = i
	}

	m.XNames = make([]string, m.NX)
	m.XComp = make([]int, m.NX)
	m.Seeds = make([]float64, m.NX)
	m.SNames = make([]string, m.NX)
	for i, s := range states {
		m.XNames[i] = s.Name
		m.XComp[i] = compIndex[s.Compartment]
		m.Seeds[i] = s.Amount
		m.SNames[i] = s.Name + "_0"
	}

	m.UNames = make([]string, m.NU)
	m.UComp = make([]int, m.NU)
	m.U = make([]float64, m.NU)
	for i, s := range inputs {
		m.UNames[i] = s.Name
		m.UComp[i] = compIndex[s.Compartment]
		m.U[i] = s.Amount
	}

	// Global symbol rewrite map: bare and compartment-qualified species
	// names, compartment names, and model-scoped parameter names.
	global := make(map[string]string)
	for i, s := range states {
		global[s.Name] = m.XSyms[i]
		global[s.Compartment+"."+s.Name] = m.XSyms[i]
	}
	for i, s := range inputs {
		global[s.Name] = m.USyms[i]
		global[s.Compartment+"."+s.Name] = m.USyms[i]
	}
	for i, c := range net.Compartments {
		global[c.Name] = m.VSyms[i]
	}
	m.KNames = make([]string, len(net.Parameters))
	m.K = make([]float64, len(net.Parameters))
	localParams := make(map[string]map[string]string)
	for i, p := range net.Parameters {
		m.KNames[i] = p.Name
		m.K[i] = p.Value
		if p.Reaction == "" {
			global[p.Name] = m.KSyms[i]
			continue
		}
		if localParams[p.Reaction] == nil {
			localParams[p.Reaction] = make(map[string]string)
		}
		localParams[p.Reaction][p.Name] = m.KSyms[i]
	}

	// Parse each rate law, rewrite natural names to canonical symbols and
	// fold compartment sizes in as constants.
	m.Rates = make([]symexpr.Expr, m.NR)
	for ri, r := range net.Reactions {
		raw, err := symexpr.Parse(r.Rate)
		if err != nil {
			return nil, kinerr.Validationf("reaction %q: %v", r.Name, err)
		}
		mapping := global
		if local := localParams[r.Name]; local != nil {
			mapping = make(map[string]string, len(global)+len(local))
			for k, v := range global {
				mapping[k] = v
			}
			for k, v := range local {
				mapping[k] = v
			}
		}
		e := symexpr.RewriteSymbols(raw, mapping)
		for vi, vsym := range m.VSyms {
			e = e.Subst(vsym, symexpr.Const(m.V[vi]))
		}
		m.Rates[ri] = e
	}

	if err := m.buildStoichiometry(net, states, inputs); err != nil {
		return nil, err
	}

	if err := m.applyRules(net, global); err != nil {
		return nil, err
	}

	if err := m.checkRates(net); err != nil {
		return nil, err
	}

	if err := m.buildOutputs(net); err != nil {
		return nil, err
	}

	m.NK = len(m.KSyms)
	m.NY = len(m.YNames)
	return m, nil
}

// buildStoichiometry accumulates signed coefficients per (species, reaction)
// pair; a species on both sides of one reaction sums both contributions.
func (m *Model) buildStoichiometry(net *network.Model, states, inputs []network.Species) error {
	stateIdx := make(map[string]int, len(states))
	for i, s := range states {
		stateIdx[s.Name] = i
	}
	inputIdx := make(map[string]int, len(inputs))
	for i, s := range inputs {
		inputIdx[s.Name] = i
	}

	type key struct{ sp, rx int }
	accX := make(map[key]float64)
	accU := make(map[key]float64)
	var orderX, orderU []key

	add := func(name string, ri int, coeff float64, rxName string) error {
		if si, ok := stateIdx[name]; ok {
			c := m.unitCoeff(coeff, m.XComp[si], net)
			k := key{si, ri}
			if _, seen := accX[k]; !seen {
				orderX = append(orderX, k)
			}
			accX[k] += c
			return nil
		}
		if ui, ok := inputIdx[name]; ok {
			c := m.unitCoeff(coeff, m.UComp[ui], net)
			k := key{ui, ri}
			if _, seen := accU[k]; !seen {
				orderU = append(orderU, k)
			}
			accU[k] += c
			return nil
		}
		return kinerr.Validationf("reaction %q: unknown species %q", rxName, name)
	}

	for ri, r := range net.Reactions {
		for _, ref := range r.Reactants {
			if err := add(ref.Name, ri, -ref.Coefficient, r.Name); err != nil {
				return err
			}
		}
		for _, ref := range r.Products {
			if err := add(ref.Name, ri, ref.Coefficient, r.Name); err != nil {
				return err
			}
		}
	}

	for _, k := range orderX {
		m.Stoich = append(m.Stoich, StoichEntry{Species: k.sp, Reaction: k.rx, Coeff: accX[k]})
	}
	for _, k := range orderU {
		m.StoichU = append(m.StoichU, StoichEntry{Species: k.sp, Reaction: k.rx, Coeff: accU[k]})
	}
	return nil
}

// unitCoeff divides by the compartment size under concentration units and
// leaves amount units raw.
func (m *Model) unitCoeff(coeff float64, comp int, net *network.Model) float64 {
	if net.Concentration {
		return coeff / m.V[comp]
	}
	return coeff
}

// checkRates verifies every remaining free symbol in every rate law is a
// state, input, rate parameter, or time.
func (m *Model) checkRates(net *network.Model) error {
	allowed := make(map[string]struct{}, m.NX+m.NU+len(m.KSyms)+1)
	for _, s := range m.XSyms {
		allowed[s] = struct{}{}
	}
	for _, s := range m.USyms {
		allowed[s] = struct{}{}
	}
	for _, s := range m.KSyms {
		allowed[s] = struct{}{}
	}
	allowed["t"] = struct{}{}

	for ri, e := range m.Rates {
		for sym := range symexpr.FreeSymbols(e) {
			if _, ok := allowed[sym]; !ok {
				return kinerr.Validationf("reaction %q: unresolved symbol %q in rate law",
					net.Reactions[ri].Name, sym)
			}
		}
	}
	return nil
}

func (m *Model) buildOutputs(net *network.Model) error {
	n := len(net.Outputs)
	m.YNames = make([]string, n)
	m.C1 = make([][]float64, n)
	m.C2 = make([][]float64, n)
	m.C = make([]float64, n)
	for yi, o := range net.Outputs {
		m.YNames[yi] = o.Name
		m.C1[yi] = make([]float64, m.NX)
		m.C2[yi] = make([]float64, m.NU)
		m.C[yi] = o.Constant
		for name, coeff := range o.Species {
			if xi := m.StateIndex(name); xi >= 0 {
				m.C1[yi][xi] = coeff
				continue
			}
			if ui := m.InputIndex(name); ui >= 0 {
				m.C2[yi][ui] = coeff
				continue
			}
			return kinerr.Validationf("output %q: unknown species %q", o.Name, name)
		}
	}
	return nil
}
