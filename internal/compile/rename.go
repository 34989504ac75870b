package compile

import "strconv"

// nameIndex is the taken-name set used during collision-free renaming. It
// is built once from every natural name and grows monotonically as new
// systematic names are assigned.
type nameIndex struct {
	taken map[string]struct{}
	next  map[string]int
}

func newNameIndex(natural []string) *nameIndex {
	idx := &nameIndex{
		taken: make(map[string]struct{}, len(natural)),
		next:  make(map[string]int),
	}
	for _, n := range natural {
		idx.taken[n] = struct{}{}
	}
	return idx
}

// assign returns the first free prefix+suffix identifier, starting from the
// prefix's monotone counter, and marks it taken. Names are finite and the
// suffix search is unbounded, so assignment always terminates with a name
// distinct from every natural and every previously assigned name.
func (idx *nameIndex) assign(prefix string) string {
	n := idx.next[prefix]
	for {
		n++
		candidate := prefix + strconv.Itoa(n)
		if _, used := idx.taken[candidate]; !used {
			idx.taken[candidate] = struct{}{}
			idx.next[prefix] = n
			return candidate
		}
	}
}

// assignAll renames a whole category in order.
func (idx *nameIndex) assignAll(prefix string, count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = idx.assign(prefix)
	}
	return out
}
