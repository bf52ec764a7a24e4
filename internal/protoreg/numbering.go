package protoreg

import (
	"hash/fnv"
	"sort"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	maxFieldNumber     = 31767
	reservedRangeStart = 19000
	reservedRangeEnd   = 19999
)

// allocateFieldNumbers numbers the fields of a record message from their
// names, so adding an attribute never renumbers the existing ones.
func allocateFieldNumbers(fieldBuilders []*protobuilder.FieldBuilder) {
	names := make([]string, len(fieldBuilders))
	for i, fb := range fieldBuilders {
		names[i] = string(fb.Name())
	}
	for i, n := range fieldNumbers(names) {
		fieldBuilders[i].SetNumber(protoreflect.FieldNumber(n))
	}
}

// fieldNumbers assigns deterministic tag numbers:
//  1. candidate = FNV32a(name) % 31767 + 1
//  2. the reserved block 19000-19999 is skipped
//  3. collisions probe linearly, wrapping to 1
//
// Names are processed in sorted order so collision resolution is stable.
func fieldNumbers(names []string) []int {
	if len(names) == 0 {
		return nil
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return names[order[a]] < names[order[b]] })

	out := make([]int, len(names))
	used := make(map[int]struct{}, len(names))
	for _, idx := range order {
		start := int(fnv32(names[idx])%maxFieldNumber) + 1
		cand := start
		for {
			if cand >= reservedRangeStart && cand <= reservedRangeEnd {
				cand = reservedRangeEnd + 1
			}
			if _, taken := used[cand]; !taken {
				used[cand] = struct{}{}
				out[idx] = cand
				break
			}
			cand++
			if cand > maxFieldNumber {
				cand = 1
			}
			if cand == start {
				panic("protoreg: exhausted field number space")
			}
		}
	}
	return out
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
