package sequence

import (
	"fmt"

	"github.com/taskolib/taskolib/step"
)

// frame tracks one open if/while/try block during the single linear scan.
type frame struct {
	kind        step.Type
	openerIndex int
	chain       []int // elseif/else indices, in order (If frames only)
	sawElse     bool
	sawCatch    bool
	catchIndex  int
}

// computeStructure performs a single linear scan over the step list,
// matching every if/while/try opener to its terminating end, validating
// elseif/else/catch placement against an explicit stack of open frames. It
// returns the opener→end map, the if→chain map, the try→catch map, and (on
// failure) the index of the first offending step and a diagnostic reason.
func computeStructure(steps []*step.Step) (matches map[int]int, chains map[int][]int, catchOf map[int]int, invalidIndex int, reason string, ok bool) {
	matches = make(map[int]int)
	chains = make(map[int][]int)
	catchOf = make(map[int]int)

	var stack []*frame

	fail := func(idx int, format string, args ...interface{}) (map[int]int, map[int][]int, map[int]int, int, string, bool) {
		return nil, nil, nil, idx, fmt.Sprintf(format, args...), false
	}

	for i, st := range steps {
		switch st.Type() {
		case step.Action:
			// No structural effect; valid at any nesting depth.

		case step.If, step.While, step.Try:
			stack = append(stack, &frame{kind: st.Type(), openerIndex: i})

		case step.ElseIf:
			if len(stack) == 0 {
				return fail(i, "elseif at step %d has no enclosing if", i)
			}
			top := stack[len(stack)-1]
			if top.kind != step.If {
				return fail(i, "elseif at step %d does not match enclosing %s opened at step %d", i, top.kind, top.openerIndex)
			}
			if top.sawElse {
				return fail(i, "elseif at step %d follows an else in the same if opened at step %d", i, top.openerIndex)
			}
			top.chain = append(top.chain, i)

		case step.Else:
			if len(stack) == 0 {
				return fail(i, "else at step %d has no enclosing if", i)
			}
			top := stack[len(stack)-1]
			if top.kind != step.If {
				return fail(i, "else at step %d does not match enclosing %s opened at step %d", i, top.kind, top.openerIndex)
			}
			if top.sawElse {
				return fail(i, "duplicate else at step %d for if opened at step %d", i, top.openerIndex)
			}
			top.sawElse = true
			top.chain = append(top.chain, i)

		case step.Catch:
			if len(stack) == 0 {
				return fail(i, "catch at step %d has no enclosing try", i)
			}
			top := stack[len(stack)-1]
			if top.kind != step.Try {
				return fail(i, "catch at step %d does not match enclosing %s opened at step %d", i, top.kind, top.openerIndex)
			}
			if top.sawCatch {
				return fail(i, "duplicate catch at step %d for try opened at step %d", i, top.openerIndex)
			}
			top.sawCatch = true
			top.catchIndex = i

		case step.End:
			if len(stack) == 0 {
				return fail(i, "end at step %d has no matching opener", i)
			}
			top := stack[len(stack)-1]
			if top.kind == step.Try && !top.sawCatch {
				return fail(top.openerIndex, "try opened at step %d has no catch before its end at step %d", top.openerIndex, i)
			}
			stack = stack[:len(stack)-1]
			matches[top.openerIndex] = i
			if top.kind == step.If {
				chains[top.openerIndex] = top.chain
			}
			if top.kind == step.Try {
				catchOf[top.openerIndex] = top.catchIndex
			}

		default:
			return fail(i, "step %d has unknown type", i)
		}
	}

	if len(stack) != 0 {
		top := stack[len(stack)-1]
		return fail(top.openerIndex, "%s opened at step %d has no matching end", top.kind, top.openerIndex)
	}

	return matches, chains, catchOf, -1, "", true
}
