package bytecode

import "fmt"

// Optimize fuses short instruction sequences into single-dispatch fused
// opcodes. Only the major of the first instruction of a sequence changes;
// the remaining instructions stay where they are, so the canonical program
// (via Major.External) is identical before and after. Sequences never span
// a jump target.
//
// The object must be relocated and not yet frozen. Optimize returns the
// number of sequences fused.
func (o *Object) Optimize() (int, error) {
	o.checkMutable()

	targets := make(map[int]bool)
	for i, op := range o.code {
		if op.Major.IsFused() {
			return 0, fmt.Errorf("%s: already optimized at %d", o.name, i)
		}
		if op.IsSymbolic() {
			return 0, fmt.Errorf("%s: not relocated (symbolic jump at %d)", o.name, i)
		}
		if op.IsJumpOrCatch() {
			targets[int(op.Arg)] = true
		}
	}

	// inner reports whether instruction i can be the non-first member of
	// a fused sequence.
	inner := func(i int) bool { return i < len(o.code) && !targets[i] }
	isCondJump := func(i int) bool {
		op := o.code[i]
		return op.IsRegularJump() && !op.IsLabel()
	}

	fused := 0
	for i := 0; i < len(o.code); {
		op := o.code[i]
		switch {
		case op.Major == MajorPush && inner(i+1) && inner(i+2) &&
			o.code[i+1].Major == MajorBinary && isCondJump(i+2):
			o.code[i].Major = MajorFusedComparison2
			i += 3
		case op.Major == MajorPush && inner(i+1) && o.code[i+1].Major == MajorBinary:
			o.code[i].Major = MajorFusedBinary
			i += 2
		case op.Major == MajorPush && Scope(op.Minor) == ScopeLocal && inner(i+1) &&
			o.code[i+1].Major == MajorUnary &&
			(UnaryOp(o.code[i+1].Minor) == UnInc || UnaryOp(o.code[i+1].Minor) == UnDec):
			o.code[i].Major = MajorInplaceUnary
			i += 2
		case op.Major == MajorPush && inner(i+1) && o.code[i+1].Major == MajorUnary:
			o.code[i].Major = MajorFusedUnary
			i += 2
		case op.Major == MajorBinary && inner(i+1) && isCondJump(i+1):
			o.code[i].Major = MajorFusedComparison
			i += 2
		default:
			i++
			continue
		}
		fused++
	}
	return fused, nil
}
