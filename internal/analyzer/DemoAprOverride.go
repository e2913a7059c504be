/*

This file contains the demo APR override. With the demo flag on, the
refresh path rewrites real APRs into a synthetic exponential-decay curve so
interface walkthroughs show predictable, nicely spread numbers.

*/

package analyzer

import (
	"math"

	"github.com/dexlens/poolscout/internal/types"
)

// ApplyDemoAprOverride rewrites each pool's latest APR, in ranked order, as
// baseApr * exp(-decay * rank). The caller is responsible for recomputing
// any aggregate built from the APRs afterwards, and for logging loudly that
// the figures are synthetic.
func ApplyDemoAprOverride(pools []types.ScoredPool, baseApr float64, decay float64) {
	for i := range pools {
		pools[i].Apr = types.FloatPtr(baseApr * math.Exp(-decay*float64(i)))
	}
}
