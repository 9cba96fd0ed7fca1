package pricing

const (
	// TimeFloor is the expiry below which an option is worth its raw intrinsic value.
	TimeFloor = 1e-12

	// TotalVolFloor is the volatility*sqrt(time) below which the distribution
	// has collapsed and the option is worth its discounted intrinsic value.
	TotalVolFloor = 1e-10

	// Early-exercise boundary search.
	boundaryTolerance     = 1e-12
	boundaryMaxIterations = 200
	// A boundary further than this factor from the strike is never reached.
	boundaryExpansion = 1e8

	// Finite-difference bumps for the American Greeks that are not analytic.
	volBump      = 1e-4
	timeBump     = 1e-4
	rateBump     = 1e-4
	dividendBump = 1e-4

	// Volatility returned by ImpliedVolSeed when no closed-form estimate exists.
	defaultSeed = 0.2
)
