package engine

import "sort"

// InterpMethod names an interpolation method. Method and resolution are part
// of the synchronized route state: both peers must feed identical inputs to
// the interpolator or combat desyncs.
type InterpMethod string

const (
	InterpLinear   InterpMethod = "linear"
	InterpLagrange InterpMethod = "lagrange"
	InterpSpline   InterpMethod = "spline"
)

// xEpsilon is the minimum X separation between control points. The route is
// a mathematical function of X; duplicate X values would break every
// interpolation method.
const xEpsilon = 0.01

// ControlPoint is a user-placed node of an attack path. Locked becomes
// permanently true once the creating round ends; locked points are never
// mutated or removed again.
type ControlPoint struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	RoundCreated int     `json:"round_created"`
	Locked       bool    `json:"locked"`
}

// Route is the ordered control-point sequence (unique X, ascending) plus the
// selected interpolation method for one player's incoming path. The counters
// track per-round modification quotas; they reset when the editing phase
// exits.
type Route struct {
	Points            []ControlPoint `json:"points"`
	Method            InterpMethod   `json:"method"`
	Resolution        int            `json:"resolution"`
	ModifiedThisRound int            `json:"modified_this_round"`
}

func (r *Route) sortPoints() {
	sort.Slice(r.Points, func(i, j int) bool { return r.Points[i].X < r.Points[j].X })
}

// hasX reports whether any point other than skip sits within xEpsilon of x.
func (r *Route) hasX(x float64, skip int) bool {
	for i, p := range r.Points {
		if i == skip {
			continue
		}
		if diff := p.X - x; diff < xEpsilon && diff > -xEpsilon {
			return true
		}
	}
	return false
}

func (r *Route) addPoint(x, y float64, round int) {
	r.Points = append(r.Points, ControlPoint{X: x, Y: y, RoundCreated: round})
	r.sortPoints()
}

func (r *Route) movePoint(index int, x, y float64) {
	r.Points[index].X = x
	r.Points[index].Y = y
	r.sortPoints()
}

func (r *Route) removePoint(index int) {
	r.Points = append(r.Points[:index], r.Points[index+1:]...)
}

// lockCurrentRound marks every point created in the given round as locked
// and resets the modification counter. Called when the editing phase exits.
func (r *Route) lockCurrentRound(round int) {
	for i := range r.Points {
		if r.Points[i].RoundCreated == round {
			r.Points[i].Locked = true
		}
	}
	r.ModifiedThisRound = 0
}

// ControlXYs returns the points as coordinate pairs for the interpolator.
func (r *Route) ControlXYs() [][2]float64 {
	xy := make([][2]float64, len(r.Points))
	for i, p := range r.Points {
		xy[i] = [2]float64{p.X, p.Y}
	}
	return xy
}

func (r *Route) clone() Route {
	out := *r
	out.Points = append([]ControlPoint(nil), r.Points...)
	return out
}
