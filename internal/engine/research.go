package engine

type ResearchType string

const (
	ResearchLagrange       ResearchType = "lagrange_interpolation"
	ResearchSpline         ResearchType = "spline_interpolation"
	ResearchTangentControl ResearchType = "tangent_control"
)

type ResearchInfo struct {
	Cost          int
	DisplayName   string
	Prerequisites []ResearchType
	// Method is the interpolation method this research unlocks, if any.
	Method InterpMethod
}

var researchInfo = map[ResearchType]ResearchInfo{
	ResearchLagrange: {
		Cost:        500,
		DisplayName: "Lagrange Polynomial",
		Method:      InterpLagrange,
	},
	ResearchSpline: {
		Cost:          1000,
		DisplayName:   "Cubic Spline",
		Prerequisites: []ResearchType{ResearchLagrange},
		Method:        InterpSpline,
	},
	ResearchTangentControl: {
		Cost:        750,
		DisplayName: "Tangent Control",
	},
}

// ResearchCost returns the unlock cost, or -1 for an unknown type.
func ResearchCost(t ResearchType) int {
	info, ok := researchInfo[t]
	if !ok {
		return -1
	}
	return info.Cost
}

// Prerequisites returns the research required before t may be unlocked.
func Prerequisites(t ResearchType) []ResearchType {
	return researchInfo[t].Prerequisites
}

// unlockedMethods returns the interpolation methods available to a player.
// Linear is always available.
func unlockedMethods(p *PlayerState) map[InterpMethod]bool {
	methods := map[InterpMethod]bool{InterpLinear: true}
	for rt := range p.Research {
		if m := researchInfo[rt].Method; m != "" {
			methods[m] = true
		}
	}
	return methods
}
