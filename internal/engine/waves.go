package engine

type waveGroup struct {
	enemyType EnemyType
	count     int
	healthMod float64
	speedMod  float64
}

type waveConfig struct {
	groups   []waveGroup
	interval float64 // seconds between spawns
}

// Base wave per round, scaling up through round 5. Matches with up to ten
// rounds reuse the final wave with extra health.
var baseWaves = []waveConfig{
	{
		groups:   []waveGroup{{EnemyStudent, 5, 1.0, 1.0}},
		interval: 2.0,
	},
	{
		groups: []waveGroup{
			{EnemyStudent, 7, 1.0, 1.0},
			{EnemyVariableX, 3, 1.0, 1.0},
		},
		interval: 1.8,
	},
	{
		groups: []waveGroup{
			{EnemyStudent, 10, 1.2, 1.1},
			{EnemyVariableX, 5, 1.2, 1.1},
		},
		interval: 1.5,
	},
	{
		groups: []waveGroup{
			{EnemyStudent, 12, 1.5, 1.2},
			{EnemyVariableX, 8, 1.3, 1.2},
		},
		interval: 1.2,
	},
	{
		groups: []waveGroup{
			{EnemyStudent, 15, 2.0, 1.3},
			{EnemyVariableX, 10, 1.5, 1.4},
		},
		interval: 1.0,
	},
}

func waveForRound(round int) waveConfig {
	if round <= len(baseWaves) {
		return baseWaves[round-1]
	}
	last := baseWaves[len(baseWaves)-1]
	extra := float64(round-len(baseWaves)) * 0.2
	scaled := waveConfig{interval: last.interval}
	for _, g := range last.groups {
		g.healthMod += extra
		scaled.groups = append(scaled.groups, g)
	}
	return scaled
}
