package engine

// Pure lookup tables for the economy. They hold no state; the validator
// consults them and never mutates them.

type TowerType string

const (
	TowerDean       TowerType = "dean"
	TowerCalculus   TowerType = "calculus"
	TowerPhysics    TowerType = "physics"
	TowerStatistics TowerType = "statistics"
)

type TowerStats struct {
	Cost     int
	Damage   int
	Range    float64
	Cooldown float64 // seconds between attacks
}

var towerStats = map[TowerType]TowerStats{
	TowerDean:       {Cost: 50, Damage: 10, Range: 2.0, Cooldown: 1.5},
	TowerCalculus:   {Cost: 75, Damage: 25, Range: 5.0, Cooldown: 0.5},
	TowerPhysics:    {Cost: 100, Damage: 50, Range: 4.0, Cooldown: 2.0},
	TowerStatistics: {Cost: 60, Damage: 0, Range: 3.5, Cooldown: 1.0},
}

// TowerCost returns the placement cost, or -1 for an unknown type.
func TowerCost(t TowerType) int {
	s, ok := towerStats[t]
	if !ok {
		return -1
	}
	return s.Cost
}

type EnemyType string

const (
	EnemyStudent   EnemyType = "student"
	EnemyVariableX EnemyType = "variable_x"
)

type EnemyStats struct {
	Health int
	Speed  float64 // horizontal grid units per second
	Reward int
}

var enemyStats = map[EnemyType]EnemyStats{
	EnemyStudent:   {Health: 100, Speed: 1.0, Reward: 10},
	EnemyVariableX: {Health: 50, Speed: 2.0, Reward: 15},
}

type MercenaryType string

const (
	MercReinforcedStudent MercenaryType = "reinforced_student"
	MercSwiftX            MercenaryType = "swift_x"
	MercTankPi            MercenaryType = "tank_pi"
)

type MercenaryStats struct {
	Cost   int
	Health int
	Speed  float64
	Reward int
}

// Mercenary stats derive from the base enemy (hp 100, speed 1.0): +50% hp,
// -30% hp +100% speed, or +200% hp -50% speed.
var mercenaryStats = map[MercenaryType]MercenaryStats{
	MercReinforcedStudent: {Cost: 100, Health: 150, Speed: 1.0, Reward: 15},
	MercSwiftX:            {Cost: 75, Health: 70, Speed: 2.0, Reward: 12},
	MercTankPi:            {Cost: 200, Health: 300, Speed: 0.5, Reward: 30},
}

// MercenaryCost returns the per-unit cost, or -1 for an unknown type.
func MercenaryCost(t MercenaryType) int {
	s, ok := mercenaryStats[t]
	if !ok {
		return -1
	}
	return s.Cost
}
