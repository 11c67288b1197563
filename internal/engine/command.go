package engine

type CommandType string

const (
	CmdPlaceTower         CommandType = "PlaceTower"
	CmdModifyControlPoint CommandType = "ModifyControlPoint"
	CmdSendMercenary      CommandType = "SendMercenary"
	CmdResearch           CommandType = "Research"
	CmdSetInterpolation   CommandType = "SetInterpolation"
	CmdReady              CommandType = "Ready"
)

// PointAction is the sub-operation of a ModifyControlPoint command.
type PointAction string

const (
	PointAdd    PointAction = "add"
	PointMove   PointAction = "move"
	PointRemove PointAction = "remove"
)

type PlaceTowerData struct {
	TowerType TowerType `json:"tower_type"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
}

type ModifyPointData struct {
	Action PointAction `json:"action"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Index  int         `json:"index"`
}

type SendMercenaryData struct {
	MercenaryType MercenaryType `json:"mercenary_type"`
	Quantity      int           `json:"quantity"`
	TargetPlayer  string        `json:"target_player"`
}

type ResearchData struct {
	ResearchType ResearchType `json:"research_type"`
}

type SetInterpolationData struct {
	Method InterpMethod `json:"method"`
}

type ReadyData struct {
	Ready bool `json:"ready"`
}

// Command is a player-issued, serializable action and the only way match
// state may mutate. Exactly one payload field is set, matching Type.
// IssuedAt is diagnostic only; ordering authority is server arrival order.
type Command struct {
	Type     CommandType `json:"command_type"`
	PlayerID string      `json:"player_id"`
	IssuedAt float64     `json:"timestamp,omitempty"`

	PlaceTower       *PlaceTowerData       `json:"place_tower,omitempty"`
	ModifyPoint      *ModifyPointData      `json:"modify_point,omitempty"`
	SendMercenary    *SendMercenaryData    `json:"send_mercenary,omitempty"`
	Research         *ResearchData         `json:"research,omitempty"`
	SetInterpolation *SetInterpolationData `json:"set_interpolation,omitempty"`
	Ready            *ReadyData            `json:"ready,omitempty"`
}

// wellFormed checks that the payload matching Type is present. This is the
// structural step of validation; it says nothing about legality.
func (c Command) wellFormed() bool {
	switch c.Type {
	case CmdPlaceTower:
		return c.PlaceTower != nil
	case CmdModifyControlPoint:
		return c.ModifyPoint != nil
	case CmdSendMercenary:
		return c.SendMercenary != nil
	case CmdResearch:
		return c.Research != nil
	case CmdSetInterpolation:
		return c.SetInterpolation != nil
	case CmdReady:
		return c.Ready != nil
	default:
		return false
	}
}
