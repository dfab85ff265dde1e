package bot

import (
	"strings"

	"github.com/CS-5/apalto-bot/config"
	apperr "github.com/CS-5/apalto-bot/errors"
	"github.com/CS-5/apalto-bot/voice"
)

const customIDPrefix = "apalto"

// Panel actions, as they appear in component custom ids.
const (
	actionPickLeader1 = "pickL1"
	actionPickLeader2 = "pickL2"
	actionFinalize    = "finalize"
	actionLeader1     = "leader1"
	actionLeader2     = "leader2"
	actionEnterID     = "enterid"
	actionModal       = "modal"
)

const userIDInput = "userId"

// customID is the state carried by a panel component:
//
//	apalto:<pickL1|pickL2|finalize|leader1|leader2>:<team1>:<team2>
//	apalto:<enterid|modal>:<leader1|leader2>:<team1>:<team2>
type customID struct {
	Action  string
	Slot    int // 1 or 2; 0 for finalize
	Team1ID string
	Team2ID string
}

func (c customID) String() string {
	parts := []string{customIDPrefix, c.Action}
	if c.Action == actionEnterID || c.Action == actionModal {
		parts = append(parts, slotTarget(c.Slot))
	}
	parts = append(parts, c.Team1ID, c.Team2ID)
	return strings.Join(parts, ":")
}

// pairKey identifies the pair the component belongs to.
func (c customID) pairKey() string {
	return voice.PairKey(c.Team1ID, c.Team2ID)
}

func (c customID) with(action string, slot int) customID {
	c.Action = action
	c.Slot = slot
	return c
}

func isPanelID(raw string) bool {
	return strings.HasPrefix(raw, customIDPrefix+":")
}

func parseCustomID(raw string) (customID, error) {
	invalid := func(msg string) (customID, error) {
		return customID{}, apperr.New(apperr.CodeInteractionInvalidData, msg, apperr.Field("custom_id", raw))
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 4 || parts[0] != customIDPrefix {
		return invalid("not a panel component")
	}

	var id customID
	id.Action = parts[1]
	rest := parts[2:]

	switch id.Action {
	case actionPickLeader1, actionLeader1:
		id.Slot = 1
	case actionPickLeader2, actionLeader2:
		id.Slot = 2
	case actionFinalize:
	case actionEnterID, actionModal:
		switch rest[0] {
		case actionLeader1:
			id.Slot = 1
		case actionLeader2:
			id.Slot = 2
		default:
			return invalid("unknown leader slot")
		}
		rest = rest[1:]
	default:
		return invalid("unknown panel action")
	}

	if len(rest) != 2 {
		return invalid("wrong number of fields")
	}
	id.Team1ID, id.Team2ID = rest[0], rest[1]
	if !config.IsSnowflake(id.Team1ID) || !config.IsSnowflake(id.Team2ID) {
		return invalid("team channel ids are not snowflakes")
	}
	return id, nil
}

func slotTarget(slot int) string {
	if slot == 2 {
		return actionLeader2
	}
	return actionLeader1
}
