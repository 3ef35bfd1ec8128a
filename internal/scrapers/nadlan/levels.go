package nadlan

import (
	"fmt"
	"strings"
)

// SearchLevel is the granularity a deals query targets. The values are the
// codes the API expects in the `CurrentLavel` field.
type SearchLevel int

const (
	LevelCity         SearchLevel = 2
	LevelNeighborhood SearchLevel = 3
	LevelStreet       SearchLevel = 4
	LevelGushParcel   SearchLevel = 6
	LevelAddress      SearchLevel = 7
)

// SearchLevels lists every known level in ascending order of its code.
var SearchLevels = []SearchLevel{
	LevelCity,
	LevelNeighborhood,
	LevelStreet,
	LevelGushParcel,
	LevelAddress,
}

var levelNames = map[SearchLevel]string{
	LevelCity:         "city",
	LevelNeighborhood: "neighborhood",
	LevelStreet:       "street",
	LevelGushParcel:   "gush_parcel",
	LevelAddress:      "address",
}

func (l SearchLevel) String() string {
	name, ok := levelNames[l]
	if !ok {
		return fmt.Sprintf("SearchLevel(%d)", int(l))
	}
	return name
}

func (l SearchLevel) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ParseSearchLevel parses the name of a level, as returned by String.
func ParseSearchLevel(name string) (SearchLevel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for level, levelName := range levelNames {
		if levelName == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown search level %q", name)
}
