package nadlan

import (
	"errors"
	"strings"
)

const (
	objectKeyUniqID  = "UNIQ_ID"
	objectIDTypeText = "text"
)

// DealsQuery is the body of a GetAssestAndDeals request. Fields that do not apply
// to a query shape are left out of the payload, Gush and Parcel are pointers so
// a set 0 is still sent.
type DealsQuery struct {
	ObjectID string `json:"ObjectID,omitempty"`
	Gush     *int   `json:"Gush,omitempty"`
	Parcel   *int   `json:"Parcel,omitempty"`
	// sic, the API only accepts this spelling
	CurrentLavel SearchLevel `json:"CurrentLavel"`
	ObjectKey    string      `json:"ObjectKey,omitempty"`
	ObjectIDType string      `json:"ObjectIDType,omitempty"`
	// 1-based, set through WithPage
	PageNo int `json:"PageNo"`
}

// WithPage returns a copy of q for the given 0-based page.
func (q DealsQuery) WithPage(page int) DealsQuery {
	q.PageNo = page + 1
	return q
}

func QueryByObjectID(objectID string, level SearchLevel) DealsQuery {
	return DealsQuery{
		ObjectID:     objectID,
		CurrentLavel: level,
		ObjectKey:    objectKeyUniqID,
		ObjectIDType: objectIDTypeText,
	}
}

func QueryByGushParcel(gush, parcel int) DealsQuery {
	return DealsQuery{
		Gush:         &gush,
		Parcel:       &parcel,
		CurrentLavel: LevelGushParcel,
	}
}

func QueryByCity(cityID string) DealsQuery {
	return QueryByObjectID(cityID, LevelCity)
}

func QueryByNeighborhood(neighborhoodID string) DealsQuery {
	return QueryByObjectID(neighborhoodID, LevelNeighborhood)
}

var ErrNoTarget = errors.New("nadlan: neither a city nor a neighborhood id was given")

// Target is the area a deals export covers. When both ids are set the
// neighborhood wins.
type Target struct {
	CityID         string
	NeighborhoodID string
}

// Resolve returns the object id and level the target searches by.
func (t Target) Resolve() (string, SearchLevel, error) {
	if id := strings.TrimSpace(t.NeighborhoodID); id != "" {
		return id, LevelNeighborhood, nil
	}
	if id := strings.TrimSpace(t.CityID); id != "" {
		return id, LevelCity, nil
	}
	return "", 0, ErrNoTarget
}

func (t Target) Query() (DealsQuery, error) {
	objectID, level, err := t.Resolve()
	if err != nil {
		return DealsQuery{}, err
	}
	return QueryByObjectID(objectID, level), nil
}
