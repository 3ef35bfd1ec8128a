package nadlan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fields of a raw deal record that enrichment reads.
const (
	FieldGush         = "GUSH"
	FieldDealAmount   = "DEALAMOUNT"
	FieldDealDateTime = "DEALDATETIME"
)

// Columns enrichment appends to a record.
const (
	ColumnBlock    = "block"
	ColumnParcel   = "parcel"
	ColumnLot      = "lot"
	ColumnPrice    = "price"
	ColumnDealTime = "deal_time"
)

// Deal is a raw deal record along with the fields derived from it.
type Deal struct {
	Raw Record

	Block    string
	Parcel   string
	Lot      string
	Price    int64
	DealTime time.Time
}

// Record renders the deal as its raw fields followed by the derived columns.
func (d Deal) Record() Record {
	out := d.Raw.Clone()
	out.Set(ColumnBlock, d.Block)
	out.Set(ColumnParcel, d.Parcel)
	out.Set(ColumnLot, d.Lot)
	out.Set(ColumnPrice, d.Price)
	out.Set(ColumnDealTime, d.DealTime)
	return out
}

var (
	errMissing   = errors.New("missing")
	errNotString = errors.New("not a string")
)

func stringField(raw Record, field string) (string, error) {
	value, ok := raw.Get(field)
	if !ok || value == nil {
		return "", &MalformedRecordError{Field: field, Value: value, Err: errMissing}
	}
	str, ok := value.(string)
	if !ok {
		return "", &MalformedRecordError{Field: field, Value: value, Err: errNotString}
	}
	return str, nil
}

func parseGush(raw Record) (block, parcel, lot string, err error) {
	gush, err := stringField(raw, FieldGush)
	if err != nil {
		return "", "", "", err
	}
	parts := strings.Split(gush, "-")
	if len(parts) != 3 {
		return "", "", "", &MalformedRecordError{
			Field: FieldGush,
			Value: gush,
			Err:   fmt.Errorf("expected 3 parts separated by '-', got %d", len(parts)),
		}
	}
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
		if parts[i] == "" {
			return "", "", "", &MalformedRecordError{
				Field: FieldGush,
				Value: gush,
				Err:   fmt.Errorf("part %d is empty", i+1),
			}
		}
	}
	return parts[0], parts[1], parts[2], nil
}

func parsePrice(raw Record) (int64, error) {
	value, ok := raw.Get(FieldDealAmount)
	if !ok || value == nil {
		return 0, &MalformedRecordError{Field: FieldDealAmount, Value: value, Err: errMissing}
	}

	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.ReplaceAll(v, ",", "")
	default:
		return 0, &MalformedRecordError{Field: FieldDealAmount, Value: value, Err: errNotString}
	}

	price, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, &MalformedRecordError{Field: FieldDealAmount, Value: value, Err: err}
	}
	return price, nil
}

// fractional seconds are accepted after the seconds field even though the
// layouts do not spell them out
var dealTimeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDealTime(raw Record) (time.Time, error) {
	str, err := stringField(raw, FieldDealDateTime)
	if err != nil {
		return time.Time{}, err
	}
	str = strings.TrimSpace(str)
	for _, layout := range dealTimeLayouts {
		t, err := time.Parse(layout, str)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, &MalformedRecordError{
		Field: FieldDealDateTime,
		Value: str,
		Err:   errors.New("not an ISO-8601 date-time"),
	}
}

// Enrich derives the block, parcel, lot, price and deal time of a raw deal record.
// It fails with a *MalformedRecordError and never modifies raw.
func Enrich(raw Record) (Deal, error) {
	block, parcel, lot, err := parseGush(raw)
	if err != nil {
		return Deal{}, err
	}
	price, err := parsePrice(raw)
	if err != nil {
		return Deal{}, err
	}
	dealTime, err := parseDealTime(raw)
	if err != nil {
		return Deal{}, err
	}

	return Deal{
		Raw:      raw,
		Block:    block,
		Parcel:   parcel,
		Lot:      lot,
		Price:    price,
		DealTime: dealTime,
	}, nil
}
