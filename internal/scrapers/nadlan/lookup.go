package nadlan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"nadlan-export/lib/textutil"

	"github.com/antzucaro/matchr"
)

const (
	pathCities                = "/Main/GetCitysList"
	pathNeighborhoodsByCity   = "/Main/GetNeighborhoodsListByCity"
	pathNeighborhoodKeys      = "/Main/GetNeighborhoodsListKey"
	pathStreetsByCityStarting = "/Main/GetStreetsListByCityAndStartsWith"
)

// ValueKey holds the entry of a lookup list that is not a JSON object.
const ValueKey = "value"

// lookup issues a single GET, lookups are never retried.
func (c *Client) lookup(ctx context.Context, path string, params map[string]string) ([]Record, error) {
	var raw []json.RawMessage
	err := c.getJSON(ctx, path, params, &raw)
	if err != nil {
		c.tel.ReportBroken(report_client_lookup, err, path)
		return nil, err
	}

	out := make([]Record, 0, len(raw))
	for _, entry := range raw {
		trimmed := bytes.TrimSpace(entry)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			var record Record
			err := json.Unmarshal(trimmed, &record)
			if err != nil {
				return nil, fmt.Errorf("json unmarshal %s: %w", path, err)
			}
			out = append(out, record)
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var value any
		err := dec.Decode(&value)
		if err != nil {
			return nil, fmt.Errorf("json unmarshal %s: %w", path, err)
		}
		out = append(out, NewRecord(ValueKey, value))
	}
	return out, nil
}

func (c *Client) GetCities(ctx context.Context) ([]Record, error) {
	return c.lookup(ctx, pathCities, map[string]string{
		"nb": "true",
		"st": "true",
	})
}

func (c *Client) GetNeighborhoodsByCity(ctx context.Context, cityName string) ([]Record, error) {
	return c.lookup(ctx, pathNeighborhoodsByCity, map[string]string{
		"CityName": cityName,
	})
}

func (c *Client) GetNeighborhoodKeys(ctx context.Context) ([]Record, error) {
	return c.lookup(ctx, pathNeighborhoodKeys, map[string]string{
		"startWithKey": "-1",
	})
}

func (c *Client) GetStreetsByCity(ctx context.Context, cityName string) ([]Record, error) {
	return c.lookup(ctx, pathStreetsByCityStarting, map[string]string{
		"CityName":     cityName,
		"startWithKey": "-1",
	})
}

type Match struct {
	Record Record
	Score  float64
}

// RankRecords scores every record by the best Jaro-Winkler similarity between
// the normalized query and any of its normalized string values, and returns
// the ones scoring at least threshold, best first.
func RankRecords(records []Record, query string, threshold float64) []Match {
	query = textutil.NormalizeName(query)

	var matches []Match
	for _, record := range records {
		best := 0.0
		for _, key := range record.keys {
			str, ok := record.values[key].(string)
			if !ok {
				continue
			}
			score := matchr.JaroWinkler(query, textutil.NormalizeName(str), false)
			if score > best {
				best = score
			}
		}
		if best >= threshold {
			matches = append(matches, Match{Record: record, Score: best})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
