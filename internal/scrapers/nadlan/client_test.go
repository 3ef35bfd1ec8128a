package nadlan

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"nadlan-export/internal/components/retry"
	"nadlan-export/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *telemetry.Recorder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	recorder := &telemetry.Recorder{}
	client := NewClient(ClientOptions{
		BaseUrl: server.URL + "/Nadlan.REST/",
		Timeout: 5 * time.Second,
		Retry: retry.Policy{
			MaxAttempts:     6,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      2,
		},
		Telemetry: recorder,
	})
	return client, recorder
}

func TestLegacyTLSConfig(t *testing.T) {
	config := legacyTLSConfig()
	require.Equal(t, uint16(tls.VersionTLS12), config.MinVersion)
	require.Contains(t, config.CipherSuites, tls.TLS_RSA_WITH_AES_128_GCM_SHA256)
	require.Contains(t, config.CipherSuites, tls.TLS_RSA_WITH_AES_256_CBC_SHA)
	require.Contains(t, config.CipherSuites, tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256)
}

func TestFetchDeals(t *testing.T) {
	var received *http.Request
	var body []byte
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		received = r
		body, _ = io.ReadAll(r.Body)

		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{
			"AllResults": [{"GUSH": "1-2-3", "DEALAMOUNT": "1,000"}],
			"IsLastPage": true,
			"ResultLavel": 3
		}`))
	})

	res, err := client.FetchDeals(context.Background(), QueryByNeighborhood("65210992"), 1)
	require.NoError(t, err)
	require.True(t, res.IsLastPage)
	require.Len(t, res.AllResults, 1)
	require.Equal(t, []string{"GUSH", "DEALAMOUNT"}, res.AllResults[0].Keys())

	require.NotNil(t, received)
	require.Equal(t, http.MethodPost, received.Method)
	require.Equal(t, "/Nadlan.REST/Main/GetAssestAndDeals", received.URL.Path)
	require.True(t, received.Close)
	require.JSONEq(t, `{
		"ObjectID": "65210992",
		"CurrentLavel": 3,
		"ObjectKey": "UNIQ_ID",
		"ObjectIDType": "text",
		"PageNo": 2
	}`, string(body))
}

func TestFetchDealsRetriesTransientFailures(t *testing.T) {
	var hits int32
	client, recorder := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"AllResults": [], "IsLastPage": true}`))
	})

	res, err := client.FetchDeals(context.Background(), QueryByCity("5000"), 0)
	require.NoError(t, err)
	require.True(t, res.IsLastPage)
	require.EqualValues(t, 4, atomic.LoadInt32(&hits))
	require.Len(t, recorder.Find("warning", report_client_fetch_deals), 3)
}

func TestFetchDealsRetriesDecodeFailures(t *testing.T) {
	var hits int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Write([]byte(`<html>maintenance</html>`))
			return
		}
		w.Write([]byte(`{"AllResults": [], "IsLastPage": true}`))
	})

	_, err := client.FetchDeals(context.Background(), QueryByCity("5000"), 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestFetchDealsGivesUp(t *testing.T) {
	var hits int32
	client, recorder := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FetchDeals(context.Background(), QueryByCity("5000"), 0)
	require.Error(t, err)
	require.EqualValues(t, 6, atomic.LoadInt32(&hits))

	var exhausted *retry.ExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 6, exhausted.Attempts)

	var transient *TransientNetworkError
	require.ErrorAs(t, err, &transient)
	require.Equal(t, http.StatusServiceUnavailable, transient.StatusCode)
	require.Len(t, recorder.Find("broken", report_client_fetch_deals), 1)
}

func TestFetchDealsStatusError(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("blocked"))
	})

	_, err := client.FetchDeals(context.Background(), QueryByCity("5000"), 0)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	require.Equal(t, "blocked", statusErr.Body)
}

func TestDealsThroughClient(t *testing.T) {
	var queries []DealsQuery
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var query DealsQuery
		json.NewDecoder(r.Body).Decode(&query)
		queries = append(queries, query)
		w.Write([]byte(`{
			"AllResults": [{"GUSH": "6638-52-3", "DEALAMOUNT": "1,500,000", "DEALDATETIME": "2023-05-01T00:00:00"}],
			"IsLastPage": false
		}`))
	})

	it := client.Deals(Target{CityID: "5000", NeighborhoodID: "65210992"}, PagerOptions{MaxPages: 3})
	count := 0
	for it.Next(context.Background()) {
		require.Equal(t, int64(1500000), it.Deal().Price)
		count++
	}
	require.NoError(t, it.Err())
	require.Equal(t, 3, count)

	require.Len(t, queries, 3)
	for i, query := range queries {
		require.Equal(t, i+1, query.PageNo)
		require.Equal(t, "65210992", query.ObjectID)
		require.Equal(t, LevelNeighborhood, query.CurrentLavel)
	}
}

func TestDealsByObjectID(t *testing.T) {
	var queries []DealsQuery
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var query DealsQuery
		json.NewDecoder(r.Body).Decode(&query)
		queries = append(queries, query)
		w.Write([]byte(`{"AllResults": [], "IsLastPage": true}`))
	})

	it := client.DealsByObjectID("1234", LevelStreet, DefaultPagerOptions())
	require.False(t, it.Next(context.Background()))
	require.NoError(t, it.Err())
	require.Len(t, queries, 1)
	require.Equal(t, "1234", queries[0].ObjectID)
	require.Equal(t, LevelStreet, queries[0].CurrentLavel)
	require.Nil(t, queries[0].Gush)

	it = client.DealsByObjectID("1234", LevelGushParcel, DefaultPagerOptions())
	require.False(t, it.Next(context.Background()))
	require.Error(t, it.Err())

	it = client.DealsByObjectID(" ", LevelAddress, DefaultPagerOptions())
	require.False(t, it.Next(context.Background()))
	require.ErrorIs(t, it.Err(), ErrNoTarget)
	require.Len(t, queries, 1)
}

func TestDealsWithoutTarget(t *testing.T) {
	var hits int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	it := client.Deals(Target{}, DefaultPagerOptions())
	require.False(t, it.Next(context.Background()))
	require.ErrorIs(t, it.Err(), ErrNoTarget)
	require.Zero(t, atomic.LoadInt32(&hits))
}

func TestLookupsAreNotRetried(t *testing.T) {
	var hits int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.GetCities(context.Background())
	var transient *TransientNetworkError
	require.ErrorAs(t, err, &transient)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestLookups(t *testing.T) {
	var methods []string
	queries := map[string]url.Values{}
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		queries[r.URL.Path] = r.URL.Query()

		switch r.URL.Path {
		case "/Nadlan.REST/Main/GetCitysList":
			w.Write([]byte(`[{"Key": "5000", "Value": "תל אביב"}, {"Key": "2000", "Value": "צור יגאל"}]`))
		case "/Nadlan.REST/Main/GetNeighborhoodsListByCity":
			w.Write([]byte(`[{"Key": "65210992", "Value": "כוכב יאיר"}]`))
		case "/Nadlan.REST/Main/GetNeighborhoodsListKey":
			w.Write([]byte(`["a", "b"]`))
		case "/Nadlan.REST/Main/GetStreetsListByCityAndStartsWith":
			w.Write([]byte(`[{"Key": 1, "Value": "הרימון"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	cities, err := client.GetCities(ctx)
	require.NoError(t, err)
	require.Len(t, cities, 2)
	value, _ := cities[1].Get("Value")
	require.Equal(t, "צור יגאל", value)

	neighborhoods, err := client.GetNeighborhoodsByCity(ctx, "צור יגאל")
	require.NoError(t, err)
	require.Len(t, neighborhoods, 1)

	keys, err := client.GetNeighborhoodKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	value, _ = keys[0].Get(ValueKey)
	require.Equal(t, "a", value)

	streets, err := client.GetStreetsByCity(ctx, "צור יגאל")
	require.NoError(t, err)
	key, _ := streets[0].Get("Key")
	require.Equal(t, json.Number("1"), key)

	require.Equal(t, []string{http.MethodGet, http.MethodGet, http.MethodGet, http.MethodGet}, methods)
	require.Equal(t, "true", queries["/Nadlan.REST/Main/GetCitysList"].Get("nb"))
	require.Equal(t, "true", queries["/Nadlan.REST/Main/GetCitysList"].Get("st"))
	require.Equal(t, "צור יגאל", queries["/Nadlan.REST/Main/GetNeighborhoodsListByCity"].Get("CityName"))
	require.Equal(t, "-1", queries["/Nadlan.REST/Main/GetNeighborhoodsListKey"].Get("startWithKey"))
	require.Equal(t, "צור יגאל", queries["/Nadlan.REST/Main/GetStreetsListByCityAndStartsWith"].Get("CityName"))
	require.Equal(t, "-1", queries["/Nadlan.REST/Main/GetStreetsListByCityAndStartsWith"].Get("startWithKey"))
}

func TestRankRecords(t *testing.T) {
	records := []Record{
		NewRecord("Key", "1", "Value", "Tel Aviv"),
		NewRecord("Key", "2", "Value", "Tzur Yigal"),
		NewRecord("Key", "3", "Value", "Kochav Yair"),
	}

	matches := RankRecords(records, "kochav yair", 0.8)
	require.NotEmpty(t, matches)
	key, _ := matches[0].Record.Get("Key")
	require.Equal(t, "3", key)
	require.InDelta(t, 1.0, matches[0].Score, 0.0001)

	require.Len(t, RankRecords(records, "tzur", 0), 3)
}
