package naga_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/naga"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const listPayload = `{
  "report": [
    ["custom_haihu_2024-05-10T21:00:00_ABCDEF0123456789",
     [["A", 10], ["B", 20], ["C", 30], ["D", 40]],
     "rep-1", 0, [2, 0, 2], 0]
  ],
  "order": [
    ["custom_haihu_2024-05-10T21:00:00_ABCDEF0123456789", 0, [2, 0, 2], 0],
    {"haihu_id": "2024051021gm-0009-0000-aaaa", "status": 1, "model": {"major": 2, "minor": 0, "type": 1}, "rule": 0}
  ]
}`

func TestOrderReportList_DecodesTuplesAndObjects(t *testing.T) {
	var l naga.OrderReportList
	require.NoError(t, json.Unmarshal([]byte(listPayload), &l))

	require.Len(t, l.Reports, 1)
	r := l.Reports[0]
	require.Equal(t, "rep-1", r.ReportID)
	require.Equal(t, naga.Nishiki, r.Model.Type)
	require.Equal(t, naga.Hanchan, r.Rule)
	require.Equal(t, naga.ReportPlayer{Nickname: "D", Pt: 40}, r.Players[3])

	require.Len(t, l.Orders, 2)
	require.Equal(t, naga.OrderOK, l.Orders[0].Status)
	require.Equal(t, naga.OrderAnalyzing, l.Orders[1].Status)
	require.Equal(t, naga.Gamma, l.Orders[1].Model.Type)

	found, ok := l.FindReport(r.HaihuID, naga.Nishiki)
	require.True(t, ok)
	require.Equal(t, r, found)
	_, ok = l.FindReport(r.HaihuID, naga.Omega)
	require.False(t, ok)
	require.True(t, l.HasOrder("2024051021gm-0009-0000-aaaa", naga.Gamma))
	require.False(t, l.HasOrder("2024051021gm-0009-0000-aaaa", naga.Kagashi))

	merged := l.Merge(naga.OrderReportList{Orders: []naga.Order{{HaihuID: "x"}}})
	require.Len(t, merged.Orders, 3)
	require.Len(t, l.Orders, 2)
}

func TestCustomHaihuID_RoundTripsTime(t *testing.T) {
	at := time.Date(2024, 5, 10, 12, 0, 7, 0, time.UTC)
	id := naga.CustomHaihuID(at)
	require.Regexp(t, `^custom_haihu_2024-05-10T21:00:07_[0-9A-F]{16}$`, id)

	got, ok := naga.ParseCustomHaihuTime(id)
	require.True(t, ok)
	require.True(t, got.Equal(at))

	_, ok = naga.ParseCustomHaihuTime("2024051021gm-0009-0000-aaaa")
	require.False(t, ok)
}

func TestParseTenhouRef(t *testing.T) {
	id, seat, err := naga.ParseTenhouRef("https://tenhou.net/0/?log=2024051021gm-0009-0000-aaaa&tw=2")
	require.NoError(t, err)
	require.Equal(t, "2024051021gm-0009-0000-aaaa", id)
	require.Equal(t, 2, seat)

	id, seat, err = naga.ParseTenhouRef("2024051021gm-0009-0000-bbbb")
	require.NoError(t, err)
	require.Equal(t, "2024051021gm-0009-0000-bbbb", id)
	require.Zero(t, seat)

	for _, bad := range []string{"", "https://tenhou.net/0/?log=&tw=1", "https://tenhou.net/0/?log=x&tw=7", "not a ref"} {
		_, _, err := naga.ParseTenhouRef(bad)
		require.ErrorIs(t, err, common.ErrInvalidInput, bad)
	}
}

func TestModels(t *testing.T) {
	require.Equal(t, naga.Nishiki, naga.DefaultModel(naga.Hanchan))
	require.Equal(t, naga.Sigma, naga.DefaultModel(naga.Tonpuu))
	require.Equal(t, "kagashi", naga.ModelName(naga.Hanchan, naga.Kagashi))
	require.Equal(t, "nu", naga.ModelName(naga.Tonpuu, naga.Nu))

	m, err := naga.ParseModel(naga.Tonpuu, "sigma")
	require.NoError(t, err)
	require.Equal(t, naga.Sigma, m)
	_, err = naga.ParseModel(naga.Tonpuu, "omega")
	require.Error(t, err)
	require.False(t, naga.Kagashi.Valid(naga.Tonpuu))
}

func TestMonthRange(t *testing.T) {
	begin, end := naga.MonthRange(2024, 12)
	require.Equal(t, time.Date(2024, 11, 30, 15, 0, 0, 0, time.UTC), begin.UTC())
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, naga.JST), end)
}

func TestHTTPClient_OrderReportList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/naga_report/api/order_report_list/", r.URL.Path)
		assert.Equal(t, "2024", r.URL.Query().Get("year"))
		assert.Equal(t, "5", r.URL.Query().Get("month"))
		assert.Equal(t, "csrftoken=tok; naga-report-session-id=sess", r.Header.Get("Cookie"))
		assert.Contains(t, r.Header.Get("Referer"), "/naga_report/order_report_list/")
		_, _ = io.WriteString(w, listPayload)
	}))
	defer srv.Close()

	c := naga.NewHTTPClient(naga.HTTPConfig{
		BaseURL: srv.URL + "/naga_report/api",
		Cookies: map[string]string{"csrftoken": "tok", "naga-report-session-id": "sess"},
	}, discard())
	defer c.Close()

	l, err := c.OrderReportList(t.Context(), 2024, 5)
	require.NoError(t, err)
	require.Len(t, l.Orders, 2)
}

func TestHTTPClient_AnalyzeSendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "tok2", r.PostForm.Get("csrfmiddlewaretoken"))
		assert.Contains(t, r.Header.Get("Referer"), "/order_form/")
		switch r.URL.Path {
		case "/api/url_analyze/":
			assert.Equal(t, "2024051021gm-0009-0000-aaaa", r.PostForm.Get("haihu_id"))
			assert.Equal(t, "1", r.PostForm.Get("seat"))
			assert.Equal(t, "0", r.PostForm.Get("reanalysis"))
			assert.Equal(t, "2", r.PostForm.Get("player_type"))
			_, _ = io.WriteString(w, `{"status": 400, "msg": "already analysed"}`)
		case "/api/custom_haihu_analyze/":
			assert.Equal(t, `[{"log":[]}]`, r.PostForm.Get("json_data"))
			assert.Equal(t, "1", r.PostForm.Get("game_type"))
			assert.Equal(t, "1", r.PostForm.Get("player_type"))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := naga.NewHTTPClient(naga.HTTPConfig{BaseURL: srv.URL + "/api", Cookies: map[string]string{"csrftoken": "tok"}}, discard())
	// cookies are hot-swapped without rebuilding the client
	c.SetCookies(map[string]string{"csrftoken": "tok2", "naga-report-session-id": "s"})

	res, err := c.AnalyzeTenhou(t.Context(), naga.TenhouRequest{HaihuID: "2024051021gm-0009-0000-aaaa", Seat: 1, ModelType: naga.Nishiki})
	require.NoError(t, err)
	require.False(t, res.Accepted())
	require.Equal(t, "already analysed", res.Msg)

	err = c.AnalyzeCustom(t.Context(), naga.CustomRequest{Data: json.RawMessage(`[{"log":[]}]`), Rule: naga.Tonpuu, ModelType: naga.Sigma})
	require.NoError(t, err)
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusFound)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(status.Load())
		if code == http.StatusFound {
			http.Redirect(w, r, "/accounts/login/", code)
			return
		}
		w.WriteHeader(code)
	}))
	defer srv.Close()

	c := naga.NewHTTPClient(naga.HTTPConfig{BaseURL: srv.URL + "/api", Cookies: map[string]string{"csrftoken": "tok"}}, discard())

	_, err := c.OrderReportList(t.Context(), 2024, 5)
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	require.True(t, naga.IsInvalidCredentials(err))

	status.Store(http.StatusBadGateway)
	_, err = c.OrderReportList(t.Context(), 2024, 5)
	require.ErrorIs(t, err, common.ErrTransientNetwork)

	status.Store(http.StatusBadRequest)
	_, err = c.OrderReportList(t.Context(), 2024, 5)
	require.ErrorIs(t, err, common.ErrUpstreamRejected)

	c.SetCookies(nil)
	err = c.AnalyzeCustom(t.Context(), naga.CustomRequest{Data: json.RawMessage(`[]`)})
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestHTTPClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := naga.NewHTTPClient(naga.HTTPConfig{BaseURL: base, Timeout: time.Second}, discard())
	_, err := c.OrderReportList(t.Context(), 2024, 5)
	require.ErrorIs(t, err, common.ErrTransientNetwork)
}

func TestFakeClient_ReportAppearsAfterDelay(t *testing.T) {
	f := naga.NewFakeClient(20*time.Millisecond, discard())
	defer f.Close()

	require.NoError(t, f.AnalyzeCustom(t.Context(), naga.CustomRequest{Data: json.RawMessage(`[]`), ModelType: naga.Nishiki}))
	require.EqualValues(t, 1, f.Submissions())

	now := time.Now().In(naga.JST)
	l, err := f.OrderReportList(t.Context(), now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Len(t, l.Orders, 1)
	require.Empty(t, l.Reports)
	haihuID := l.Orders[0].HaihuID
	_, ok := naga.ParseCustomHaihuTime(haihuID)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		l, err := f.OrderReportList(context.Background(), now.Year(), int(now.Month()))
		if err != nil {
			return false
		}
		_, ok := l.FindReport(haihuID, naga.Nishiki)
		return ok
	}, time.Second, 5*time.Millisecond)

	prev := now.AddDate(0, -1, 0)
	l, err = f.OrderReportList(t.Context(), prev.Year(), int(prev.Month()))
	require.NoError(t, err)
	require.Empty(t, l.Orders)
}

func TestFakeClient_TenhouRejection(t *testing.T) {
	f := naga.NewFakeClient(time.Hour, discard())
	defer f.Close()

	f.SetTenhouRejection("no such log")
	res, err := f.AnalyzeTenhou(t.Context(), naga.TenhouRequest{HaihuID: "x"})
	require.NoError(t, err)
	require.False(t, res.Accepted())
	require.Equal(t, "no such log", res.Msg)
	require.Zero(t, f.Submissions())
}
