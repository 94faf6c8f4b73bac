package naga

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

// JST is the zone NAGA stamps custom orders in and buckets its monthly lists by.
var JST = time.FixedZone("JST", 9*60*60)

const (
	customHaihuPrefix = "custom_haihu_"
	customHaihuLayout = "2006-01-02T15:04:05"
	reportPageURL     = "https://naga.dmv.nico/htmls/%s.html?tw=%d"
)

// CustomHaihuID builds the id NAGA assigns to an uploaded game submitted at t.
func CustomHaihuID(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	return customHaihuPrefix + t.In(JST).Format(customHaihuLayout) + "_" + suffix
}

// ParseCustomHaihuTime extracts the submission time embedded in a custom haihu id.
func ParseCustomHaihuTime(haihuID string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(haihuID, customHaihuPrefix)
	if !ok || len(rest) < len(customHaihuLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(customHaihuLayout, rest[:len(customHaihuLayout)], JST)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ReportURL is the public page of a finished report seen from seat.
func ReportURL(reportID string, seat int) string {
	return fmt.Sprintf(reportPageURL, reportID, seat)
}

// MonthRange returns [begin, end) of the given month in JST.
func MonthRange(year, month int) (time.Time, time.Time) {
	begin := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, JST)
	return begin, begin.AddDate(0, 1, 0)
}

// ParseTenhouRef reads a tenhou.net log link (".../?log=<id>&tw=<seat>") or a bare log id.
func ParseTenhouRef(ref string) (string, int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", 0, common.InvalidInputf("empty tenhou reference")
	}
	if !strings.Contains(ref, "log=") {
		if strings.ContainsAny(ref, "/?&= ") {
			return "", 0, common.InvalidInputf("not a tenhou log reference: %q", ref)
		}
		return ref, 0, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", 0, common.InvalidInputf("malformed tenhou url: %v", err)
	}
	q := u.Query()
	haihuID := q.Get("log")
	if haihuID == "" {
		return "", 0, common.InvalidInputf("tenhou url has no log id")
	}
	seat := 0
	if tw := q.Get("tw"); tw != "" {
		seat, err = strconv.Atoi(tw)
		if err != nil || seat < 0 || seat > 3 {
			return "", 0, common.InvalidInputf("tenhou seat must be 0-3, got %q", tw)
		}
	}
	return haihuID, seat, nil
}
