package service

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// ── iCalendar 编解码 ────────────────────────────────────────
//
// 输出：学员课表订阅与日历同步队列的 VEVENT（RFC 5545）。
// 输入：场馆上传的节假日日历，每个 VEVENT 覆盖的日期转为封锁日期。
// ─────────────────────────────────────────────────────────────

const (
	icsProductID    = "-//classbook//booking engine//EN"
	icsMaxFileSize  = 2 * 1024 * 1024 // 2MB
	icsMaxImportDay = 366             // 单个事件最多展开的天数
)

// classEvent 一节课对应的 VEVENT 参数
type classEvent struct {
	occ      *model.ClassOccurrence
	loc      *time.Location
	duration time.Duration
	now      time.Time
}

// classUID 同一课程在订阅与同步中保持同一 UID
func classUID(o *model.ClassOccurrence) string {
	return o.ClassID + "@classbook"
}

func addClassEvent(cal *ics.Calendar, ce classEvent) error {
	o := ce.occ
	c, err := civil.ParseClock(o.StartTime)
	if err != nil {
		return err
	}
	start := civil.Combine(o.ClassDate, c, ce.loc)

	evt := cal.AddEvent(classUID(o))
	evt.SetDtStampTime(ce.now.UTC())
	evt.SetStartAt(start.UTC())
	evt.SetEndAt(start.Add(ce.duration).UTC())
	evt.SetSummary(classSummary(o))
	if o.Status == model.ClassCancelled {
		evt.SetStatus(ics.ObjectStatusCancelled)
	} else {
		evt.SetStatus(ics.ObjectStatusConfirmed)
	}
	return nil
}

func classSummary(o *model.ClassOccurrence) string {
	if o.IsTrial {
		return "体验课"
	}
	return "课程预约"
}

// encodeClasses 生成包含多节课的日历
func encodeClasses(method ics.Method, events []classEvent) (string, error) {
	cal := ics.NewCalendar()
	cal.SetProductId(icsProductID)
	cal.SetMethod(method)
	for _, ce := range events {
		if err := addClassEvent(cal, ce); err != nil {
			return "", err
		}
	}
	return cal.Serialize(), nil
}

// importedDate 节假日日历中解析出的一天
type importedDate struct {
	Date   time.Time
	Reason string
}

// parseBlockedDates 解析节假日日历，按场馆时区取日期，结果去重并升序
//
// 全天事件 DTEND 为不含当天的结束日；缺少 DTEND 时只取开始当天
func parseBlockedDates(r io.Reader, loc *time.Location) ([]importedDate, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(r, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	seen := make(map[time.Time]bool)
	var result []importedDate
	for _, evt := range cal.Events() {
		start, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
		if err != nil {
			continue
		}
		first := civil.DateOf(start)
		last := first
		if end, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc); err == nil {
			last = civil.DateOf(end)
			// 全天事件与恰好在零点结束的事件，结束日不计入
			if allDay || end.Equal(time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())) {
				last = civil.AddDays(last, -1)
			}
			if last.Before(first) {
				last = first
			}
		}

		reason := ""
		if p := evt.GetProperty(ics.ComponentPropertySummary); p != nil {
			reason = strings.TrimSpace(p.Value)
		}
		if len(reason) > 200 {
			reason = reason[:200]
		}

		for i, d := 0, first; !d.After(last) && i < icsMaxImportDay; i, d = i+1, civil.AddDays(d, 1) {
			if seen[d] {
				continue
			}
			seen[d] = true
			result = append(result, importedDate{Date: d, Reason: reason})
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// parseICSDateTime 解析日期时间属性并转换到 loc；allDay 表示 VALUE=DATE
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("缺少属性 %s", propName)
	}
	val := strings.TrimSpace(prop.Value)

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			tzid = v[0]
		}
	}

	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.Parse("20060102T150405", val); err == nil {
		zone := loc
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				zone = tzLoc
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, zone).In(loc), false, nil
	}
	if t, err := time.Parse("20060102", val); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}
