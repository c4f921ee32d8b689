package civil

import (
	"fmt"
	"strings"
	"time"
)

// ── 民用日期与时刻 ──────────────────────────────────────────
//
// 课程时间以场馆本地的 "日期 + 时刻" 存储（如 2025-12-23 09:00），不含时区。
// 日期统一表示为 UTC 零点的 time.Time，与 PostgreSQL DATE 列扫描结果一致；
// 需要与 "现在" 比较时，必须先用场馆时区 Combine 成绝对时刻。
// ─────────────────────────────────────────────────────────────

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Clock 一天内的时刻，单位：分钟
type Clock int

// ParseClock 解析 "HH:MM" 或 "HH:MM:SS"（数据库 TIME 列格式），秒及以下忽略
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if len(s) > 5 && s[5] == ':' {
		s = s[:5]
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("无效的时间 %q", s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// MustClock 仅用于常量与测试
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add 增加分钟数
func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

// NormalizeClock 将数据库返回的 "09:00:00" 统一成 "09:00"
func NormalizeClock(s string) string {
	c, err := ParseClock(s)
	if err != nil {
		return s
	}
	return c.String()
}

// ParseDate 解析 "YYYY-MM-DD"
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的日期 %q", s)
	}
	return d, nil
}

// DateOf 取任意时刻的日期部分（按其自身时区），返回 UTC 零点
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate 输出 "YYYY-MM-DD"
func FormatDate(d time.Time) string { return d.Format(DateLayout) }

// Today 场馆时区下的 "今天"
func Today(now time.Time, loc *time.Location) time.Time {
	return DateOf(now.In(loc))
}

// Combine 将民用日期 + 时刻解释为场馆时区内的绝对时刻
func Combine(date time.Time, clock Clock, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(clock)/60, int(clock)%60, 0, 0, loc)
}

// Weekday 0=周日 … 6=周六
func Weekday(date time.Time) int { return int(date.Weekday()) }

// AddDays 日期加减天数
func AddDays(date time.Time, days int) time.Time { return date.AddDate(0, 0, days) }

// NextOnOrAfter 返回不早于 date 的第一个指定星期几
func NextOnOrAfter(date time.Time, weekday int) time.Time {
	diff := (weekday - Weekday(date) + 7) % 7
	return AddDays(date, diff)
}

// ISOWeekBounds 返回日期所在 ISO 周（周一至周日）的首尾日期
func ISOWeekBounds(date time.Time) (monday, sunday time.Time) {
	offset := (Weekday(date) + 6) % 7
	monday = AddDays(date, -offset)
	return monday, AddDays(monday, 6)
}

// LoadLocation 加载时区，失败时回退 fallback
func LoadLocation(name string, fallback *time.Location) *time.Location {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
