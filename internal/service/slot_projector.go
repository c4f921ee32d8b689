package service

import (
	"iter"
	"sort"
	"time"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// ── 时段展开 ────────────────────────────────────────────────
//
// 纯计算：输入在调用前全部加载好，Project 只做展开与标注，不访问存储。
// 占用人数来自 OccurrenceRepository.ListOccupancy，与预约事务内的
// CountOccupied 使用同一占用条件。
// ─────────────────────────────────────────────────────────────

// Slot 一个可预约时段
type Slot struct {
	Date      time.Time
	StartTime civil.Clock
	StaffID   string
	Occupied  int
	Capacity  int
	HeldByMe  bool
}

// Available 剩余名额
func (s Slot) Available() int {
	if s.Occupied >= s.Capacity {
		return 0
	}
	return s.Capacity - s.Occupied
}

// slotCell 时段在一个场馆内的唯一位置
type slotCell struct {
	date  time.Time
	clock civil.Clock
	staff string
}

// Projection 展开所需的全部输入
type Projection struct {
	Windows     []model.AvailabilityWindow
	Blocked     map[time.Time]bool
	Occupancy   []repository.OccupancyRow
	Held        []model.ClassOccurrence // 请求学员在区间内的有效预约
	Capacity    int
	Location    *time.Location
	Now         time.Time
	Weeks       int
	SlotMinutes int
}

// Horizon 展开区间 [today, today + weeks*7 - 1]（场馆时区）
func Horizon(now time.Time, loc *time.Location, weeks int) (from, to time.Time) {
	from = civil.Today(now, loc)
	return from, civil.AddDays(from, weeks*7-1)
}

// windowSlots 将窗口切分为固定时长的时段，只保留完整落在窗口内的时段
func windowSlots(w model.AvailabilityWindow, slotMinutes int) []civil.Clock {
	start, err := civil.ParseClock(w.StartTime)
	if err != nil {
		return nil
	}
	end, err := civil.ParseClock(w.EndTime)
	if err != nil || start >= end || slotMinutes <= 0 {
		return nil
	}
	var slots []civil.Clock
	for c := start; c.Add(slotMinutes) <= end; c = c.Add(slotMinutes) {
		slots = append(slots, c)
	}
	return slots
}

// windowOffers 窗口是否提供该开始时刻的时段
func windowOffers(w model.AvailabilityWindow, at civil.Clock, slotMinutes int) bool {
	for _, c := range windowSlots(w, slotMinutes) {
		if c == at {
			return true
		}
	}
	return false
}

// Project 按日期升序惰性产出时段；无窗口时产出空序列
//
// 封锁日期整天跳过；今天已开始的时段跳过（按场馆时区判断）；
// 满员时段仅在请求学员已占用时保留，便于其查看与取消
func Project(p Projection) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if len(p.Windows) == 0 || p.Weeks <= 0 {
			return
		}
		loc := p.Location
		if loc == nil {
			loc = time.UTC
		}

		byDay := make(map[int][]model.AvailabilityWindow, 7)
		for _, w := range p.Windows {
			if w.IsActive {
				byDay[w.DayOfWeek] = append(byDay[w.DayOfWeek], w)
			}
		}
		occupied := make(map[slotCell]int, len(p.Occupancy))
		for _, row := range p.Occupancy {
			c, err := civil.ParseClock(row.StartTime)
			if err != nil {
				continue
			}
			occupied[slotCell{civil.DateOf(row.ClassDate), c, row.StaffKey()}] += int(row.Occupied)
		}
		held := make(map[slotCell]bool, len(p.Held))
		for i := range p.Held {
			o := &p.Held[i]
			c, err := civil.ParseClock(o.StartTime)
			if err != nil || !o.OccupiesSeat() {
				continue
			}
			held[slotCell{civil.DateOf(o.ClassDate), c, o.Scope().StaffID}] = true
		}

		from, to := Horizon(p.Now, loc, p.Weeks)
		for d := from; !d.After(to); d = civil.AddDays(d, 1) {
			if p.Blocked[d] {
				continue
			}
			windows := byDay[civil.Weekday(d)]
			if len(windows) == 0 {
				continue
			}

			seen := make(map[slotCell]bool)
			var cells []slotCell
			for _, w := range windows {
				for _, c := range windowSlots(w, p.SlotMinutes) {
					cell := slotCell{d, c, w.StaffKey()}
					if seen[cell] {
						continue
					}
					seen[cell] = true
					if !civil.Combine(d, c, loc).After(p.Now) {
						continue
					}
					cells = append(cells, cell)
				}
			}
			sort.Slice(cells, func(i, j int) bool {
				if cells[i].clock != cells[j].clock {
					return cells[i].clock < cells[j].clock
				}
				return cells[i].staff < cells[j].staff
			})

			for _, cell := range cells {
				slot := Slot{
					Date:      cell.date,
					StartTime: cell.clock,
					StaffID:   cell.staff,
					Occupied:  occupied[cell],
					Capacity:  p.Capacity,
					HeldByMe:  held[cell],
				}
				if slot.Occupied >= slot.Capacity && !slot.HeldByMe {
					continue
				}
				if !yield(slot) {
					return
				}
			}
		}
	}
}
