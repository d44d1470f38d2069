package merge

import (
	"sort"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

// DayRepair is the planned fix for one calendar day that has more than one Document
type DayRepair struct {
	Day           string             `json:"day"`
	Keep          *entity.Document   `json:"-"`
	KeepID        int64              `json:"keep_id"`
	Removed       []*entity.Document `json:"-"`
	RemovedIDs    []int64            `json:"removed_ids"`
	MergedBlocks  int                `json:"merged_blocks"`
	DroppedBlocks int                `json:"dropped_blocks"`
}

// PlanDayRepair finds days with duplicate Documents and decides which one survives: the one with
// the fewest pages, then the lowest id. With mergeBlocks the survivor takes over the duplicates'
// blocks as further pages; otherwise its page count is reset to 1 and their blocks are dropped.
// Keep is modified in place; Removed must be deleted by the caller.
func PlanDayRepair(docs []*entity.Document, mergeBlocks bool) []DayRepair {
	byDay := make(map[string][]*entity.Document)
	var days []string
	for _, d := range docs {
		key := entity.DayKey(d.Day)
		if _, ok := byDay[key]; !ok {
			days = append(days, key)
		}
		byDay[key] = append(byDay[key], d)
	}
	sort.Strings(days)

	var repairs []DayRepair
	for _, day := range days {
		group := byDay[day]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].PageCount != group[j].PageCount {
				return group[i].PageCount < group[j].PageCount
			}
			return group[i].ID < group[j].ID
		})

		keep := group[0]
		r := DayRepair{Day: day, Keep: keep, KeepID: keep.ID}
		for _, dup := range group[1:] {
			r.Removed = append(r.Removed, dup)
			r.RemovedIDs = append(r.RemovedIDs, dup.ID)
			if mergeBlocks {
				r.MergedBlocks += absorb(keep, dup)
			} else {
				r.DroppedBlocks += len(dup.Blocks)
			}
		}
		if !mergeBlocks {
			keep.PageCount = 1
		}
		repairs = append(repairs, r)
	}
	return repairs
}

// absorb appends dup's pages after keep's, preserving dup's page order
func absorb(keep, dup *entity.Document) int {
	pages := make(map[int][]entity.BulletinBlock)
	var order []int
	for _, b := range dup.Blocks {
		if _, ok := pages[b.PageNumber]; !ok {
			order = append(order, b.PageNumber)
		}
		pages[b.PageNumber] = append(pages[b.PageNumber], b)
	}
	sort.Ints(order)

	n := 0
	for _, p := range order {
		AppendBulletinPage(keep, pages[p])
		n += len(pages[p])
	}
	if keep.Filename == "" {
		keep.Filename = dup.Filename
	}
	return n
}
