package paging

import (
	"net/http/httptest"
	"testing"
)

func TestLimitPlusOne(t *testing.T) {
	want := int64(PageSize + 1)
	got := LimitPlusOne()
	if got != want {
		t.Errorf("LimitPlusOne() = %d, want %d", got, want)
	}
}

func TestParseStart(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"/history", 1},
		{"/history?start=51", 51},
		{"/history?start=0", 1},
		{"/history?start=-4", 1},
		{"/history?start=abc", 1},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := ParseStart(httptest.NewRequest("GET", tt.target, nil)); got != tt.want {
				t.Errorf("ParseStart(%q) = %d, want %d", tt.target, got, tt.want)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	if got := Offset(1); got != 0 {
		t.Errorf("Offset(1) = %d, want 0", got)
	}
	if got := Offset(51); got != 50 {
		t.Errorf("Offset(51) = %d, want 50", got)
	}
	if got := Offset(0); got != 0 {
		t.Errorf("Offset(0) = %d, want 0", got)
	}
}

func TestTrimPage(t *testing.T) {
	tests := []struct {
		name     string
		rows     []int
		wantLen  int
		wantNext bool
	}{
		{"short page", []int{1, 2, 3}, 3, false},
		{"exactly one page", make([]int, PageSize), PageSize, false},
		{"look-ahead row present", make([]int, PageSize+1), PageSize, true},
		{"empty", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := tt.rows
			hasNext := TrimPage(&rows)
			if len(rows) != tt.wantLen || hasNext != tt.wantNext {
				t.Errorf("TrimPage: len=%d next=%v, want len=%d next=%v", len(rows), hasNext, tt.wantLen, tt.wantNext)
			}
		})
	}
}

func TestComputeRange(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		shown   int
		hasNext bool
		want    Range
	}{
		{"empty", 1, 0, false, Range{PrevStart: 1}},
		{"first page", 1, PageSize, true, Range{Start: 1, End: PageSize, PrevStart: 1, NextStart: PageSize + 1}},
		{"last page", PageSize + 1, 7, false, Range{Start: PageSize + 1, End: PageSize + 7, PrevStart: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeRange(tt.start, tt.shown, tt.hasNext); got != tt.want {
				t.Errorf("ComputeRange = %+v, want %+v", got, tt.want)
			}
		})
	}
}
