package main

import (
	"reflect"
	"testing"
)

func TestParseBlockList(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"1", []int{1}},
		{"1,3,5-7", []int{1, 3, 5, 6, 7}},
		{"7-5,1", nil},
		{" 2 , 2, 1-2 ", []int{1, 2}},
		{"4-4", []int{4}},
	}
	for _, tt := range tests {
		got, err := parseBlockList(tt.in)
		if tt.want == nil {
			if err == nil {
				t.Errorf("parseBlockList(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBlockList(%q): %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseBlockList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseBlockListInvalid(t *testing.T) {
	for _, in := range []string{"", ",", "0", "a", "1-b", "-3"} {
		if _, err := parseBlockList(in); err == nil {
			t.Errorf("parseBlockList(%q): expected error", in)
		}
	}
}
