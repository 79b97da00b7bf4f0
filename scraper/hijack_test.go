package scraper

import "testing"

func TestIsTracker(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"hm.baidu.com", true},
		{"s4.cnzz.com", true},
		{"HM.BAIDU.COM", true},
		{"www.baidu.com", false},
		{"www.91xinggang.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isTracker(tt.host); got != tt.want {
			t.Errorf("isTracker(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
