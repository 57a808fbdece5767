package service

import "testing"

func TestBuildDailySpec(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"08:00", "0 0 8 * * *", false},
		{" 23:59 ", "0 59 23 * * *", false},
		{"7:05", "0 5 7 * * *", false},
		{"24:00", "", true},
		{"08:60", "", true},
		{"0800", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := buildDailySpec(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("buildDailySpec(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("buildDailySpec(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
