package queue

import "testing"

func TestParseDailyCron(t *testing.T) {
	minute, hour, err := parseDailyCron("0 8 * * *")
	if err != nil {
		t.Fatalf("parseDailyCron: %v", err)
	}
	if minute != 0 || hour != 8 {
		t.Errorf("got minute=%d hour=%d, want 0 8", minute, hour)
	}
}

func TestParseDailyCronRejectsNonDaily(t *testing.T) {
	cases := []string{"0 8 1 * *", "*/5 * * * *", "0 8 * * 1", "garbage"}
	for _, c := range cases {
		if _, _, err := parseDailyCron(c); err == nil {
			t.Errorf("expected parseDailyCron(%q) to fail", c)
		}
	}
}
