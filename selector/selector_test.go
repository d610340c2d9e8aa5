package selector

import (
	"sync"
	"testing"

	"github.com/wippyai/backend-bridge/errors"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in    string
		want  Version
		valid bool
	}{
		{"1.3.0", Version{1, 3, 0, 3}, true},
		{"1_3_0", Version{1, 3, 0, 3}, true},
		{"2.1", Version{2, 1, 0, 2}, true},
		{"4", Version{4, 0, 0, 1}, true},
		{"4294967295.0.0", Version{4294967295, 0, 0, 3}, true},
		{"4294967296.0.0", Version{}, false},
		{"", Version{}, false},
		{"1..0", Version{}, false},
		{"1.2.3.4", Version{}, false},
		{"v1.2", Version{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseVersion(tt.in)
		if ok != tt.valid {
			t.Errorf("ParseVersion(%q) ok = %v, want %v", tt.in, ok, tt.valid)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseVersion(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestVersion_CompatibleAndMatches(t *testing.T) {
	v := Version{1, 3, 2, 3}
	if !v.Compatible(Version{1, 2, 0, 3}) {
		t.Error("1.3.2 should be compatible with 1.2.0")
	}
	if v.Compatible(Version{2, 0, 0, 3}) {
		t.Error("1.3.2 should not be compatible with 2.0.0")
	}
	if v.Compatible(Version{1, 3, 5, 3}) {
		t.Error("1.3.2 should not be compatible with 1.3.5")
	}

	if !v.Matches(Version{Major: 1, Parts: 1}) {
		t.Error("1.3.2 should match 1")
	}
	if !v.Matches(Version{Major: 1, Minor: 3, Parts: 2}) {
		t.Error("1.3.2 should match 1.3")
	}
	if v.Matches(Version{Major: 1, Minor: 2, Parts: 2}) {
		t.Error("1.3.2 should not match 1.2")
	}
}

func TestSafeVersion(t *testing.T) {
	if got := SafeVersion("1.3.0"); got != "1_3_0" {
		t.Errorf("SafeVersion = %q", got)
	}
	if got := FromSafeVersion("1_3_0"); got != "1.3.0" {
		t.Errorf("FromSafeVersion = %q", got)
	}
	if got := FromSafeVersion(SafeVersion("10.0.12")); got != "10.0.12" {
		t.Errorf("round trip = %q", got)
	}
	if got := SafeVersion("dev.build"); got != "dev_build" {
		t.Errorf("SafeVersion(non-numeric) = %q", got)
	}
}

func newSelector(t *testing.T, defaults map[string]string, versions ...string) *Selector {
	t.Helper()
	s := New(defaults)
	for _, v := range versions {
		if err := s.Add("widgets", v); err != nil {
			t.Fatalf("Add(%s): %v", v, err)
		}
	}
	return s
}

func TestSelector_ActiveDefaultsToHighest(t *testing.T) {
	s := newSelector(t, nil, "1.0.0", "2.0.0", "1.5.0")
	got, err := s.Active("widgets")
	if err != nil || got != "2.0.0" {
		t.Fatalf("Active = %q, %v", got, err)
	}
	if vs := s.Versions("widgets"); len(vs) != 3 || vs[0] != "1.0.0" || vs[2] != "2.0.0" {
		t.Errorf("Versions = %v", vs)
	}
}

func TestSelector_ConfiguredDefault(t *testing.T) {
	s := newSelector(t, map[string]string{"widgets": "1"}, "1.0.0", "1.5.0", "2.0.0")
	got, _ := s.Active("widgets")
	if got != "1.5.0" {
		t.Errorf("Active = %q, want 1.5.0", got)
	}

	// A default that matches nothing falls back to the highest version
	s = newSelector(t, map[string]string{"widgets": "3.0.0"}, "1.0.0", "2.0.0")
	got, _ = s.Active("widgets")
	if got != "2.0.0" {
		t.Errorf("Active = %q, want 2.0.0", got)
	}
}

func TestSelector_SelectAndResolve(t *testing.T) {
	s := newSelector(t, nil, "1.0.0", "1.2.0", "2.0.0")

	got, err := s.Select("widgets", "1")
	if err != nil || got != "1.2.0" {
		t.Fatalf("Select(1) = %q, %v", got, err)
	}
	if got, _ := s.Resolve("widgets", ""); got != "1.2.0" {
		t.Errorf("Resolve(\"\") = %q, want 1.2.0", got)
	}
	// Explicit versions bypass the selection
	if got, _ := s.Resolve("widgets", "2.0.0"); got != "2.0.0" {
		t.Errorf("Resolve(2.0.0) = %q", got)
	}
	if got, _ := s.Resolve("widgets", "1.0"); got != "1.0.0" {
		t.Errorf("Resolve(1.0) = %q", got)
	}

	_, err = s.Resolve("widgets", "1.1.0")
	if !errors.Is(err, &errors.Error{Kind: errors.KindNotFound}) {
		t.Errorf("Resolve(1.1.0): %v", err)
	}
	_, err = s.Resolve("widgets", "latest")
	if !errors.Is(err, &errors.Error{Kind: errors.KindInvalidInput}) {
		t.Errorf("Resolve(latest): %v", err)
	}
	_, err = s.Resolve("gizmos", "")
	if !errors.Is(err, &errors.Error{Kind: errors.KindNotFound}) {
		t.Errorf("unknown backend: %v", err)
	}
}

func TestSelector_Remove(t *testing.T) {
	s := newSelector(t, nil, "1.0.0", "2.0.0")
	if _, err := s.Select("widgets", "2.0.0"); err != nil {
		t.Fatal(err)
	}
	s.Remove("widgets", "2.0.0")
	if got, _ := s.Active("widgets"); got != "1.0.0" {
		t.Errorf("Active after Remove = %q, want 1.0.0", got)
	}
	s.Remove("widgets", "1.0.0")
	if len(s.Backends()) != 0 {
		t.Errorf("Backends = %v, want none", s.Backends())
	}
}

func TestSelector_AddRejectsPartial(t *testing.T) {
	s := New(nil)
	if err := s.Add("widgets", "1.2"); err == nil {
		t.Error("Add should require a full version")
	}
	if err := s.Add("widgets", "1.2.0"); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("widgets", "1_2_0"); err != nil {
		t.Fatal(err)
	}
	if len(s.Versions("widgets")) != 1 {
		t.Errorf("duplicate Add should be a no-op: %v", s.Versions("widgets"))
	}
}

func TestSelector_Concurrent(t *testing.T) {
	s := newSelector(t, nil, "1.0.0", "2.0.0")
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.Select("widgets", "1")
			} else {
				_, _ = s.Resolve("widgets", "")
			}
		}(i)
	}
	wg.Wait()
	if got, _ := s.Active("widgets"); got != "1.0.0" {
		t.Errorf("Active = %q", got)
	}
}
