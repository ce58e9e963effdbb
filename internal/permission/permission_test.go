package permission

import (
	"reflect"
	"testing"
)

func TestMergeUnionsActions(t *testing.T) {
	a := Set{"vehicles": {"read"}}
	b := Set{"vehicles": {"update"}, "tokens:123": {"read"}}
	c := Set{"vehicles": {"read", "delete"}}

	got := Merge(a, b, c)
	want := Set{
		"vehicles":   {"delete", "read", "update"},
		"tokens:123": {"read"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("merge = %v, want %v", got, want)
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	a := Set{"users": {"read", "update"}}
	b := Set{"users": {"delete"}}
	if !reflect.DeepEqual(Merge(a, b), Merge(b, a)) {
		t.Fatal("merge is order dependent")
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := Set{"users": {"read"}}
	out := Merge(a, Set{"users": {"update"}})
	out["users"][0] = "mutated"
	if a["users"][0] != "read" {
		t.Fatal("merge shares backing array with input")
	}
}

func TestCan(t *testing.T) {
	s := Set{
		"tokens:abc": {"read"},
		"vehicles:*": {"read", "update"},
		"admin":      {"*"},
	}
	cases := []struct {
		resource, action string
		want             bool
	}{
		{"tokens:abc", "read", true},
		{"tokens:abc", "delete", false},
		{"tokens:xyz", "read", false},
		{"vehicles:42", "update", true},
		{"vehicles:42", "delete", false},
		{"admin", "anything", true},
		{"missing", "read", false},
	}
	for _, tc := range cases {
		if got := s.Can(tc.resource, tc.action); got != tc.want {
			t.Errorf("Can(%q, %q) = %v, want %v", tc.resource, tc.action, got, tc.want)
		}
	}
}

func TestCanOnNilSet(t *testing.T) {
	var s Set
	if s.Can("tokens:1", "read") {
		t.Fatal("nil set granted a permission")
	}
}
