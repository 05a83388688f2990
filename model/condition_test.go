package model

import "testing"

func TestOperatorsForNumeric(t *testing.T) {
	ops := OperatorsFor(true)

	want := []string{"eq", "gt", "lt", "ge", "le"}
	if len(ops) != len(want) {
		t.Fatalf("numeric operators = %d, want %d", len(ops), len(want))
	}
	for i, code := range want {
		if ops[i].Code != code {
			t.Errorf("ops[%d].Code = %q, want %q", i, ops[i].Code, code)
		}
	}
}

func TestOperatorsForText(t *testing.T) {
	ops := OperatorsFor(false)

	want := []string{"eq", "ilike"}
	if len(ops) != len(want) {
		t.Fatalf("text operators = %d, want %d", len(ops), len(want))
	}
	for i, code := range want {
		if ops[i].Code != code {
			t.Errorf("ops[%d].Code = %q, want %q", i, ops[i].Code, code)
		}
	}
}

func TestOperatorByCode(t *testing.T) {
	op, ok := OperatorByCode("ilike")
	if !ok {
		t.Fatal("ilike not found")
	}
	if op.Label != "contains" {
		t.Errorf("Label = %q, want contains", op.Label)
	}

	if _, ok := OperatorByCode("between"); ok {
		t.Error("unknown code should not resolve")
	}
}

func TestNewConditionWrapsContains(t *testing.T) {
	contains, _ := OperatorByCode("ilike")
	equals, _ := OperatorByCode("eq")

	c := NewCondition("category", contains, "Python", false)
	if c.Value != "*Python*" {
		t.Errorf("contains value = %q, want *Python*", c.Value)
	}

	c = NewCondition("score", equals, "3", true)
	if c.Value != "3" {
		t.Errorf("equals value = %q, want 3", c.Value)
	}
}
