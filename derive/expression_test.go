package derive

import (
	"testing"

	"github.com/nci/gridset/dataset"
)

func TestFromExpressionMatchesNativeFunction(t *testing.T) {
	a := intGrid(t, "a", 4, 4, func(y, x int) int16 {
		if y == x {
			return -9999
		}
		return int16(y*4 + x)
	})
	b := intGrid(t, "b", 4, 4, func(y, x int) int16 { return 2 })

	compiled, err := FromExpression("a + b", []string{"a", "b"}, dataset.Int16, -9999)
	if err != nil {
		t.Fatal(err)
	}

	native, err := New(addFunction(), []dataset.Grid{a, b})
	if err != nil {
		t.Fatal(err)
	}
	derived, err := New(compiled, []dataset.Grid{a, b})
	if err != nil {
		t.Fatal(err)
	}

	want, err := native.ReadBlock([]int{0, 0}, []int{4, 4})
	if err != nil {
		t.Fatal(err)
	}
	got, err := derived.ReadBlock([]int{0, 0}, []int{4, 4})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < want.Len(); i++ {
		if want.At(i) != got.At(i) {
			t.Errorf("cell %d: native %v != compiled %v", i, want.At(i), got.At(i))
		}
	}
}

func TestFromExpressionRejectsUnknownVariable(t *testing.T) {
	if _, err := FromExpression("a + c", []string{"a", "b"}, dataset.Int16, -9999); err == nil {
		t.Errorf("unknown variable c should be rejected at compile time")
	}
}

func TestFromExpressionRejectsBadSyntax(t *testing.T) {
	if _, err := FromExpression("a +* b", []string{"a", "b"}, dataset.Int16, -9999); err == nil {
		t.Errorf("syntax error should be rejected at compile time")
	}
}
