package cache

import (
	"io/ioutil"
	"os"
	"path"
	"testing"
)

func TestKeyIsOrderIndependent(t *testing.T) {
	a := NewKey("res", "fn", map[string]interface{}{"x": 1, "y": 2, "z": "three"})
	b := NewKey("res", "fn", map[string]interface{}{"z": "three", "y": 2, "x": 1})
	if a.String() != b.String() {
		t.Errorf("parameter order must not affect the fingerprint: %s != %s", a.String(), b.String())
	}
}

func TestKeyChangesWithAnyInput(t *testing.T) {
	base := NewKey("res", "fn", map[string]interface{}{"x": 1})
	cases := []Key{
		NewKey("res2", "fn", map[string]interface{}{"x": 1}),
		NewKey("res", "fn2", map[string]interface{}{"x": 1}),
		NewKey("res", "fn", map[string]interface{}{"x": 2}),
		NewKey("res", "fn", map[string]interface{}{"x": 1, "y": 0}),
	}
	for i, k := range cases {
		if k.String() == base.String() {
			t.Errorf("case %d: fingerprint should differ from base", i)
		}
	}
}

func TestKeyIsStable(t *testing.T) {
	k := NewKey("res", "fn", map[string]interface{}{"x": 1})
	if k.String() != k.String() {
		t.Errorf("fingerprint must be deterministic")
	}
	if k.Canonical() != "res|fn|x=1" {
		t.Errorf("unexpected canonical form: %s", k.Canonical())
	}
}

func TestFileSignature(t *testing.T) {
	dir, err := ioutil.TempDir("", "sig")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	p := path.Join(dir, "data.bin")
	if err := ioutil.WriteFile(p, []byte("one"), 0644); err != nil {
		t.Fatal(err)
	}

	sig1, err := FileSignature(p)
	if err != nil {
		t.Fatal(err)
	}
	sig2, err := FileSignature(p)
	if err != nil {
		t.Fatal(err)
	}
	if sig1 != sig2 {
		t.Errorf("signature of an unchanged file must be stable")
	}

	if err := ioutil.WriteFile(p, []byte("one two"), 0644); err != nil {
		t.Fatal(err)
	}
	sig3, err := FileSignature(p)
	if err != nil {
		t.Fatal(err)
	}
	if sig3 == sig1 {
		t.Errorf("signature must change when the file changes")
	}

	if _, err := FileSignature(path.Join(dir, "missing.bin")); err == nil {
		t.Errorf("signature of a missing file should fail")
	}
}
