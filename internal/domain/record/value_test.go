package record

import (
	"encoding/json"
	"testing"
)

func TestValue_UnmarshalKinds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
	}{
		{"string", `"hello"`, KindString},
		{"number", `3.5`, KindNumber},
		{"integer", `42`, KindNumber},
		{"bool", `true`, KindBool},
		{"null", `null`, KindNull},
		{"array", `[1,"x"]`, KindArray},
		{"object", `{"a":1}`, KindObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			if err := json.Unmarshal([]byte(tt.raw), &v); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.raw, err)
			}
			if v.Kind() != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, v.Kind())
			}
		})
	}
}

func TestValue_ObjectOrderPreserved(t *testing.T) {
	raw := `{"z":1,"a":2,"m":3}`
	var v Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("expected %s, got %s", raw, out)
	}
}

func TestValue_StructuralEquality(t *testing.T) {
	a := Array(Number(1), String("x"))
	b := Array(Number(1), String("x"))
	if !a.Equal(b) {
		t.Error("expected equal arrays")
	}

	o1 := Object(Member{Key: "k", Value: Number(1)})
	o2 := Object(Member{Key: "k", Value: Number(1)})
	o3 := Object(Member{Key: "k", Value: Number(2)})
	if !o1.Equal(o2) {
		t.Error("expected equal objects")
	}
	if o1.Equal(o3) {
		t.Error("expected unequal objects")
	}
	if String("1").Equal(Number(1)) {
		t.Error("string and number must not compare equal")
	}
}

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	if v.Kind() != KindNull {
		t.Errorf("expected zero Value to be null, got %s", v.Kind())
	}
	if !v.Equal(Null()) {
		t.Error("zero Value should equal Null()")
	}
}

func TestMetadata_OrderPreserved(t *testing.T) {
	raw := `{"title":"a","pages":10,"draft":false}`
	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	keys := m.Keys()
	want := []string{"title", "pages", "draft"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("key %d: expected %s, got %s", i, k, keys[i])
		}
	}
	out, err := json.Marshal(&m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("expected %s, got %s", raw, out)
	}
}

func TestMetadata_SetOverwriteKeepsPosition(t *testing.T) {
	m := NewMetadata()
	m.Set("a", Number(1))
	m.Set("b", Number(2))
	m.Set("a", Number(3))
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("unexpected keys: %v", keys)
	}
	v, ok := m.Get("a")
	if !ok || v.Num() != 3 {
		t.Errorf("expected a=3, got %v (%v)", v.Num(), ok)
	}
}

func TestRecord_AbsentDocument(t *testing.T) {
	r := New("id-1", nil, nil, nil)
	if _, ok := r.Document(); ok {
		t.Error("expected absent document")
	}

	doc := ""
	r2 := New("id-2", &doc, nil, nil)
	if d, ok := r2.Document(); !ok || d != "" {
		t.Error("expected present empty document")
	}
}
