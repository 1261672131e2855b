package transport

import (
	"errors"
	"reflect"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

func TestToDBusVariant(t *testing.T) {
	tests := []struct {
		name    string
		in      variant.Variant
		wantSig string
	}{
		{"Null", variant.Null(), "ai"},
		{"Int", variant.New(variant.TypeInt, int32(42)), "i"},
		{"Double", variant.New(variant.TypeDouble, 1.5), "d"},
		{"StringArray", variant.New(variant.TypeStringArray, []string{"a"}), "as"},
		{"UndeclaredString", variant.New(variant.TypeUndeclared, "x"), "s"},
		{"UndeclaredNil", variant.New(variant.TypeUndeclared, nil), "ai"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDBusVariant(tt.in)
			if err != nil {
				t.Fatalf("ToDBusVariant(%v) error = %v", tt.in, err)
			}
			if got.Signature().String() != tt.wantSig {
				t.Errorf("signature = %q, want %q", got.Signature().String(), tt.wantSig)
			}
		})
	}

	if _, err := ToDBusVariant(variant.New("a{", nil)); err == nil {
		t.Error("expected error for invalid signature")
	}
}

func TestFromDBusVariant(t *testing.T) {
	got := FromDBusVariant(dbus.MakeVariant([]int32{}))
	if !got.IsNull() {
		t.Errorf("FromDBusVariant(empty ai) = %v, want null", got)
	}

	got = FromDBusVariant(dbus.MakeVariant(3.5))
	if got.Type != variant.TypeDouble || got.Value != 3.5 {
		t.Errorf("FromDBusVariant(3.5) = %v, want [d 3.5]", got)
	}
}

func TestItemsToDBus(t *testing.T) {
	items := []model.Item{
		{Key: "/IntProp", Value: variant.New(variant.TypeInt, int32(42)), Text: "42"},
		{Key: "/Empty", Value: variant.Null(), Text: ""},
	}

	m, err := ItemsToDBus(items)
	if err != nil {
		t.Fatalf("ItemsToDBus error = %v", err)
	}

	entry := m["/IntProp"]
	if entry["Value"].Value() != int32(42) {
		t.Errorf("Value = %v, want 42", entry["Value"].Value())
	}
	if entry["Text"].Value() != "42" {
		t.Errorf("Text = %v, want 42", entry["Text"].Value())
	}
	if sig := m["/Empty"]["Value"].Signature().String(); sig != "ai" {
		t.Errorf("null signature = %q, want ai", sig)
	}

	back := itemsFromDBus(m)
	if len(back) != 2 || back[0].Key != "/Empty" || back[1].Key != "/IntProp" || back[1].Text != "42" {
		t.Errorf("itemsFromDBus = %+v", back)
	}
}

func TestKeyValuesFromDBusSorted(t *testing.T) {
	kvs := KeyValuesFromDBus(map[string]dbus.Variant{
		"b": dbus.MakeVariant("x"),
		"a": dbus.MakeVariant(int32(1)),
	})
	if len(kvs) != 2 || kvs[0].Key != "a" || kvs[1].Key != "b" {
		t.Fatalf("KeyValuesFromDBus = %+v, want a, b", kvs)
	}
	if kvs[0].Value != variant.New(variant.TypeInt, int32(1)) {
		t.Errorf("a = %v, want [i 1]", kvs[0].Value)
	}
}

func TestToDBusArgSettingsRecords(t *testing.T) {
	recs := []map[string]variant.Variant{
		{"path": variant.New(variant.TypeString, "/Settings/Foo"), "min": variant.Null()},
	}

	got, err := toDBusArg(recs)
	if err != nil {
		t.Fatalf("toDBusArg error = %v", err)
	}
	out, ok := got.([]map[string]dbus.Variant)
	if !ok {
		t.Fatalf("toDBusArg type = %T, want []map[string]dbus.Variant", got)
	}
	if err := checkSignature("aa{sv}", []any{out}); err != nil {
		t.Errorf("checkSignature(aa{sv}) error = %v", err)
	}
}

func TestCheckSignature(t *testing.T) {
	if err := checkSignature("", []any{1.5}); err != nil {
		t.Errorf("empty signature error = %v", err)
	}
	if err := checkSignature("as", []any{[]string{"a"}}); err != nil {
		t.Errorf("as error = %v", err)
	}
	if err := checkSignature("v", []any{dbus.MakeVariant(int32(1))}); err != nil {
		t.Errorf("v error = %v", err)
	}
	if err := checkSignature("as", []any{"a"}); !errors.Is(err, ErrSignature) {
		t.Errorf("mismatch error = %v, want ErrSignature", err)
	}
	if err := checkSignature("s", []any{func() {}}); !errors.Is(err, ErrSignature) {
		t.Errorf("unencodable error = %v, want ErrSignature", err)
	}
}

func TestFromDBusArgs(t *testing.T) {
	got := fromDBusArgs([]any{
		dbus.MakeVariant("x"),
		map[string]dbus.Variant{"k": dbus.MakeVariant(int32(2))},
		int32(0),
	})

	want := []any{
		variant.New(variant.TypeString, "x"),
		map[string]variant.Variant{"k": variant.New(variant.TypeInt, int32(2))},
		int32(0),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fromDBusArgs = %#v, want %#v", got, want)
	}
}

func TestChildNames(t *testing.T) {
	paths := map[string]bool{
		"/":                 true,
		"/IntProp":          true,
		"/Mgmt":             true,
		"/Mgmt/Connection":  true,
		"/Mgmt/ProcessName": true,
		"/S2/0/Rm":          true,
	}

	if got := childNames("/", paths); !reflect.DeepEqual(got, []string{"IntProp", "Mgmt", "S2"}) {
		t.Errorf("childNames(/) = %v", got)
	}
	if got := childNames("/Mgmt", paths); !reflect.DeepEqual(got, []string{"Connection", "ProcessName"}) {
		t.Errorf("childNames(/Mgmt) = %v", got)
	}
	if got := childNames("/IntProp", paths); len(got) != 0 {
		t.Errorf("childNames(/IntProp) = %v, want none", got)
	}
}

func TestIntrospectInterface(t *testing.T) {
	iface := introspectInterface(S2Interface)

	if iface.Name != "com.victronenergy.S2" {
		t.Errorf("Name = %q", iface.Name)
	}
	if len(iface.Methods) != 5 || len(iface.Signals) != 2 {
		t.Fatalf("methods = %d, signals = %d; want 5, 2", len(iface.Methods), len(iface.Signals))
	}
	connect := iface.Methods[1]
	if connect.Name != "Connect" || len(connect.Args) != 3 || connect.Args[2].Direction != "out" {
		t.Errorf("Connect = %+v", connect)
	}
}
