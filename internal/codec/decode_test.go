package codec

import (
	"bytes"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// Character targets
// ----------------------------------------------------------------------------

func TestDecodeText(t *testing.T) {
	c := New(Config{UnescapeNewline: true, Location: time.UTC})
	col := TargetColumn{Name: "NOTE", TypeName: "VARCHAR2", Type: TargetText}

	tests := []struct {
		name  string
		input string
		want  any
	}{
		{name: "plain text", input: "hello", want: "hello"},
		{name: "whitespace binds null", input: "   ", want: nil},
		{name: "empty binds null", input: "", want: nil},
		{name: "newline escape expanded", input: `a\nb`, want: "a\nb"},
		{name: "carriage return escape expanded", input: `a\rb`, want: "a\rb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Decode(tt.input, col)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeTextNoUnescape(t *testing.T) {
	c := New(Config{UnescapeNewline: false, Location: time.UTC})
	got, err := c.Decode(`a\nb`, TargetColumn{Name: "NOTE", Type: TargetText})
	if err != nil {
		t.Fatal(err)
	}
	if got != `a\nb` {
		t.Errorf("Decode = %q, want literal backslash-n kept", got)
	}
}

// ----------------------------------------------------------------------------
// Numeric targets
// ----------------------------------------------------------------------------

func TestDecodeIntegerWidths(t *testing.T) {
	c := New(Config{Location: time.UTC})

	tests := []struct {
		name    string
		input   string
		colType TargetType
		want    int64
		wantErr bool
	}{
		{name: "int fits", input: "41", colType: TargetInteger, want: 41},
		{name: "bigint", input: "2147483648", colType: TargetBigInt, want: 2147483648},
		{name: "tinyint overflow", input: "128", colType: TargetTinyInt, wantErr: true},
		{name: "smallint overflow", input: "40000", colType: TargetSmallInt, wantErr: true},
		{name: "int overflow", input: "2147483648", colType: TargetInteger, wantErr: true},
		{name: "not a number", input: "not_a_number", colType: TargetInteger, wantErr: true},
		{name: "decimal rejected for int", input: "1.5", colType: TargetInteger, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Decode(tt.input, TargetColumn{Name: "N", Type: tt.colType})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Decode(%q) succeeded with %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Decode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeDecimal(t *testing.T) {
	c := New(Config{Location: time.UTC})
	got, err := c.Decode("10.50", TargetColumn{Name: "AMOUNT", TypeName: "DECIMAL", Type: TargetDecimal})
	if err != nil {
		t.Fatal(err)
	}
	n, err := numericValue(got)
	if err != nil {
		t.Fatal(err)
	}
	if NumericText(n) != "10.5" {
		t.Errorf("decimal bind = %s, want 10.5", NumericText(n))
	}
}

func TestDecodeFloatExactness(t *testing.T) {
	c := New(Config{Location: time.UTC})
	if got, err := c.Decode("0.5", TargetColumn{Name: "F", Type: TargetDouble}); err != nil || got != 0.5 {
		t.Errorf("Decode double = %v, %v", got, err)
	}
	if got, err := c.Decode("2", TargetColumn{Name: "F", Type: TargetFloat}); err != nil || got != float32(2) {
		t.Errorf("Decode float = %v, %v", got, err)
	}
}

// ----------------------------------------------------------------------------
// Temporal, boolean, binary targets
// ----------------------------------------------------------------------------

func TestDecodeTimestamp(t *testing.T) {
	c := New(Config{Location: time.UTC})
	got, err := c.Decode("2024-01-02 03:04:05", TargetColumn{Name: "TS", Type: TargetTimestamp})
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if tv, ok := got.(time.Time); !ok || !tv.Equal(want) {
		t.Errorf("Decode = %v, want %v", got, want)
	}
}

func TestDecodeTimeOfDay(t *testing.T) {
	c := New(Config{Location: time.UTC})
	got, err := c.Decode("13:14:15", TargetColumn{Name: "T", Type: TargetTime})
	if err != nil {
		t.Fatal(err)
	}
	if got != "13:14:15" {
		t.Errorf("Decode time = %v", got)
	}
}

func TestDecodeBoolean(t *testing.T) {
	c := New(Config{Location: time.UTC})
	truthy := []string{"TRUE", "true", "1", "YES", "y"}
	falsy := []string{"FALSE", "false", "0", "NO", "n"}
	for _, in := range truthy {
		if got, err := c.Decode(in, TargetColumn{Name: "B", Type: TargetBoolean}); err != nil || got != true {
			t.Errorf("Decode(%q) = %v, %v; want true", in, got, err)
		}
	}
	for _, in := range falsy {
		if got, err := c.Decode(in, TargetColumn{Name: "B", Type: TargetBoolean}); err != nil || got != false {
			t.Errorf("Decode(%q) = %v, %v; want false", in, got, err)
		}
	}
	if _, err := c.Decode("maybe", TargetColumn{Name: "B", Type: TargetBoolean}); err == nil {
		t.Error("Decode(maybe) succeeded, want error")
	}
}

func TestDecodeBinary(t *testing.T) {
	c := New(Config{Location: time.UTC})
	col := TargetColumn{Name: "BIN", Type: TargetBinary}
	want := []byte{0xde, 0xad, 0x01}

	hex, err := c.Decode("DEAD01", col)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(hex.([]byte), want) {
		t.Errorf("hex decode = %x", hex)
	}

	prefixed, err := c.Decode("0xDEAD01", col)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(prefixed.([]byte), want) {
		t.Errorf("0x decode = %x", prefixed)
	}

	// Non-hex characters fall through to base-64.
	b64, err := c.Decode("3q0B", col)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b64.([]byte), want) {
		t.Errorf("base64 decode = %x", b64)
	}
}

func TestParseBinaryRoundTrip(t *testing.T) {
	want := []byte{0x00, 0x7f, 0xff, 0x10}
	got, err := ParseBinary(HexUpper(want))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ParseBinary(HexUpper(b)) = %x, want %x", got, want)
	}
}
