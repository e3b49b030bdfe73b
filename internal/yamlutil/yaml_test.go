package yamlutil

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func TestUnmarshalStrict(t *testing.T) {
	var s sample
	if err := UnmarshalStrict([]byte("name: blog\nport: 3000\n"), &s); err != nil {
		t.Fatalf("UnmarshalStrict failed: %v", err)
	}
	if s.Name != "blog" || s.Port != 3000 {
		t.Errorf("UnmarshalStrict = %+v, want {blog 3000}", s)
	}
}

func TestUnmarshalInputErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		dst  any
		want error
	}{
		{"empty", nil, &sample{}, ErrNilData},
		{"nil destination", []byte("name: x"), nil, ErrNilDestination},
		{"too large", []byte(strings.Repeat("a", MaxInputSize+1)), &sample{}, ErrInputTooLarge},
	}
	for _, tt := range tests {
		err := UnmarshalStrict(tt.data, tt.dst)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: UnmarshalStrict error = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestUnmarshalStrictRejectsUnknownFields(t *testing.T) {
	var s sample
	if err := UnmarshalStrict([]byte("name: blog\ncolour: red\n"), &s); err == nil {
		t.Error("UnmarshalStrict should reject unknown field")
	}
}
