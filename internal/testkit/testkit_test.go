package testkit

import (
	"testing"

	"cffigen/internal/layout"
)

func TestCheckLayoutInvariants(t *testing.T) {
	tests := []struct {
		name    string
		l       layout.TypeLayout
		isUnion bool
		wantErr bool
	}{
		{
			name: "valid struct",
			l: layout.TypeLayout{Size: 8, Align: 4, Fields: []layout.FieldLayout{
				{Name: "x", Offset: 0, Size: 4},
				{Name: "y", Offset: 4, Size: 4},
			}},
		},
		{
			name: "valid struct with padding",
			l: layout.TypeLayout{Size: 16, Align: 8, Fields: []layout.FieldLayout{
				{Name: "c", Offset: 0, Size: 1},
				{Name: "d", Offset: 8, Size: 8},
			}},
		},
		{
			name: "valid union",
			l: layout.TypeLayout{Size: 8, Align: 8, Fields: []layout.FieldLayout{
				{Name: "i", Offset: 0, Size: 4},
				{Name: "d", Offset: 0, Size: 8},
			}},
			isUnion: true,
		},
		{
			name: "bit-fields are exempt",
			l: layout.TypeLayout{Size: 4, Align: 4, Fields: []layout.FieldLayout{
				{Name: "mode", Offset: -1, Bits: 3},
				{Name: "n", Offset: 0, Size: 4},
			}},
		},
		{
			name:    "zero size",
			l:       layout.TypeLayout{Size: 0, Align: 1},
			wantErr: true,
		},
		{
			name:    "size not multiple of alignment",
			l:       layout.TypeLayout{Size: 6, Align: 4},
			wantErr: true,
		},
		{
			name: "overlapping fields",
			l: layout.TypeLayout{Size: 8, Align: 4, Fields: []layout.FieldLayout{
				{Name: "a", Offset: 0, Size: 4},
				{Name: "b", Offset: 2, Size: 4},
			}},
			wantErr: true,
		},
		{
			name: "field past the end",
			l: layout.TypeLayout{Size: 4, Align: 4, Fields: []layout.FieldLayout{
				{Name: "a", Offset: 2, Size: 4},
			}},
			wantErr: true,
		},
		{
			name: "union member off zero",
			l: layout.TypeLayout{Size: 8, Align: 8, Fields: []layout.FieldLayout{
				{Name: "a", Offset: 4, Size: 4},
			}},
			isUnion: true,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLayoutInvariants(tt.l, tt.isUnion)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckLayoutInvariants = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
