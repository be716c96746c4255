package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "+989123456789", want: "+989123456789"},
		{raw: "09123456789", want: "+989123456789"},
		{raw: "9123456789", want: "+989123456789"},
		{raw: "00989123456789", want: "+989123456789"},
		{raw: " +447911123456 ", want: "+447911123456"},
		{raw: "12345", wantErr: true},
		{raw: "+98912abc789", wantErr: true},
		{raw: "+9891234567890123", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ValidatePhone(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeContactPhone(t *testing.T) {
	require.Equal(t, "+989123456789", NormalizeContactPhone("+989123456789"))
	require.Equal(t, "+989123456789", NormalizeContactPhone("09123456789"))
	require.Equal(t, "+989123456789", NormalizeContactPhone("9123456789"))
	require.Equal(t, "+989123456789", NormalizeContactPhone("989123456789"))
	require.Equal(t, "+447911123456", NormalizeContactPhone(" 447911123456 "))
}

func TestValidateField(t *testing.T) {
	tests := []struct {
		name    string
		field   ProfileField
		raw     string
		want    string
		wantErr bool
	}{
		{name: "name", field: FieldName, raw: " Ali Rezaei ", want: "Ali Rezaei"},
		{name: "name persian", field: FieldName, raw: "علی", want: "علی"},
		{name: "name short", field: FieldName, raw: "Al", wantErr: true},
		{name: "name digits", field: FieldName, raw: "Ali 2", wantErr: true},
		{name: "card spaced", field: FieldCard, raw: "6037 9912 3456 7890", want: "6037991234567890"},
		{name: "card short", field: FieldCard, raw: "603799123456789", wantErr: true},
		{name: "account prefixed", field: FieldAccount, raw: "ir123456789012345678901234", want: "123456789012345678901234"},
		{name: "account short", field: FieldAccount, raw: "IR1234", wantErr: true},
		{name: "bank", field: FieldBank, raw: "Mellat", want: "Mellat"},
		{name: "bank short", field: FieldBank, raw: "M", wantErr: true},
		{name: "unknown", field: ProfileField("email"), raw: "a@b.c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateField(tt.field, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
