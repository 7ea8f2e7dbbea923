package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/roster/core"
)

func TestParse(t *testing.T) {
	header := []string{"email", "phone_number", "student_numbers"}

	tests := []struct {
		name string
		text string
		want []RawRow
	}{
		{
			name: "header only",
			text: "email,phone_number\n",
			want: []RawRow{},
		},
		{
			name: "bom, blank lines and ragged lines",
			text: "\uFEFF Email ,Phone_Number,student_numbers\r\n" +
				"a@x.io,0123,\"S1, S2\"\r\n" +
				",,\r\n" +
				"\r\n" +
				"b@x.io\r\n" +
				"c@x.io,1,S3,extra\r\n",
			want: []RawRow{
				{Line: 2, Header: header, Values: []string{"a@x.io", "0123", "S1, S2"}},
				{Line: 5, Header: header, Values: []string{"b@x.io", "", ""}},
				{Line: 6, Header: header, Values: []string{"c@x.io", "1", "S3"}},
			},
		},
		{
			name: "bom before a quoted header",
			text: "\uFEFF\"email\",\"phone_number\",\"student_numbers\"\n" +
				"\"harry@x.io\",\"123\",\"S1\"\n",
			want: []RawRow{
				{Line: 2, Header: header, Values: []string{"harry@x.io", "123", "S1"}},
			},
		},
		{
			name: "leading empty lines",
			text: "\n\nemail,phone_number,student_numbers\n\n\nharry@x.io,123,S1\n",
			want: []RawRow{
				{Line: 6, Header: header, Values: []string{"harry@x.io", "123", "S1"}},
			},
		},
		{
			name: "values spanning lines",
			text: "email,phone_number,student_numbers\r\n" +
				"\r\n" +
				"a@x.io,\"0123\r\n4567\",\"S1,\n\nS2\"\r\n" +
				"b@x.io,1,S3",
			want: []RawRow{
				{Line: 3, Header: header, Values: []string{"a@x.io", "0123\n4567", "S1,\n\nS2"}},
				{Line: 7, Header: header, Values: []string{"b@x.io", "1", "S3"}},
			},
		},
		{
			name: "lazy quotes",
			text: "email,given_name\na@x.io,O\"Brien\n",
			want: []RawRow{
				{Line: 2, Header: []string{"email", "given_name"}, Values: []string{"a@x.io", "O\"Brien"}},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := Parse(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, rows)
		})
	}
}

func TestParse_malformed(t *testing.T) {
	for _, text := range []string{"", "\n\n", " , \n"} {
		_, err := Parse(text)
		assert.True(t, core.IsValidationError(err, ErrMalformedUpload), "%q: %v", text, err)
	}
}
