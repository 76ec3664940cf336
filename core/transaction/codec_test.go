package transaction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
	}{
		{
			name: "typical record",
			record: &Record{
				Signature: "signature-12345678901234567890",
				Sender:    "12D3KooWExamplePeerId",
				Timestamp: 1717171717,
				Payload:   []byte{0, 1, 2, 3},
			},
		},
		{
			name: "empty fields",
			record: &Record{
				Signature: "",
				Sender:    "",
				Timestamp: 0,
				Payload:   []byte{},
			},
		},
		{
			name: "binary payload",
			record: &Record{
				Signature: "signature-1",
				Sender:    "peer",
				Timestamp: 1,
				Payload:   []byte{0xff, 0x00, 0xde, 0xad, 0xbe, 0xef},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.record)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, tt.record.Signature, got.Signature)
			require.Equal(t, tt.record.Sender, got.Sender)
			require.Equal(t, tt.record.Timestamp, got.Timestamp)
			require.Equal(t, tt.record.Payload, got.Payload)
		})
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	valid, err := Encode(&Record{
		Signature: "signature-42",
		Sender:    "peer-1",
		Timestamp: 99,
		Payload:   []byte{0, 1, 2, 3},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty input", data: nil, want: ErrTruncated},
		{name: "cut mid header", data: valid[:1], want: ErrTruncated},
		{name: "cut mid signature", data: valid[:5], want: ErrTruncated},
		{name: "cut before payload", data: valid[:len(valid)-2], want: ErrTruncated},
		{name: "trailing bytes", data: append(append([]byte(nil), valid...), 0xaa), want: ErrMalformed},
		{
			name: "length past end",
			data: []byte{0xff, 0xff, 'x'},
			want: ErrTruncated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeTruncatedAnywhere(t *testing.T) {
	valid, err := Encode(&Record{
		Signature: "signature-7",
		Sender:    "sender-7",
		Timestamp: 7,
		Payload:   []byte("seven"),
	})
	require.NoError(t, err)

	for i := 0; i < len(valid); i++ {
		_, err := Decode(valid[:i])
		require.Error(t, err, "prefix of length %d should not decode", i)
	}
}

func TestContentIDDeterministic(t *testing.T) {
	a := []byte("the same payload")
	b := append([]byte(nil), a...)

	require.Equal(t, ContentID(a), ContentID(b))
	require.NotEqual(t, ContentID(a), ContentID([]byte("a different payload")))
	require.NotEmpty(t, ContentID(nil))
}

func TestNewRecordStampsSender(t *testing.T) {
	r := New("12D3KooWLocalPeer")
	require.Equal(t, "12D3KooWLocalPeer", r.Sender)
	require.NotZero(t, r.Timestamp)
	require.Contains(t, r.Signature, "signature-")
	require.Equal(t, []byte{0, 1, 2, 3}, r.Payload)

	// Two records from the same sender carry distinct signature tokens.
	require.NotEqual(t, r.Signature, New("12D3KooWLocalPeer").Signature)
}
