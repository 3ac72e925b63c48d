package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fergl/geoclust/model"
)

func TestEncodeRecord_RoundTrip(t *testing.T) {
	codecs := []Codec{JSON{}, GoJSON{}}

	rec := &model.Record{
		ID:         42,
		Name:       "Springfield",
		Country:    "US",
		Latitude:   39.7812,
		Longitude:  -89.6501,
		Population: 116250,
	}

	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			frame, err := EncodeRecord(c, rec)
			require.NoError(t, err)

			// Little-endian length prefix covers exactly the payload.
			n := binary.LittleEndian.Uint32(frame[:4])
			require.Equal(t, int(n), len(frame)-4)

			got, consumed, err := DecodeRecord(c, frame, 0)
			require.NoError(t, err)
			require.Equal(t, len(frame), consumed)
			require.Equal(t, rec, got)
		})
	}
}

func TestDecodeRecord_Terminators(t *testing.T) {
	c := Default

	// Zero length prefix terminates the scan.
	zero := make([]byte, 8)
	r, n, err := DecodeRecord(c, zero, 0)
	require.NoError(t, err)
	require.Nil(t, r)
	require.Zero(t, n)

	// A frame whose declared length runs past the buffer end terminates too.
	truncated := make([]byte, 10)
	binary.LittleEndian.PutUint32(truncated, 100)
	r, n, err = DecodeRecord(c, truncated, 0)
	require.NoError(t, err)
	require.Nil(t, r)
	require.Zero(t, n)

	// Fewer than 4 bytes remaining.
	r, n, err = DecodeRecord(c, []byte{1, 2}, 0)
	require.NoError(t, err)
	require.Nil(t, r)
	require.Zero(t, n)
}

func TestDecodeRecord_CorruptPayload(t *testing.T) {
	c := Default

	payload := []byte("{not json")
	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	r, n, err := DecodeRecord(c, frame, 0)
	require.Error(t, err)
	require.Nil(t, r)
	// The length prefix is trusted, so the full frame is consumed and the
	// next offset stays valid.
	require.Equal(t, len(frame), n)

	var de *RecordDecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, 0, de.Offset)
}

func TestScanRecords(t *testing.T) {
	c := Default

	recs := []*model.Record{
		{ID: 1, Name: "Oslo", Country: "NO", Latitude: 59.91, Longitude: 10.75, Population: 709037},
		{ID: 2, Name: "Bergen", Country: "NO", Latitude: 60.39, Longitude: 5.32, Population: 291940},
		{ID: 3, Name: "Trondheim", Country: "NO", Latitude: 63.43, Longitude: 10.39, Population: 214565},
	}

	var region []byte
	for _, r := range recs {
		frame, err := EncodeRecord(c, r)
		require.NoError(t, err)
		region = append(region, frame...)
	}
	// Unused tail, as left behind by an oversized buffer.
	region = append(region, make([]byte, 64)...)

	got, err := ScanRecords(c, region)
	require.NoError(t, err)
	require.Equal(t, recs, got)
}

func TestScanRecords_StopsAtDecodeError(t *testing.T) {
	c := Default

	good, err := EncodeRecord(c, &model.Record{ID: 1, Name: "Oslo", Population: 1})
	require.NoError(t, err)

	bad := make([]byte, 4+3)
	binary.LittleEndian.PutUint32(bad, 3)
	copy(bad[4:], "!!!")

	region := append(append([]byte{}, good...), bad...)

	got, err := ScanRecords(c, region)
	require.Error(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(1), got[0].ID)
}
