package archive

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fergl/geoclust/blobstore"
	"github.com/fergl/geoclust/codec"
	"github.com/fergl/geoclust/model"
)

func sampleRecords() []*model.Record {
	return []*model.Record{
		{ID: 1, Name: "Oslo", Country: "NO", Latitude: 59.91, Longitude: 10.75, Population: 709037},
		{ID: 2, Name: "Bergen", Country: "NO", Latitude: 60.39, Longitude: 5.32, Population: 291940},
		{ID: 3, Name: "Trondheim", Country: "NO", Latitude: 63.43, Longitude: 10.39, Population: 212660},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			records := sampleRecords()

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, records, WithCompression(compression)))

			got, err := Read(&buf)
			require.NoError(t, err)
			require.Equal(t, records, got)
		})
	}
}

func TestWriteRead_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWriteRead_StdlibCodec(t *testing.T) {
	records := sampleRecords()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records, WithCodec(codec.JSON{}), WithCompression(CompressionNone)))

	got, err := Read(&buf, WithCodec(codec.JSON{}))
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestRead_BadMagic(t *testing.T) {
	buf := []byte("XXXX\x01\x00\x00\x00\x00\x00")
	_, err := Read(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestRead_UnsupportedVersion(t *testing.T) {
	buf := []byte("GCAR\x09\x00\x00\x00\x00\x00")
	_, err := Read(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestRead_UnknownCompression(t *testing.T) {
	buf := []byte("GCAR\x01\x07\x00\x00\x00\x00")
	_, err := Read(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrUnknownCompression)
}

func TestRead_TruncatedFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleRecords(), WithCompression(CompressionNone)))

	// Claim one more record than the stream holds.
	data := buf.Bytes()
	data[6] = 4

	_, err := Read(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestSaveLoad_MemoryStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	records := sampleRecords()

	require.NoError(t, Save(ctx, store, "snapshot.gcar", records, WithCompression(CompressionLZ4)))

	got, err := Load(ctx, store, "snapshot.gcar")
	require.NoError(t, err)
	require.Equal(t, records, got)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"snapshot.gcar"}, names)
}

func TestSaveLoad_LocalStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocal(t.TempDir())
	records := sampleRecords()

	require.NoError(t, Save(ctx, store, "snapshot.gcar", records))

	got, err := Load(ctx, store, "snapshot.gcar")
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), blobstore.NewMemory(), "nope.gcar")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}
