package metadata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestPinata(t *testing.T, handler http.HandlerFunc) *Pinata {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	p, err := NewPinata(PinataConfig{
		APIKey:    "key",
		SecretKey: "secret",
		Endpoint:  server.URL,
		Gateway:   "https://gw.example/ipfs",
		Platform:  "ATECHTOOLS",
	})
	require.NoError(t, err)
	p.timeNow = func() time.Time {
		return time.UnixMilli(1700000000000)
	}
	return p
}

func TestPinataUpload(t *testing.T) {
	p := newTestPinata(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		require.Equal(t, "key", r.Header.Get("pinata_api_key"))
		require.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "png-bytes", string(data))
		require.Equal(t, "logo.png", header.Filename)
		require.Equal(t, "image/png", header.Header.Get("Content-Type"))

		meta := r.FormValue("pinataMetadata")
		require.Equal(t, "ATECHTOOLS_logo.png_1700000000000", gjson.Get(meta, "name").String())
		require.Equal(t, "ATECHTOOLS", gjson.Get(meta, "keyvalues.platform").String())

		w.Write([]byte(`{"IpfsHash":"QmImage","PinSize":9}`))
	})

	uri, err := p.Upload(context.Background(), []byte("png-bytes"), "image/png", "logo.png")
	require.NoError(t, err)
	require.Equal(t, "https://gw.example/ipfs/QmImage", uri)
}

func TestPinataUploadJSON(t *testing.T) {
	p := newTestPinata(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pinning/pinJSONToIPFS", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "Aurora", gjson.GetBytes(body, "pinataContent.name").String())
		require.Equal(t, "metadata", gjson.GetBytes(body, "pinataMetadata.keyvalues.type").String())
		require.Equal(t, int64(0), gjson.GetBytes(body, "pinataOptions.cidVersion").Int())

		json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "QmDoc"})
	})

	uri, err := p.UploadJSON(context.Background(), "AUR_metadata", map[string]string{"name": "Aurora"})
	require.NoError(t, err)
	require.Equal(t, "https://gw.example/ipfs/QmDoc", uri)
}

func TestPinataErrors(t *testing.T) {
	p := newTestPinata(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"reason":"INVALID_CREDENTIALS","details":"bad key"}}`))
	})
	_, err := p.UploadJSON(context.Background(), "x", map[string]string{})
	require.ErrorIs(t, err, ErrUpload)
	require.ErrorContains(t, err, "INVALID_CREDENTIALS")

	p = newTestPinata(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	_, err = p.Upload(context.Background(), []byte{1}, "image/png", "a.png")
	require.ErrorIs(t, err, ErrUpload)

	_, err = NewPinata(PinataConfig{APIKey: "only-key"})
	require.ErrorIs(t, err, ErrUpload)
}
