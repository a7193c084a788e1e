package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultPinataEndpoint = "https://api.pinata.cloud"
	DefaultPinataGateway  = "https://gateway.pinata.cloud/ipfs/"

	maxPinataResponse = 1 << 20
)

type PinataConfig struct {
	APIKey    string
	SecretKey string

	// Endpoint and Gateway default to the public Pinata hosts.
	Endpoint string
	Gateway  string

	// Platform tags every pin and prefixes pin names.
	Platform string

	Timeout time.Duration
}

// Pinata pins files and JSON documents to IPFS through the Pinata API.
type Pinata struct {
	PinataConfig
	client  *http.Client
	timeNow func() time.Time
}

func NewPinata(config PinataConfig) (*Pinata, error) {
	if config.APIKey == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("%w: pinata API keys are not configured", ErrUpload)
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultPinataEndpoint
	}
	if config.Gateway == "" {
		config.Gateway = DefaultPinataGateway
	}
	if !strings.HasSuffix(config.Gateway, "/") {
		config.Gateway += "/"
	}
	if config.Timeout == 0 {
		config.Timeout = time.Minute
	}
	return &Pinata{
		PinataConfig: config,
		client:       &http.Client{Timeout: config.Timeout},
		timeNow:      time.Now,
	}, nil
}

func (p *Pinata) pinMetadata(name string, keyvalues map[string]string) map[string]interface{} {
	ts := strconv.FormatInt(p.timeNow().UnixMilli(), 10)
	kv := map[string]string{
		"platform":  p.Platform,
		"timestamp": ts,
	}
	for k, v := range keyvalues {
		kv[k] = v
	}
	return map[string]interface{}{
		"name":      fmt.Sprintf("%s_%s_%s", p.Platform, name, ts),
		"keyvalues": kv,
	}
}

func (p *Pinata) Upload(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	pinMetadata, err := json.Marshal(p.pinMetadata(filename, nil))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := w.WriteField("pinataMetadata", string(pinMetadata)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := w.WriteField("pinataOptions", `{"cidVersion":0}`); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	return p.pin(ctx, "/pinning/pinFileToIPFS", w.FormDataContentType(), body)
}

func (p *Pinata) UploadJSON(ctx context.Context, name string, v interface{}) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"pinataContent":  v,
		"pinataMetadata": p.pinMetadata(name, map[string]string{"type": "metadata"}),
		"pinataOptions":  map[string]int{"cidVersion": 0},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return p.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload))
}

func (p *Pinata) pin(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(p.Endpoint, "/")+path, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", p.APIKey)
	req.Header.Set("pinata_secret_api_key", p.SecretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxPinataResponse))
	if err != nil {
		return "", fmt.Errorf("%w: cannot read response: %v", ErrUpload, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(respBody, "error.reason").String()
		if msg == "" {
			msg = gjson.GetBytes(respBody, "error").String()
		}
		return "", fmt.Errorf("%w: %s %s", ErrUpload, resp.Status, msg)
	}

	hash := gjson.GetBytes(respBody, "IpfsHash").String()
	if hash == "" {
		return "", fmt.Errorf("%w: response has no IpfsHash", ErrUpload)
	}
	return p.Gateway + hash, nil
}
