package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"gitlab.com/atechtools/token-launcher/common"
)

// ErrUpload wraps every failure of an Uploader.
var ErrUpload = errors.New("metadata upload failed")

type Uploader interface {
	// Upload stores a file and returns its public URI.
	Upload(ctx context.Context, data []byte, contentType, filename string) (string, error)

	// UploadJSON stores v serialized as JSON and returns its public URI.
	UploadJSON(ctx context.Context, name string, v interface{}) (string, error)
}

type Result struct {
	URI      string
	ImageURI string
	Document Document
}

// Pin uploads the image, if any, and then the document referencing it.
func Pin(ctx context.Context, u Uploader, spec common.TokenSpec, creator solana.PublicKey, royaltyBps uint16) (Result, error) {
	var imageURI string
	if spec.Image != nil {
		uri, err := u.Upload(ctx, spec.Image.Data, spec.Image.ContentType, spec.Image.Filename)
		if err != nil {
			return Result{}, wrapUpload("image", err)
		}
		imageURI = uri
	}

	doc := NewDocument(spec, imageURI, creator, royaltyBps)
	uri, err := u.UploadJSON(ctx, spec.Symbol+"_metadata", doc)
	if err != nil {
		return Result{}, wrapUpload("document", err)
	}
	return Result{
		URI:      uri,
		ImageURI: imageURI,
		Document: doc,
	}, nil
}

func wrapUpload(what string, err error) error {
	if errors.Is(err, ErrUpload) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpload, what, err)
}
