package metadata

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"gitlab.com/atechtools/token-launcher/common"
)

type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

type File struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

type Creator struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    int    `json:"share"`
}

type Properties struct {
	Files    []File    `json:"files"`
	Category string    `json:"category"`
	Creators []Creator `json:"creators"`
}

// Document is the off-chain JSON the on-chain uri points to.
type Document struct {
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Plan        common.Tier       `json:"plan"`
	Attributes  []Attribute       `json:"attributes"`
	Properties  Properties        `json:"properties"`
	ExternalURL string            `json:"external_url,omitempty"`
	Extensions  map[string]string `json:"extensions,omitempty"`
}

// NewDocument describes spec for wallets and explorers. imageURI may be
// empty when no image was supplied. royaltyBps is the transfer fee actually
// installed on the mint, after clamping.
func NewDocument(spec common.TokenSpec, imageURI string, creator solana.PublicKey, royaltyBps uint16) Document {
	description := spec.Description
	if description == "" {
		description = fmt.Sprintf("%s token on Solana blockchain", spec.Name)
	}

	doc := Document{
		Name:        spec.Name,
		Symbol:      spec.Symbol,
		Description: description,
		Image:       imageURI,
		Plan:        spec.Tier,
		Attributes: []Attribute{
			{TraitType: "plan", Value: spec.Tier.String()},
			{TraitType: "decimals", Value: spec.Decimals},
			{TraitType: "mintable", Value: spec.Mintable && !spec.RenounceOwnership},
		},
		Properties: Properties{
			Files:    []File{},
			Category: "image",
			Creators: []Creator{},
		},
	}
	if spec.Tier == common.Enterprise && royaltyBps > 0 {
		doc.Attributes = append(doc.Attributes, Attribute{TraitType: "royalty_bps", Value: royaltyBps})
	}
	if imageURI != "" && spec.Image != nil {
		doc.Properties.Files = append(doc.Properties.Files, File{URI: imageURI, Type: spec.Image.ContentType})
	}
	if !creator.IsZero() {
		doc.Properties.Creators = append(doc.Properties.Creators, Creator{
			Address:  creator.String(),
			Verified: true,
			Share:    100,
		})
	}

	if len(spec.Social) > 0 {
		doc.Extensions = make(map[string]string, len(spec.Social))
		for k, v := range spec.Social {
			if v != "" {
				doc.Extensions[k] = v
			}
		}
		doc.ExternalURL = doc.Extensions["website"]
	}
	return doc
}
