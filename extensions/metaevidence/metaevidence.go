// Package metaevidence builds, validates and uploads the ERC-1497 meta-evidence
// document whose content identifier Approve passes to createTransaction.
package metaevidence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	talentlayer "github.com/talentlayer/talentlayer-go"
	"github.com/talentlayer/talentlayer-go/pkg/ipfs"
)

// Category is the ERC-1497 category of every escrow dispute.
const Category = "Escrow"

// Ruling option titles, in ruling order (1 pays the seller, 2 reimburses the buyer)
const (
	RulingPaySeller      = "Pay the seller"
	RulingReimburseBuyer = "Reimburse the buyer"
)

const rulingTypeSingleSelect = "single-select"

// RulingOptions are the choices offered to the arbitrator.
type RulingOptions struct {
	Type         string   `json:"type"`
	Titles       []string `json:"titles"`
	Descriptions []string `json:"descriptions"`
}

// MetaEvidence is an ERC-1497 meta-evidence document.
type MetaEvidence struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Question      string            `json:"question"`
	Category      string            `json:"category"`
	RulingOptions RulingOptions     `json:"rulingOptions"`
	Aliases       map[string]string `json:"aliases,omitempty"`
	FileURI       string            `json:"fileURI,omitempty"`
}

// Params describe the escrow a document is built for.
type Params struct {
	ServiceID     string
	ProposalID    string
	ServiceTitle  string
	BuyerAddress  string
	SellerAddress string
	// FileURI optionally points at the agreed terms, usually ipfs://<proposal cid>.
	FileURI string
}

// Build returns the meta-evidence for a service/proposal escrow.
func Build(p Params) *MetaEvidence {
	subject := fmt.Sprintf("service %s", p.ServiceID)
	if p.ServiceTitle != "" {
		subject = fmt.Sprintf("service %s (%s)", p.ServiceID, p.ServiceTitle)
	}

	doc := &MetaEvidence{
		Title: fmt.Sprintf("Escrow dispute on %s", subject),
		Description: fmt.Sprintf("The buyer locked the payment of proposal %s on %s in escrow. "+
			"The arbitrator decides whether the work was delivered as agreed.", p.ProposalID, subject),
		Question: "Should the escrowed payment be released to the seller?",
		Category: Category,
		RulingOptions: RulingOptions{
			Type:   rulingTypeSingleSelect,
			Titles: []string{RulingPaySeller, RulingReimburseBuyer},
			Descriptions: []string{
				"The work was delivered as agreed; release the funds to the seller.",
				"The work was not delivered as agreed; reimburse the buyer.",
			},
		},
		FileURI: p.FileURI,
	}

	if p.BuyerAddress != "" || p.SellerAddress != "" {
		doc.Aliases = make(map[string]string, 2)
		if p.BuyerAddress != "" {
			doc.Aliases[strings.ToLower(p.BuyerAddress)] = "Buyer"
		}
		if p.SellerAddress != "" {
			doc.Aliases[strings.ToLower(p.SellerAddress)] = "Seller"
		}
	}
	return doc
}

const schema = `{
	"type": "object",
	"required": ["title", "description", "question", "category", "rulingOptions"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"description": {"type": "string", "minLength": 1},
		"question": {"type": "string", "minLength": 1},
		"category": {"type": "string"},
		"fileURI": {"type": "string"},
		"rulingOptions": {
			"type": "object",
			"required": ["type", "titles", "descriptions"],
			"properties": {
				"type": {"enum": ["single-select", "multiple-select"]},
				"titles": {"type": "array", "minItems": 2, "items": {"type": "string", "minLength": 1}},
				"descriptions": {"type": "array", "minItems": 2, "items": {"type": "string"}}
			}
		},
		"aliases": {
			"type": "object",
			"propertyNames": {"pattern": "^0x[0-9a-f]{40}$"},
			"additionalProperties": {"type": "string"}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(schema)

// ValidationError lists every schema violation of a document.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid meta-evidence: " + strings.Join(e.Errors, "; ")
}

// Validate checks doc against the ERC-1497 schema. Titles and descriptions of the
// ruling options must pair up.
func Validate(doc *MetaEvidence) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal meta-evidence: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	if len(doc.RulingOptions.Titles) != len(doc.RulingOptions.Descriptions) {
		errs = append(errs, "rulingOptions: titles and descriptions differ in length")
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Upload validates doc, stores it and returns its content identifier.
func Upload(ctx context.Context, store talentlayer.ContentStore, doc *MetaEvidence) (string, error) {
	if err := Validate(doc); err != nil {
		return "", talentlayer.NewError(talentlayer.ErrCodeInvalidArgument, "meta-evidence failed validation", err)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-evidence: %w", err)
	}
	cid, err := store.Put(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("failed to upload meta-evidence: %w", err)
	}
	if err := ipfs.ValidateCID(cid); err != nil {
		return "", fmt.Errorf("content store returned an unusable identifier %q: %w", cid, err)
	}
	return cid, nil
}
