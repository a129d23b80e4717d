package processor

import (
	"fmt"

	"github.com/piprate/json-gold/ld"
)

// JSONLDOpt represents an option for JSON-LD processing.
type JSONLDOpt func(*JSONLD)

// WithDocumentLoader sets the document loader for JSON-LD processing.
func WithDocumentLoader(loader ld.DocumentLoader) JSONLDOpt {
	return func(p *JSONLD) {
		p.documentLoader = loader
	}
}

// WithStrictTypes keeps numbers and booleans as native JSON-LD literals
// instead of coercing them to xsd:string.
func WithStrictTypes() JSONLDOpt {
	return func(p *JSONLD) {
		p.strictTypes = true
	}
}

// JSONLD canonicalizes with RDF Dataset Normalization (URDNA2015) to N-Quads.
type JSONLD struct {
	documentLoader ld.DocumentLoader
	strictTypes    bool
}

// defaultDocumentLoader is a shared caching loader to prevent repeated fetches across calls.
var defaultDocumentLoader = ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil))

// NewJSONLD creates a URDNA2015 canonicalizer.
func NewJSONLD(opts ...JSONLDOpt) *JSONLD {
	p := &JSONLD{documentLoader: defaultDocumentLoader}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Canonicalizer.
func (p *JSONLD) Name() string { return NameJSONLD }

// Canonicalize implements Canonicalizer.
func (p *JSONLD) Canonicalize(doc map[string]any) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}

	options := ld.NewJsonLdOptions("")
	options.Format = "application/n-quads"
	options.Algorithm = ld.AlgorithmURDNA2015
	options.ProduceGeneralizedRdf = false
	options.DocumentLoader = p.documentLoader

	input := any(doc)
	if !p.strictTypes {
		input = convertToJSONLDCompatible(doc)
	}

	canonicalized, err := ld.NewJsonLdProcessor().Normalize(input, options)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}

	out, ok := canonicalized.(string)
	if !ok {
		return nil, fmt.Errorf("failed to normalize document: unexpected result %T", canonicalized)
	}

	return []byte(out), nil
}

// convertToJSONLDCompatible forces scalar values into typed string literals
// so that numeric formatting differences do not change the canonical form.
func convertToJSONLDCompatible(value any) any {
	switch v := value.(type) {
	case string, nil:
		return v
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			if key == "@context" {
				result[key] = val
				continue
			}
			result[key] = convertToJSONLDCompatible(val)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = convertToJSONLDCompatible(val)
		}
		return result
	case bool:
		return map[string]any{
			"@value": fmt.Sprintf("%v", v),
			"@type":  "http://www.w3.org/2001/XMLSchema#boolean",
		}
	default:
		return map[string]any{
			"@value": fmt.Sprintf("%v", v),
			"@type":  "http://www.w3.org/2001/XMLSchema#string",
		}
	}
}
