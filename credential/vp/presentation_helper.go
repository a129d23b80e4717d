package vp

import (
	"fmt"

	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/util"
	"github.com/pilacorp/go-ethr-vc/credential/vc"
)

const fieldCredentials = "verifiableCredential"

// serializePresentationContents converts PresentationContents to a JSON
// document.
func serializePresentationContents(vpc *PresentationContents) (jsonmap.JSONMap, error) {
	contexts, err := util.SerializeContexts(vpc.Context)
	if err != nil {
		return nil, err
	}
	if vpc.Holder == "" {
		return nil, fmt.Errorf("holder is required")
	}

	doc := jsonmap.JSONMap{
		"@context": contexts,
		"type":     util.SerializeTypes(vpc.Types),
		"holder":   vpc.Holder,
	}
	if vpc.ID != "" {
		doc["id"] = vpc.ID
	}

	if len(vpc.VerifiableCredentials) > 0 {
		creds := make([]any, 0, len(vpc.VerifiableCredentials))
		for i, c := range vpc.VerifiableCredentials {
			if c == nil {
				return nil, fmt.Errorf("credential at index %d is nil", i)
			}
			credDoc, err := c.Document()
			if err != nil {
				return nil, fmt.Errorf("failed to serialize credential at index %d: %w", i, err)
			}
			creds = append(creds, map[string]any(credDoc))
		}
		doc[fieldCredentials] = creds
	}

	return doc.Clone()
}

// parsePresentationContents fills contents from a presentation document.
func parsePresentationContents(doc jsonmap.JSONMap, contents *PresentationContents) error {
	parsers := []func(jsonmap.JSONMap, *PresentationContents) error{
		parseContext,
		parseID,
		parseTypes,
		parseHolder,
		parseCredentials,
	}

	for _, parser := range parsers {
		if err := parser(doc, contents); err != nil {
			return err
		}
	}
	return nil
}

func parseContext(doc jsonmap.JSONMap, contents *PresentationContents) error {
	contexts, err := util.ParseContexts(doc["@context"])
	if err != nil {
		return err
	}
	if len(contexts) == 0 {
		return fmt.Errorf("@context is required")
	}
	contents.Context = contexts
	return nil
}

func parseID(doc jsonmap.JSONMap, contents *PresentationContents) error {
	switch id := doc["id"].(type) {
	case nil:
	case string:
		contents.ID = id
	default:
		return fmt.Errorf("unsupported id field: %T", id)
	}
	return nil
}

func parseTypes(doc jsonmap.JSONMap, contents *PresentationContents) error {
	types, err := util.ParseStrings(doc["type"])
	if err != nil {
		return fmt.Errorf("unsupported type field: %w", err)
	}
	if len(types) == 0 {
		return fmt.Errorf("type is required")
	}
	contents.Types = types
	return nil
}

func parseHolder(doc jsonmap.JSONMap, contents *PresentationContents) error {
	holder, ok := doc["holder"].(string)
	if !ok || holder == "" {
		return fmt.Errorf("holder is required")
	}
	contents.Holder = holder
	return nil
}

func parseCredentials(doc jsonmap.JSONMap, contents *PresentationContents) error {
	for i, raw := range util.ToArray(doc[fieldCredentials]) {
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("unsupported credential format at index %d: %T", i, raw)
		}
		c, err := vc.FromJSONMap(obj)
		if err != nil {
			return fmt.Errorf("credential at index %d: %w", i, err)
		}
		contents.VerifiableCredentials = append(contents.VerifiableCredentials, c)
	}
	return nil
}
