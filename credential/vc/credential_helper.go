package vc

import (
	"fmt"
	"time"

	"github.com/pilacorp/go-ethr-vc/credential/common/jsonmap"
	"github.com/pilacorp/go-ethr-vc/credential/common/util"
)

// serializeCredentialContents converts CredentialContents to a JSON document.
func serializeCredentialContents(vcc *CredentialContents) (jsonmap.JSONMap, error) {
	contexts, err := util.SerializeContexts(vcc.Context)
	if err != nil {
		return nil, err
	}
	if vcc.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}

	doc := jsonmap.JSONMap{
		"@context":     contexts,
		"type":         util.SerializeTypes(vcc.Types),
		"issuer":       vcc.Issuer,
		"issuanceDate": vcc.IssuanceDate.UTC().Format(time.RFC3339),
	}
	if vcc.ID != "" {
		doc["id"] = vcc.ID
	}
	if !vcc.ExpirationDate.IsZero() {
		doc["expirationDate"] = vcc.ExpirationDate.UTC().Format(time.RFC3339)
	}
	if len(vcc.Subject) > 0 {
		doc[jsonmap.FieldSubject] = util.SerializeOne(vcc.Subject, serializeSubject)
	}
	if len(vcc.Schemas) > 0 {
		doc["credentialSchema"] = util.SerializeOne(vcc.Schemas, serializeSchema)
	}
	if len(vcc.CredentialStatus) > 0 {
		doc["credentialStatus"] = util.SerializeOne(vcc.CredentialStatus, serializeStatus)
	}

	// Normalize Go values (nested structs, typed slices) to JSON types so the
	// document signs the same before and after a round trip.
	return doc.Clone()
}

func serializeSubject(s Subject) map[string]any {
	out := util.ShallowCopyObj(s.CustomFields)
	if s.ID != "" {
		out["id"] = s.ID
	}
	return out
}

func serializeSchema(s Schema) map[string]any {
	return map[string]any{"id": s.ID, "type": s.Type}
}

func serializeStatus(status Status) map[string]any {
	result := make(map[string]any)
	if status.ID != "" {
		result["id"] = status.ID
	}
	if status.Type != "" {
		result["type"] = status.Type
	}
	if status.StatusPurpose != "" {
		result["statusPurpose"] = status.StatusPurpose
	}
	if status.StatusListIndex != "" {
		result["statusListIndex"] = status.StatusListIndex
	}
	if status.StatusListCredential != "" {
		result["statusListCredential"] = status.StatusListCredential
	}
	return result
}

// parseCredentialContents fills contents from a credential document.
func parseCredentialContents(doc jsonmap.JSONMap, contents *CredentialContents) error {
	parsers := []func(jsonmap.JSONMap, *CredentialContents) error{
		parseContext,
		parseID,
		parseTypes,
		parseIssuer,
		parseDates,
		parseSubject,
		parseSchema,
		parseStatus,
	}

	for _, parser := range parsers {
		if err := parser(doc, contents); err != nil {
			return err
		}
	}
	return nil
}

func parseContext(doc jsonmap.JSONMap, contents *CredentialContents) error {
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

func parseID(doc jsonmap.JSONMap, contents *CredentialContents) error {
	switch id := doc["id"].(type) {
	case nil:
	case string:
		contents.ID = id
	default:
		return fmt.Errorf("unsupported id field: %T", id)
	}
	return nil
}

func parseTypes(doc jsonmap.JSONMap, contents *CredentialContents) error {
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

func parseIssuer(doc jsonmap.JSONMap, contents *CredentialContents) error {
	issuer := issuerID(doc["issuer"])
	if issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	contents.Issuer = issuer
	return nil
}

// issuerID reads an issuer given as a string or as an object with an id.
func issuerID(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		id, _ := v["id"].(string)
		return id
	default:
		return ""
	}
}

func parseDates(doc jsonmap.JSONMap, contents *CredentialContents) error {
	for field, target := range map[string]*time.Time{
		"issuanceDate":   &contents.IssuanceDate,
		"expirationDate": &contents.ExpirationDate,
	} {
		raw, ok := doc[field]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("failed to parse %s: unsupported value %T", field, raw)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", field, err)
		}
		*target = t
	}
	return nil
}

func parseSubject(doc jsonmap.JSONMap, contents *CredentialContents) error {
	for _, raw := range util.ToArray(doc[jsonmap.FieldSubject]) {
		switch subject := raw.(type) {
		case string:
			contents.Subject = append(contents.Subject, Subject{ID: subject})
		case map[string]any:
			contents.Subject = append(contents.Subject, subjectFromJSON(subject))
		default:
			return fmt.Errorf("unsupported subject format: %T", raw)
		}
	}
	return nil
}

func subjectFromJSON(obj map[string]any) Subject {
	rest := util.ShallowCopyObj(obj)
	id, _ := rest["id"].(string)
	delete(rest, "id")
	return Subject{ID: id, CustomFields: rest}
}

func parseSchema(doc jsonmap.JSONMap, contents *CredentialContents) error {
	for _, raw := range util.ToArray(doc["credentialSchema"]) {
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("failed to parse schema: unsupported format %T", raw)
		}
		id, _ := obj["id"].(string)
		typ, _ := obj["type"].(string)
		if id == "" {
			return fmt.Errorf("failed to parse schema: id is required")
		}
		contents.Schemas = append(contents.Schemas, Schema{ID: id, Type: typ})
	}
	return nil
}

func parseStatus(doc jsonmap.JSONMap, contents *CredentialContents) error {
	for _, raw := range util.ToArray(doc["credentialStatus"]) {
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("failed to parse credentialStatus: unsupported format %T", raw)
		}

		var status Status
		status.ID, _ = obj["id"].(string)
		status.Type, _ = obj["type"].(string)
		status.StatusPurpose, _ = obj["statusPurpose"].(string)
		status.StatusListCredential, _ = obj["statusListCredential"].(string)
		switch idx := obj["statusListIndex"].(type) {
		case string:
			status.StatusListIndex = idx
		case float64:
			status.StatusListIndex = fmt.Sprintf("%d", int64(idx))
		}
		contents.CredentialStatus = append(contents.CredentialStatus, status)
	}
	return nil
}
