package utils

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON fixes the usual damage in hand-edited JSON: single quotes,
// unquoted keys, trailing commas, comments, unclosed brackets.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON converts Hjson (comments, unquoted keys and strings, optional
// commas) into standard JSON.
func ParseHJSON(data string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(data), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(out), nil
}

// SmartParse decodes input into target, trying in order:
//  1. strict JSON
//  2. Hjson
//  3. repaired JSON
//
// Unknown fields are rejected at every step. It returns the JSON that was finally decoded.
func SmartParse(input string, target interface{}) (string, error) {
	if err := strictDecode(input, target); err == nil {
		return input, nil
	}

	if converted, err := ParseHJSON(input); err == nil {
		if err := strictDecode(converted, target); err == nil {
			return converted, nil
		}
	}

	repaired, err := RepairJSON(input)
	if err != nil {
		return "", fmt.Errorf("SMART_PARSE_FAILED: %w", err)
	}
	if err := strictDecode(repaired, target); err != nil {
		return "", fmt.Errorf("SMART_PARSE_FAILED: %w", err)
	}
	return repaired, nil
}

func strictDecode(data string, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
