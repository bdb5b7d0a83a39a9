package resolver

import (
	"encoding/json"
	"strconv"
	"strings"
)

// payloadKind is the closed set of QR payload variants DigitizerX labels
// encode. Unknown tags pass through to the non-JSON strategies.
type payloadKind int

const (
	kindUnknown payloadKind = iota
	kindWorkOrder
	kindPart
	kindBin
	kindAsset
	kindToken // untagged object carrying only a token field
)

// payload is the parsed form of a tagged JSON QR payload. Only the fields
// relevant to the detected kind are populated.
type payload struct {
	kind payloadKind

	workOrderRef string // pm_wo: wo/id/ref
	token        string // pm_wo fallback, asset token, or bare token object

	partUID  string // part: part_uid/uid
	partCode string // part: part_code/code

	plant string // part/bin: plant_id/plant
	bin   string // part/bin: bin_code/bin

	assetID   string // asset: id/asset_id
	assetCode string // asset: code/asset_code
}

// parsePayload attempts to interpret input as a tagged JSON object.
// Returns ok=false when the input is not a JSON object, in which case the
// caller falls through to the non-JSON strategies.
func parsePayload(input string) (payload, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(input), &obj); err != nil || obj == nil {
		return payload{}, false
	}

	tag := strings.ToLower(strField(obj, "type", "t"))

	switch tag {
	case "pm_wo", "pm":
		return payload{
			kind:         kindWorkOrder,
			workOrderRef: strField(obj, "wo", "id", "ref"),
			token:        strField(obj, "token"),
		}, true
	case "part":
		return payload{
			kind:     kindPart,
			partUID:  strField(obj, "part_uid", "uid"),
			partCode: strField(obj, "part_code", "code"),
			plant:    strField(obj, "plant_id", "plant"),
			bin:      strField(obj, "bin_code", "bin"),
		}, true
	case "bin":
		return payload{
			kind:  kindBin,
			plant: strField(obj, "plant_id", "plant"),
			bin:   strField(obj, "bin_code", "bin"),
		}, true
	case "asset", "equipment":
		return payload{
			kind:      kindAsset,
			assetID:   strField(obj, "id", "asset_id"),
			assetCode: strField(obj, "code", "asset_code"),
			token:     strField(obj, "token"),
		}, true
	}

	// Untagged (or unknown-tagged) object: only a UUID token field is usable.
	if token := strField(obj, "token"); token != "" {
		return payload{kind: kindToken, token: token}, true
	}

	return payload{kind: kindUnknown}, true
}

// strField returns the first non-empty string value among the aliased keys.
// Scanned payloads sometimes carry numeric values for code fields, so numbers
// are formatted back to their shortest string form.
func strField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}
