// Package resolver classifies free-form scanned or typed input into an
// application route.
//
// Input may be a tagged JSON QR payload, a URL, a bare UUID, a human-readable
// work-order code, a bin code, a legacy plant|bin pair, an asset code or
// serial, or a part code. Strategies are tried in a fixed order and the first
// match wins. Resolution is best-effort and lossy: every database lookup is
// guarded, and a failed lookup is treated exactly like "no result" so the
// scan degrades to the next strategy instead of erroring.
package resolver

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// Directory is the database-lookup capability the resolver consumes.
// Implementations return ("", nil) for no-match; the resolver additionally
// treats any error as no-match.
type Directory interface {
	// AssetIDByColumn looks up an asset id by exact match on one of the
	// columns "id", "asset_code" or "serial_no".
	AssetIDByColumn(ctx context.Context, column, value string) (string, error)

	// AssetIDByToken looks up an asset id by qr_token or public_token.
	AssetIDByToken(ctx context.Context, token string) (string, error)

	// PartIDByCode looks up a part id by part_code. fold enables
	// case-insensitive matching.
	PartIDByCode(ctx context.Context, code string, fold bool) (string, error)

	// WorkOrderIDByCode resolves a human-readable work-order code to a UUID.
	WorkOrderIDByCode(ctx context.Context, code string) (string, error)
}

// Asset columns accepted by Directory.AssetIDByColumn.
const (
	ColumnID        = "id"
	ColumnAssetCode = "asset_code"
	ColumnSerialNo  = "serial_no"
)

var (
	uuidRe   = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hrExact  = regexp.MustCompile(`^WO[-\s]*([A-Z0-9]{5,12})$`)
	hrBare   = regexp.MustCompile(`^[A-Z0-9]{5,12}$`)
	hrInText = regexp.MustCompile(`WO[-\s]*([A-Z0-9]{5,12})`)
	hrWord   = regexp.MustCompile(`\b[A-Z0-9]{5,12}\b`)
)

// Resolver maps scanned input to application routes.
type Resolver struct {
	dir          Directory
	defaultPlant string
	logger       *slog.Logger
}

// New creates a Resolver. defaultPlant is used when a bin reference carries
// no plant ("Plant1" in every current deployment).
func New(dir Directory, defaultPlant string, logger *slog.Logger) *Resolver {
	if defaultPlant == "" {
		defaultPlant = "Plant1"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{dir: dir, defaultPlant: defaultPlant, logger: logger}
}

// Resolve turns input into a route path. Empty string means no match.
// It never returns an error: malformed input and failed lookups both fall
// through to the next strategy.
func (r *Resolver) Resolve(ctx context.Context, input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	// 1. Tagged JSON payload.
	if p, ok := parsePayload(input); ok && p.kind != kindUnknown {
		if path, done := r.resolvePayload(ctx, p); done {
			return path
		}
	}

	// 2. URL with a recognized path or identifier parameter.
	if path, done := r.resolveURL(ctx, input); done {
		return path
	}

	upper := strings.ToUpper(input)

	// 3. Human-readable work-order code.
	if code := matchHRCode(upper); code != "" {
		return pmWorkOrderPath(r.resolveWorkOrderRef(ctx, code))
	}

	// 4. Bare UUID: asset first, unverified work order as fallback.
	if isUUID(input) {
		if id := r.lookupAssetByAnyColumn(ctx, input); id != "" {
			return equipmentPath(id)
		}
		if id := r.tryLookup(func() (string, error) { return r.dir.AssetIDByToken(ctx, input) }); id != "" {
			return equipmentPath(id)
		}
		// No asset claims this UUID; assume it names a work order.
		return pmWorkOrderPath(input)
	}

	// 5. Bin code with default plant.
	if strings.HasPrefix(upper, "BIN-") {
		return r.inventoryBinPath(r.defaultPlant, input)
	}

	// 6. Legacy pipe-delimited plant|bin pair.
	if plant, bin, ok := strings.Cut(input, "|"); ok {
		plant, bin = strings.TrimSpace(plant), strings.TrimSpace(bin)
		if plant != "" && bin != "" {
			return r.inventoryBinPath(plant, bin)
		}
	}

	// 7. Asset code or serial number.
	for _, column := range []string{ColumnAssetCode, ColumnSerialNo} {
		if id := r.tryLookup(func() (string, error) { return r.dir.AssetIDByColumn(ctx, column, input) }); id != "" {
			return equipmentPath(id)
		}
	}

	// 8. Part code, exact then case-insensitive.
	for _, fold := range []bool{false, true} {
		if id := r.tryLookup(func() (string, error) { return r.dir.PartIDByCode(ctx, input, fold) }); id != "" {
			params := url.Values{}
			params.Set("part_uid", id)
			return inventoryPath(params)
		}
	}

	// 9. Exhausted.
	return ""
}

// resolvePayload handles a parsed JSON payload. done=false means the payload
// was unusable and resolution falls through to the non-JSON strategies.
func (r *Resolver) resolvePayload(ctx context.Context, p payload) (string, bool) {
	switch p.kind {
	case kindWorkOrder:
		if isUUID(p.workOrderRef) {
			return pmWorkOrderPath(p.workOrderRef), true
		}
		if p.workOrderRef != "" {
			if code := extractHRCode(p.workOrderRef); code != "" {
				return pmWorkOrderPath(r.resolveWorkOrderRef(ctx, code)), true
			}
		}
		if isUUID(p.token) {
			return pmWorkOrderPath(p.token), true
		}
		return "", true // recognized tag, nothing usable

	case kindPart:
		params := url.Values{}
		switch {
		case p.partUID != "":
			params.Set("part_uid", p.partUID)
		case p.partCode != "":
			params.Set("part_code", p.partCode)
		default:
			return "", true
		}
		if p.plant != "" {
			params.Set("plant_id", p.plant)
		}
		if p.bin != "" {
			params.Set("bin_code", p.bin)
		}
		// No existence check: the inventory screen handles unknown parts.
		return inventoryPath(params), true

	case kindBin:
		if p.bin == "" {
			return "", true
		}
		plant := p.plant
		if plant == "" {
			plant = r.defaultPlant
		}
		return r.inventoryBinPath(plant, p.bin), true

	case kindAsset:
		if isUUID(p.assetID) {
			return equipmentPath(p.assetID), true
		}
		if p.assetCode != "" {
			for _, column := range []string{ColumnAssetCode, ColumnSerialNo} {
				if id := r.tryLookup(func() (string, error) { return r.dir.AssetIDByColumn(ctx, column, p.assetCode) }); id != "" {
					return equipmentPath(id), true
				}
			}
		}
		if isUUID(p.token) {
			if id := r.tryLookup(func() (string, error) { return r.dir.AssetIDByToken(ctx, p.token) }); id != "" {
				return equipmentPath(id), true
			}
		}
		return "", true

	case kindToken:
		if !isUUID(p.token) {
			return "", false
		}
		if id := r.tryLookup(func() (string, error) { return r.dir.AssetIDByToken(ctx, p.token) }); id != "" {
			return equipmentPath(id), true
		}
		// Unclaimed token: assume it names a work order.
		return pmWorkOrderPath(p.token), true
	}

	return "", false
}

// resolveURL handles http(s) URLs: direct route paths first, then
// id/token/qr query parameters.
func (r *Resolver) resolveURL(ctx context.Context, input string) (string, bool) {
	u, err := url.Parse(input)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}

	if ref, ok := trailingSegment(u.Path, pmWorkOrderPrefix); ok {
		return pmWorkOrderPath(ref), true
	}
	if id, ok := trailingSegment(u.Path, equipmentPrefix); ok {
		return equipmentPath(id), true
	}

	q := u.Query()
	for _, key := range []string{"id", "token", "qr"} {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			continue
		}
		if isUUID(v) {
			if id := r.tryLookup(func() (string, error) { return r.dir.AssetIDByToken(ctx, v) }); id != "" {
				return equipmentPath(id), true
			}
			return pmWorkOrderPath(v), true
		}
		if code := extractHRCode(strings.ToUpper(v)); code != "" {
			return pmWorkOrderPath(r.resolveWorkOrderRef(ctx, code)), true
		}
		return pmWorkOrderPath(v), true
	}

	return "", false
}

// resolveWorkOrderRef maps an HR code to its UUID when the lookup succeeds,
// otherwise keeps the raw code so the route still lands on the WO screen.
func (r *Resolver) resolveWorkOrderRef(ctx context.Context, code string) string {
	if id := r.tryLookup(func() (string, error) { return r.dir.WorkOrderIDByCode(ctx, code) }); id != "" {
		return id
	}
	return code
}

// lookupAssetByAnyColumn tries id, asset_code, then serial_no equality.
func (r *Resolver) lookupAssetByAnyColumn(ctx context.Context, value string) string {
	for _, column := range []string{ColumnID, ColumnAssetCode, ColumnSerialNo} {
		if id := r.tryLookup(func() (string, error) { return r.dir.AssetIDByColumn(ctx, column, value) }); id != "" {
			return id
		}
	}
	return ""
}

// tryLookup runs a single directory lookup, collapsing errors into no-match.
func (r *Resolver) tryLookup(fn func() (string, error)) string {
	id, err := fn()
	if err != nil {
		r.logger.Debug("resolver lookup failed, falling through", "error", err)
		return ""
	}
	return id
}

func (r *Resolver) inventoryBinPath(plant, bin string) string {
	params := url.Values{}
	params.Set("plant_id", plant)
	params.Set("bin_code", bin)
	return inventoryPath(params)
}

// trailingSegment extracts the single path segment following prefix,
// URL-decoded. ok=false when the path does not match or has extra segments.
func trailingSegment(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	seg := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if seg == "" || strings.Contains(seg, "/") {
		return "", false
	}
	if dec, err := url.PathUnescape(seg); err == nil {
		seg = dec
	}
	return seg, true
}

func isUUID(s string) bool {
	return uuidRe.MatchString(s)
}

// matchHRCode matches a full-input HR work-order code against the uppercased
// input: "WO-1SJ44WH", "WO 1SJ44WH" or a bare 5-12 char base36 code.
func matchHRCode(upper string) string {
	if m := hrExact.FindStringSubmatch(upper); m != nil {
		return m[1]
	}
	if hrBare.MatchString(upper) {
		return upper
	}
	return ""
}

// extractHRCode finds an HR code embedded anywhere in the given uppercased
// text, preferring the WO-prefixed form.
func extractHRCode(text string) string {
	text = strings.ToUpper(text)
	if m := hrInText.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return hrWord.FindString(text)
}
